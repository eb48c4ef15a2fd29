// Package pix builds static-format BR Code payloads (EMV merchant-presented
// QR) for PIX charges.
package pix

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	gui             = "br.gov.bcb.pix"
	currencyBRL     = "986"
	countryBR       = "BR"
	maxTxIDLength   = 25
	maxNameLength   = 25
	maxCityLength   = 15
	maxFieldLength  = 99
	crcFieldPrefix  = "6304"
	defaultCategory = "0000"
)

const (
	idPayloadFormat   = "00"
	idMerchantAccount = "26"
	idCategory        = "52"
	idCurrency        = "53"
	idAmount          = "54"
	idCountry         = "58"
	idMerchantName    = "59"
	idMerchantCity    = "60"
	idAdditionalData  = "62"
	idTxID            = "05"
	idGUI             = "00"
	idKey             = "01"
	idDescription     = "02"
)

var ErrFieldTooLong = errors.New("pix: field exceeds 99 characters")

type Charge struct {
	Key          string
	MerchantName string
	MerchantCity string
	Amount       decimal.Decimal
	TxID         string
	Description  string
}

// NewTxID returns a fresh 25 character alphanumeric transaction id.
func NewTxID() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return id[:maxTxIDLength]
}

// Payload encodes the charge as a BR Code string terminated by its CRC16.
func Payload(c Charge) (string, error) {
	if c.Key == "" {
		return "", errors.New("pix: key is required")
	}
	if c.Amount.IsNegative() {
		return "", errors.New("pix: amount cannot be negative")
	}

	account := field(idGUI, gui) + field(idKey, c.Key)
	if c.Description != "" {
		account += field(idDescription, c.Description)
	}
	if len(account) > maxFieldLength {
		return "", ErrFieldTooLong
	}

	txid := sanitizeTxID(c.TxID)
	if txid == "" {
		txid = "***"
	}

	var b strings.Builder
	b.WriteString(field(idPayloadFormat, "01"))
	b.WriteString(field(idMerchantAccount, account))
	b.WriteString(field(idCategory, defaultCategory))
	b.WriteString(field(idCurrency, currencyBRL))
	if c.Amount.IsPositive() {
		b.WriteString(field(idAmount, c.Amount.StringFixed(2)))
	}
	b.WriteString(field(idCountry, countryBR))
	b.WriteString(field(idMerchantName, normalize(c.MerchantName, maxNameLength)))
	b.WriteString(field(idMerchantCity, normalize(c.MerchantCity, maxCityLength)))
	b.WriteString(field(idAdditionalData, field(idTxID, txid)))
	b.WriteString(crcFieldPrefix)

	payload := b.String()
	return payload + fmt.Sprintf("%04X", CRC16(payload)), nil
}

// Valid reports whether payload ends with the correct CRC.
func Valid(payload string) bool {
	if len(payload) < 8 || payload[len(payload)-8:len(payload)-4] != crcFieldPrefix {
		return false
	}
	body := payload[:len(payload)-4]
	return strings.EqualFold(payload[len(payload)-4:], fmt.Sprintf("%04X", CRC16(body)))
}

func field(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// CRC16 is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF) as required by the
// EMV QR standard.
func CRC16(data string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(data); i++ {
		crc ^= uint16(data[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

var accents = strings.NewReplacer(
	"Á", "A", "À", "A", "Â", "A", "Ã", "A", "Ä", "A",
	"É", "E", "Ê", "E", "È", "E",
	"Í", "I", "Ì", "I",
	"Ó", "O", "Ô", "O", "Õ", "O", "Ò", "O", "Ö", "O",
	"Ú", "U", "Ù", "U", "Ü", "U",
	"Ç", "C", "Ñ", "N",
)

// normalize upper-cases s, folds Portuguese accents and keeps printable
// ASCII, truncated to max.
func normalize(s string, max int) string {
	s = accents.Replace(strings.ToUpper(strings.TrimSpace(s)))
	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 && r < 0x7F {
			b.WriteRune(r)
		}
		if b.Len() == max {
			break
		}
	}
	return b.String()
}

func sanitizeTxID(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() == maxTxIDLength {
			break
		}
	}
	return b.String()
}
