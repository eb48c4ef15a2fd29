package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/malwarebo/condopay/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FixedClock returns a clock frozen at t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func CreateOwner(t testing.TB, gormDB *gorm.DB, unit string) *models.User {
	t.Helper()
	user := &models.User{
		Name:      "Owner " + unit,
		Email:     fmt.Sprintf("owner-%s@example.com", unit),
		Unit:      unit,
		Role:      models.RoleOwner,
		Situation: models.SituationActive,
	}
	if err := gormDB.WithContext(context.Background()).Create(user).Error; err != nil {
		t.Fatalf("create owner: %v", err)
	}
	return user
}

func CreateAdmin(t testing.TB, gormDB *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		Name:      "Administrator",
		Email:     "admin@example.com",
		Role:      models.RoleAdmin,
		Situation: models.SituationActive,
	}
	if err := gormDB.Create(user).Error; err != nil {
		t.Fatalf("create admin: %v", err)
	}
	return user
}

// CreateBoleto inserts a pending boleto directly, bypassing numbering.
func CreateBoleto(t testing.TB, gormDB *gorm.DB, ownerID string, amount string, issue, due models.Date) *models.Boleto {
	t.Helper()
	var count int64
	gormDB.Model(&models.Boleto{}).Count(&count)

	boleto := &models.Boleto{
		Number:         models.FormatDocumentNumber(900000 + count + 1),
		OwnerID:        ownerID,
		Description:    "Taxa condominial",
		Category:       models.CategoryCondominiumFee,
		Amount:         decimal.RequireFromString(amount),
		IssueDate:      issue.Time,
		DueDate:        due.Time,
		Status:         models.BoletoStatusPending,
		PaymentChannel: models.PaymentChannelBoleto,
	}
	if err := gormDB.Create(boleto).Error; err != nil {
		t.Fatalf("create boleto: %v", err)
	}
	return boleto
}

func SetSituation(t testing.TB, gormDB *gorm.DB, userID string, situation models.Situation) {
	t.Helper()
	err := gormDB.Model(&models.User{}).Where("id = ?", userID).Update("situation", situation).Error
	if err != nil {
		t.Fatalf("set situation: %v", err)
	}
}
