package analytics

import (
	"sort"

	"github.com/malwarebo/condopay/models"
	"github.com/shopspring/decimal"
)

type StatusTotals struct {
	Count  int    `json:"count"`
	Amount string `json:"amount"`
}

type CategoryTotals struct {
	Category  models.BoletoCategory `json:"category"`
	Count     int                   `json:"count"`
	Billed    string                `json:"billed"`
	Collected string                `json:"collected"`
}

type OwnerTotals struct {
	Total      int `json:"total"`
	Active     int `json:"active"`
	Inactive   int `json:"inactive"`
	Delinquent int `json:"delinquent"`
}

// CollectionReport summarizes arrecadação: what was billed, what was
// collected and how many owners are delinquent.
type CollectionReport struct {
	ReferenceDate  string                               `json:"reference_date"`
	TotalBoletos   int                                  `json:"total_boletos"`
	ByStatus       map[models.BoletoStatus]StatusTotals `json:"by_status"`
	ByCategory     []CategoryTotals                     `json:"by_category"`
	Billed         string                               `json:"billed"`
	Collected      string                               `json:"collected"`
	Outstanding    string                               `json:"outstanding"`
	CollectionRate string                               `json:"collection_rate"`
	Owners         OwnerTotals                          `json:"owners"`
}

type accumulator struct {
	count  int
	amount decimal.Decimal
}

// Summarize builds the report from boletos and owners. Cancelled boletos are
// counted but excluded from billed amounts. Owner situations come from
// User.EffectiveSituation with the given overdue counts so reports share the
// delinquency rule of the payment path.
func Summarize(boletos []*models.Boleto, owners []*models.User, overdueCounts map[string]int64, today models.Date) *CollectionReport {
	byStatus := map[models.BoletoStatus]*accumulator{
		models.BoletoStatusPending:   {},
		models.BoletoStatusOverdue:   {},
		models.BoletoStatusPaid:      {},
		models.BoletoStatusCancelled: {},
	}
	type categoryAcc struct {
		count     int
		billed    decimal.Decimal
		collected decimal.Decimal
	}
	byCategory := make(map[models.BoletoCategory]*categoryAcc)

	billed := decimal.Zero
	collected := decimal.Zero

	for _, b := range boletos {
		status := b.EffectiveStatus(today)
		total := b.Total()

		acc := byStatus[status]
		acc.count++
		acc.amount = acc.amount.Add(total)

		cat, ok := byCategory[b.Category]
		if !ok {
			cat = &categoryAcc{}
			byCategory[b.Category] = cat
		}
		cat.count++

		if status == models.BoletoStatusCancelled {
			continue
		}
		billed = billed.Add(total)
		cat.billed = cat.billed.Add(total)
		if status == models.BoletoStatusPaid {
			collected = collected.Add(total)
			cat.collected = cat.collected.Add(total)
		}
	}

	report := &CollectionReport{
		ReferenceDate:  today.String(),
		TotalBoletos:   len(boletos),
		ByStatus:       make(map[models.BoletoStatus]StatusTotals, len(byStatus)),
		Billed:         billed.StringFixed(2),
		Collected:      collected.StringFixed(2),
		Outstanding:    billed.Sub(collected).StringFixed(2),
		CollectionRate: "0.00",
	}
	for status, acc := range byStatus {
		report.ByStatus[status] = StatusTotals{Count: acc.count, Amount: acc.amount.StringFixed(2)}
	}
	if billed.IsPositive() {
		report.CollectionRate = collected.Div(billed).Mul(decimal.NewFromInt(100)).StringFixed(2)
	}

	for category, acc := range byCategory {
		report.ByCategory = append(report.ByCategory, CategoryTotals{
			Category:  category,
			Count:     acc.count,
			Billed:    acc.billed.StringFixed(2),
			Collected: acc.collected.StringFixed(2),
		})
	}
	sort.Slice(report.ByCategory, func(i, j int) bool {
		return report.ByCategory[i].Category < report.ByCategory[j].Category
	})

	for _, owner := range owners {
		if !owner.IsOwner() {
			continue
		}
		report.Owners.Total++
		switch owner.EffectiveSituation(overdueCounts[owner.ID]) {
		case models.SituationActive:
			report.Owners.Active++
		case models.SituationInactive:
			report.Owners.Inactive++
		case models.SituationDelinquent:
			report.Owners.Delinquent++
		}
	}

	return report
}
