package services

import (
	"context"
	"fmt"

	"github.com/malwarebo/condopay/models"
	"github.com/malwarebo/condopay/stores"
	"github.com/malwarebo/condopay/utils"
)

// DelinquencyTracker owns the one definition of delinquency: an owner is
// delinquent iff they have a pending boleto whose due date has passed.
type DelinquencyTracker struct {
	boletos  *stores.BoletoStore
	users    *stores.UserStore
	calendar *Calendar
}

func CreateDelinquencyTracker(boletos *stores.BoletoStore, users *stores.UserStore, calendar *Calendar) *DelinquencyTracker {
	return &DelinquencyTracker{
		boletos:  boletos,
		users:    users,
		calendar: calendar,
	}
}

func (t *DelinquencyTracker) OverdueCount(ctx context.Context, ownerID string) (int64, error) {
	return t.boletos.CountOverdueByOwner(ctx, ownerID, t.calendar.Today())
}

// Reconcile runs on the write path after a payment. It only ever promotes a
// delinquent owner back to active; it never marks anyone delinquent.
func (t *DelinquencyTracker) Reconcile(ctx context.Context, ownerID string) (models.Situation, error) {
	owner, err := t.users.GetByID(ctx, ownerID)
	if err != nil {
		if stores.IsNotFound(err) {
			return "", ErrOwnerNotFound
		}
		return "", fmt.Errorf("failed to load owner: %w", err)
	}

	count, err := t.OverdueCount(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("failed to count overdue boletos: %w", err)
	}

	if count == 0 && owner.Situation == models.SituationDelinquent {
		if _, err := t.users.UpdateSituationIf(ctx, ownerID, models.SituationDelinquent, models.SituationActive); err != nil {
			return "", fmt.Errorf("failed to update owner situation: %w", err)
		}
		owner.Situation = models.SituationActive
		utils.Info(ctx, "owner situation restored", map[string]interface{}{
			"owner_id":  ownerID,
			"situation": models.SituationActive,
		})
	}

	return owner.EffectiveSituation(count), nil
}

// Classify is the read-time situation of one owner.
func (t *DelinquencyTracker) Classify(ctx context.Context, owner *models.User) (models.Situation, int64, error) {
	count, err := t.OverdueCount(ctx, owner.ID)
	if err != nil {
		return "", 0, err
	}
	return owner.EffectiveSituation(count), count, nil
}

// OverdueCounts returns the overdue count of every owner that has any, for
// reports that classify many owners at once.
func (t *DelinquencyTracker) OverdueCounts(ctx context.Context) (map[string]int64, error) {
	return t.boletos.OverdueCounts(ctx, t.calendar.Today())
}
