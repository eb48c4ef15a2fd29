package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/malwarebo/condopay/models"
	"github.com/malwarebo/condopay/testutil"
	"github.com/malwarebo/condopay/utils"
)

func TestConfirmPayment_OverdueThenPaid(t *testing.T) {
	env := newTestEnv(t, at(2024, time.February, 1, 12))
	ctx := context.Background()

	owner := testutil.CreateOwner(t, env.db, "101")
	testutil.SetSituation(t, env.db, owner.ID, models.SituationDelinquent)
	boleto := testutil.CreateBoleto(t, env.db, owner.ID, "350.00", date(2024, time.January, 1), date(2024, time.January, 10))

	got, err := env.billing.Get(ctx, boleto.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if status := got.View(env.billing.Today()).Status; status != models.BoletoStatusOverdue {
		t.Errorf("status before payment = %v, want %v", status, models.BoletoStatusOverdue)
	}

	view, err := env.people.Get(ctx, owner.ID)
	if err != nil {
		t.Fatalf("people.Get() error = %v", err)
	}
	if view.EffectiveSituation != models.SituationDelinquent || view.OverdueCount != 1 {
		t.Errorf("owner = (%v, %d), want (delinquent, 1)", view.EffectiveSituation, view.OverdueCount)
	}

	paidAt := at(2024, time.February, 2, 9)
	env.clock.Set(paidAt)

	result, err := env.payments.ConfirmPayment(ctx, models.PaymentConfirmation{BoletoID: boleto.ID})
	if err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}
	if result.Outcome != models.PaymentOutcomePaid {
		t.Errorf("Outcome = %v, want %v", result.Outcome, models.PaymentOutcomePaid)
	}
	if result.OwnerSituation != models.SituationActive {
		t.Errorf("OwnerSituation = %v, want %v", result.OwnerSituation, models.SituationActive)
	}
	if result.View.Status != models.BoletoStatusPaid {
		t.Errorf("View.Status = %v, want %v", result.View.Status, models.BoletoStatusPaid)
	}

	stored := env.reload(t, boleto.ID)
	if stored.Status != models.BoletoStatusPaid {
		t.Errorf("stored status = %v, want %v", stored.Status, models.BoletoStatusPaid)
	}
	if stored.PaidAt == nil || !stored.PaidAt.Equal(paidAt) {
		t.Errorf("PaidAt = %v, want %v", stored.PaidAt, paidAt)
	}
	if stored.PaymentChannel != models.PaymentChannelBoleto {
		t.Errorf("PaymentChannel = %v, want %v", stored.PaymentChannel, models.PaymentChannelBoleto)
	}
	if got := env.storedSituation(t, owner.ID); got != models.SituationActive {
		t.Errorf("stored situation = %v, want %v", got, models.SituationActive)
	}
	if n := env.countActions(t, boleto.ID, models.AuditActionPay); n != 1 {
		t.Errorf("pay audit entries = %d, want 1", n)
	}
}

func TestConfirmPayment_AlreadyPaid(t *testing.T) {
	env := newTestEnv(t, at(2024, time.March, 5, 10))
	ctx := context.Background()

	owner := testutil.CreateOwner(t, env.db, "102")
	boleto := testutil.CreateBoleto(t, env.db, owner.ID, "200.00", date(2024, time.March, 1), date(2024, time.March, 10))

	first, err := env.payments.ConfirmPayment(ctx, models.PaymentConfirmation{BoletoID: boleto.ID, Channel: models.PaymentChannelCash})
	if err != nil {
		t.Fatalf("first ConfirmPayment() error = %v", err)
	}

	env.clock.Set(at(2024, time.March, 6, 10))
	second, err := env.payments.ConfirmPayment(ctx, models.PaymentConfirmation{BoletoID: boleto.ID, Channel: models.PaymentChannelPix})
	if err != nil {
		t.Fatalf("second ConfirmPayment() error = %v", err)
	}

	if second.Outcome != models.PaymentOutcomeAlreadyPaid {
		t.Errorf("Outcome = %v, want %v", second.Outcome, models.PaymentOutcomeAlreadyPaid)
	}
	if !second.Boleto.PaidAt.Equal(*first.Boleto.PaidAt) {
		t.Errorf("PaidAt changed from %v to %v", first.Boleto.PaidAt, second.Boleto.PaidAt)
	}
	if second.Boleto.PaymentChannel != models.PaymentChannelCash {
		t.Errorf("PaymentChannel = %v, want %v", second.Boleto.PaymentChannel, models.PaymentChannelCash)
	}
	if n := env.countActions(t, boleto.ID, models.AuditActionPay); n != 1 {
		t.Errorf("pay audit entries = %d, want 1", n)
	}
}

func TestConfirmPayment_Rejections(t *testing.T) {
	env := newTestEnv(t, at(2024, time.April, 15, 10))
	ctx := context.Background()

	owner := testutil.CreateOwner(t, env.db, "103")
	cancelled := testutil.CreateBoleto(t, env.db, owner.ID, "100.00", date(2024, time.April, 1), date(2024, time.April, 10))
	if _, err := env.billing.Cancel(ctx, cancelled.ID, "duplicate"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	pending := testutil.CreateBoleto(t, env.db, owner.ID, "100.00", date(2024, time.April, 10), date(2024, time.April, 20))
	beforeIssue := at(2024, time.April, 9, 23)

	tests := []struct {
		name    string
		req     models.PaymentConfirmation
		wantErr error
	}{
		{"cancelled", models.PaymentConfirmation{BoletoID: cancelled.ID}, ErrBoletoCancelled},
		{"unknown", models.PaymentConfirmation{BoletoID: uuid.NewString()}, ErrBoletoNotFound},
		{"malformed id", models.PaymentConfirmation{BoletoID: "abc"}, ErrBoletoNotFound},
		{"before issue", models.PaymentConfirmation{BoletoID: pending.ID, PaidAt: &beforeIssue}, ErrInvalidPaidAt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.payments.ConfirmPayment(ctx, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ConfirmPayment() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("invalid channel", func(t *testing.T) {
		_, err := env.payments.ConfirmPayment(ctx, models.PaymentConfirmation{BoletoID: pending.ID, Channel: "cheque"})
		var verrs utils.ValidationErrors
		if !errors.As(err, &verrs) {
			t.Errorf("ConfirmPayment() error = %v, want validation errors", err)
		}
	})

	if got := env.reload(t, pending.ID).Status; got != models.BoletoStatusPending {
		t.Errorf("pending boleto status = %v, want %v", got, models.BoletoStatusPending)
	}
}

func TestConfirmPayment_OwnerStaysDelinquentWithOtherOverdue(t *testing.T) {
	env := newTestEnv(t, at(2024, time.May, 20, 10))
	ctx := context.Background()

	owner := testutil.CreateOwner(t, env.db, "104")
	testutil.SetSituation(t, env.db, owner.ID, models.SituationDelinquent)
	first := testutil.CreateBoleto(t, env.db, owner.ID, "300.00", date(2024, time.April, 1), date(2024, time.April, 10))
	testutil.CreateBoleto(t, env.db, owner.ID, "300.00", date(2024, time.May, 1), date(2024, time.May, 10))

	result, err := env.payments.ConfirmPayment(ctx, models.PaymentConfirmation{BoletoID: first.ID})
	if err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}
	if result.OwnerSituation != models.SituationDelinquent {
		t.Errorf("OwnerSituation = %v, want %v", result.OwnerSituation, models.SituationDelinquent)
	}
	if got := env.storedSituation(t, owner.ID); got != models.SituationDelinquent {
		t.Errorf("stored situation = %v, want %v", got, models.SituationDelinquent)
	}
}

func TestConfirmPayment_InactiveOwnerUntouched(t *testing.T) {
	env := newTestEnv(t, at(2024, time.May, 20, 10))
	ctx := context.Background()

	owner := testutil.CreateOwner(t, env.db, "105")
	testutil.SetSituation(t, env.db, owner.ID, models.SituationInactive)
	boleto := testutil.CreateBoleto(t, env.db, owner.ID, "300.00", date(2024, time.April, 1), date(2024, time.April, 10))

	result, err := env.payments.ConfirmPayment(ctx, models.PaymentConfirmation{BoletoID: boleto.ID})
	if err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}
	if result.OwnerSituation != models.SituationInactive {
		t.Errorf("OwnerSituation = %v, want %v", result.OwnerSituation, models.SituationInactive)
	}
	if got := env.storedSituation(t, owner.ID); got != models.SituationInactive {
		t.Errorf("stored situation = %v, want %v", got, models.SituationInactive)
	}
}

// The test database holds a single connection, so the callers queue on the
// pool and each transaction sees the previous commit. The lost
// compare-and-set itself is covered by TestBoletoStore_CompareAndSet.
func TestConfirmPayment_ParallelCallersApplyOnce(t *testing.T) {
	env := newTestEnv(t, at(2024, time.June, 3, 10))
	ctx := context.Background()

	owner := testutil.CreateOwner(t, env.db, "106")
	boleto := testutil.CreateBoleto(t, env.db, owner.ID, "450.00", date(2024, time.June, 1), date(2024, time.June, 10))

	const workers = 8
	var wg sync.WaitGroup
	outcomes := make(chan models.PaymentOutcome, workers)
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := env.payments.ConfirmPayment(ctx, models.PaymentConfirmation{
				BoletoID: boleto.ID,
				Channel:  models.PaymentChannelPix,
				Source:   models.PaymentSourceWebhook,
			})
			if err != nil {
				errs <- err
				return
			}
			outcomes <- result.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)
	close(errs)

	for err := range errs {
		t.Errorf("ConfirmPayment() error = %v", err)
	}

	counts := make(map[models.PaymentOutcome]int)
	for o := range outcomes {
		counts[o]++
	}
	if counts[models.PaymentOutcomePaid] != 1 {
		t.Errorf("paid outcomes = %d, want 1", counts[models.PaymentOutcomePaid])
	}
	if counts[models.PaymentOutcomeAlreadyPaid] != workers-1 {
		t.Errorf("already_paid outcomes = %d, want %d", counts[models.PaymentOutcomeAlreadyPaid], workers-1)
	}
	if n := env.countActions(t, boleto.ID, models.AuditActionPay); n != 1 {
		t.Errorf("pay audit entries = %d, want 1", n)
	}
}

func TestConfirmPayment_RecordsActorAndSource(t *testing.T) {
	env := newTestEnv(t, at(2024, time.June, 3, 10))
	ctx := context.Background()

	admin := testutil.CreateAdmin(t, env.db)
	owner := testutil.CreateOwner(t, env.db, "107")
	boleto := testutil.CreateBoleto(t, env.db, owner.ID, "80.00", date(2024, time.June, 1), date(2024, time.June, 10))

	_, err := env.payments.ConfirmPayment(ctx, models.PaymentConfirmation{
		BoletoID: boleto.ID,
		Channel:  models.PaymentChannelCash,
		ActorID:  admin.ID,
	})
	if err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}

	log := env.lastAction(t, boleto.ID, models.AuditActionPay)
	if log.UserID != admin.ID {
		t.Errorf("audit UserID = %q, want %q", log.UserID, admin.ID)
	}
	if got := log.Metadata["source"]; got != string(models.PaymentSourceManual) {
		t.Errorf("audit source = %v, want %s", got, models.PaymentSourceManual)
	}
}

func TestConfirmPayment_ComparesCalendarDates(t *testing.T) {
	// 16:00 UTC on March 10 is already March 11 in the billing zone.
	tokyo := time.FixedZone("UTC+9", 9*60*60)
	env := newTestEnvIn(t, at(2024, time.March, 10, 16), tokyo)
	ctx := context.Background()

	owner := testutil.CreateOwner(t, env.db, "108")
	issued := date(2024, time.March, 11)
	due := date(2024, time.March, 20)
	dayBefore := date(2024, time.March, 10)

	t.Run("now on the issue date", func(t *testing.T) {
		boleto := testutil.CreateBoleto(t, env.db, owner.ID, "50.00", issued, due)
		if _, err := env.payments.ConfirmPayment(ctx, models.PaymentConfirmation{BoletoID: boleto.ID}); err != nil {
			t.Errorf("ConfirmPayment() error = %v, want nil", err)
		}
	})

	t.Run("calendar date equal to issue date", func(t *testing.T) {
		boleto := testutil.CreateBoleto(t, env.db, owner.ID, "50.00", issued, due)
		result, err := env.payments.ConfirmPayment(ctx, models.PaymentConfirmation{BoletoID: boleto.ID, PaidOn: &issued})
		if err != nil {
			t.Fatalf("ConfirmPayment() error = %v", err)
		}
		want := time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC)
		if result.Boleto.PaidAt == nil || !result.Boleto.PaidAt.Equal(want) {
			t.Errorf("PaidAt = %v, want %v", result.Boleto.PaidAt, want)
		}
	})

	t.Run("calendar date before issue date", func(t *testing.T) {
		boleto := testutil.CreateBoleto(t, env.db, owner.ID, "50.00", issued, due)
		_, err := env.payments.ConfirmPayment(ctx, models.PaymentConfirmation{BoletoID: boleto.ID, PaidOn: &dayBefore})
		if !errors.Is(err, ErrInvalidPaidAt) {
			t.Errorf("ConfirmPayment() error = %v, want %v", err, ErrInvalidPaidAt)
		}
	})
}
