package services

import (
	"sync"
	"testing"
	"time"

	"github.com/malwarebo/condopay/config"
	"github.com/malwarebo/condopay/models"
	"github.com/malwarebo/condopay/stores"
	"github.com/malwarebo/condopay/testutil"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type testEnv struct {
	db       *gorm.DB
	clock    *testClock
	boletos  *stores.BoletoStore
	users    *stores.UserStore
	webhooks *stores.WebhookStore
	audit    *AuditService
	tracker  *DelinquencyTracker
	payments *PaymentService
	billing  *BoletoService
	pix      *PixService
	people   *UserService
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	return newTestEnvIn(t, now, time.UTC)
}

// newTestEnvIn builds the services with "today" taken in loc.
func newTestEnvIn(t *testing.T, now time.Time, loc *time.Location) *testEnv {
	t.Helper()

	gormDB := testutil.NewDB(t)
	clock := &testClock{now: now}
	calendar := CreateCalendar(loc, clock.Now)

	boletoStore := stores.CreateBoletoStore(gormDB)
	userStore := stores.CreateUserStore(gormDB)
	webhookStore := stores.CreateWebhookStore(gormDB)
	audit := CreateAuditService(stores.CreateAuditStore(gormDB))
	tracker := CreateDelinquencyTracker(boletoStore, userStore, calendar)
	payments := CreatePaymentService(boletoStore, tracker, audit, calendar)

	return &testEnv{
		db:       gormDB,
		clock:    clock,
		boletos:  boletoStore,
		users:    userStore,
		webhooks: webhookStore,
		audit:    audit,
		tracker:  tracker,
		payments: payments,
		billing:  CreateBoletoService(boletoStore, userStore, stores.CreateSequenceStore(gormDB), tracker, audit, calendar),
		pix: CreatePixService(boletoStore, webhookStore, payments, audit, calendar, config.PixConfig{
			Key:          "financeiro@condominio.example",
			MerchantName: "Condominio Jardim",
			MerchantCity: "Sao Paulo",
			Expiration:   time.Hour,
		}),
		people: CreateUserService(userStore, tracker, audit),
	}
}

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func date(year int, month time.Month, day int) models.Date {
	return models.NewDate(year, month, day)
}

func money(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func (e *testEnv) reload(t *testing.T, id string) *models.Boleto {
	t.Helper()
	var boleto models.Boleto
	if err := e.db.First(&boleto, "id = ?", id).Error; err != nil {
		t.Fatalf("reload boleto: %v", err)
	}
	return &boleto
}

func (e *testEnv) storedSituation(t *testing.T, userID string) models.Situation {
	t.Helper()
	var user models.User
	if err := e.db.First(&user, "id = ?", userID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return user.Situation
}

func (e *testEnv) lastAction(t *testing.T, resourceID string, action models.AuditAction) *models.AuditLog {
	t.Helper()
	var log models.AuditLog
	err := e.db.Where("resource_id = ? AND action = ?", resourceID, string(action)).
		Order("created_at DESC").
		First(&log).Error
	if err != nil {
		t.Fatalf("load audit log: %v", err)
	}
	return &log
}

func (e *testEnv) countActions(t *testing.T, resourceID string, action models.AuditAction) int64 {
	t.Helper()
	var count int64
	err := e.db.Model(&models.AuditLog{}).
		Where("resource_id = ? AND action = ?", resourceID, string(action)).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count audit logs: %v", err)
	}
	return count
}
