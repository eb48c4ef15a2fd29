package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/malwarebo/condopay/analytics"
	"github.com/malwarebo/condopay/cache"
	"github.com/malwarebo/condopay/config"
	"github.com/malwarebo/condopay/middleware"
	"github.com/malwarebo/condopay/models"
	"github.com/malwarebo/condopay/monitoring"
	"github.com/malwarebo/condopay/security"
	"github.com/malwarebo/condopay/services"
	"github.com/malwarebo/condopay/stores"
	"github.com/malwarebo/condopay/testutil"
	"gorm.io/gorm"
)

const (
	testJWTSecret     = "router-test-secret"
	testWebhookSecret = "router-webhook-secret"
)

type apiTest struct {
	t      *testing.T
	db     *gorm.DB
	router http.Handler
	jwt    *security.JWTManager
	admin  *models.User
}

func newAPITest(t *testing.T, now time.Time) *apiTest {
	t.Helper()

	gormDB := testutil.NewDB(t)
	calendar := services.CreateCalendar(time.UTC, testutil.FixedClock(now))

	boletoStore := stores.CreateBoletoStore(gormDB)
	userStore := stores.CreateUserStore(gormDB)
	audit := services.CreateAuditService(stores.CreateAuditStore(gormDB))
	tracker := services.CreateDelinquencyTracker(boletoStore, userStore, calendar)
	payments := services.CreatePaymentService(boletoStore, tracker, audit, calendar)
	boletos := services.CreateBoletoService(boletoStore, userStore, stores.CreateSequenceStore(gormDB), tracker, audit, calendar)
	pixService := services.CreatePixService(boletoStore, stores.CreateWebhookStore(gormDB), payments, audit, calendar, config.PixConfig{
		Key:          "financeiro@condominio.example",
		MerchantName: "Condominio Jardim",
		MerchantCity: "Sao Paulo",
		Expiration:   time.Hour,
	})
	users := services.CreateUserService(userStore, tracker, audit)

	jwt := security.CreateJWTManager(testJWTSecret, security.DefaultIssuer, security.DefaultAudience)
	router := NewRouter(RouterConfig{
		Boletos:        CreateBoletoHandler(boletos, payments, analytics.SlipPayee{Name: "Condominio Jardim", City: "Sao Paulo"}),
		Pix:            CreatePixHandler(pixService, nil),
		Users:          CreateUserHandler(users),
		Health:         CreateHealthHandler(monitoring.CreateHealthService("test")),
		Auth:           middleware.CreateAuthMiddleware(jwt, nil),
		Idempotency:    middleware.IdempotencyMiddleware(stores.CreateIdempotencyStore(gormDB), time.Hour),
		Webhook:        middleware.WebhookSignatureMiddleware(testWebhookSecret, cache.CreateMemoryReplayGuard(time.Hour)),
		AllowedOrigins: []string{"https://app.example.com"},
		MaxBodyBytes:   1 << 20,
	})

	return &apiTest{
		t:      t,
		db:     gormDB,
		router: router,
		jwt:    jwt,
		admin:  testutil.CreateAdmin(t, gormDB),
	}
}

func (a *apiTest) token(user *models.User) string {
	a.t.Helper()
	token, err := a.jwt.GenerateToken(user.ID, user.Email, string(user.Role), time.Hour)
	if err != nil {
		a.t.Fatalf("GenerateToken() error = %v", err)
	}
	return token
}

func (a *apiTest) do(method, path string, user *models.User, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	a.t.Helper()

	var payload []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		payload = b
	default:
		var err error
		if payload, err = json.Marshal(b); err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+a.token(user))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope %q: %v", rec.Body.String(), err)
	}
	if v == nil {
		return
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data %q: %v", env.Data, err)
	}
}

func TestRouter_Authentication(t *testing.T) {
	a := newAPITest(t, time.Date(2024, time.May, 2, 12, 0, 0, 0, time.UTC))
	owner := testutil.CreateOwner(t, a.db, "10")

	expired, err := a.jwt.GenerateToken(owner.ID, owner.Email, string(owner.Role), -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	tests := []struct {
		name    string
		method  string
		path    string
		user    *models.User
		headers map[string]string
		want    int
	}{
		{"health is public", http.MethodGet, "/api/health", nil, nil, http.StatusOK},
		{"missing token", http.MethodGet, "/api/boletos", nil, nil, http.StatusUnauthorized},
		{"malformed header", http.MethodGet, "/api/boletos", nil, map[string]string{"Authorization": "Token abc"}, http.StatusUnauthorized},
		{"forged token", http.MethodGet, "/api/boletos", nil, map[string]string{"Authorization": "Bearer a.b.c"}, http.StatusUnauthorized},
		{"expired token", http.MethodGet, "/api/boletos", nil, map[string]string{"Authorization": "Bearer " + expired}, http.StatusUnauthorized},
		{"owner lists own boletos", http.MethodGet, "/api/boletos", owner, nil, http.StatusOK},
		{"owner cannot create", http.MethodPost, "/api/boletos", owner, nil, http.StatusForbidden},
		{"owner cannot list users", http.MethodGet, "/api/users", owner, nil, http.StatusForbidden},
		{"owner cannot read stats", http.MethodGet, "/api/boletos/stats", owner, nil, http.StatusForbidden},
		{"admin reads stats", http.MethodGet, "/api/boletos/stats", a.admin, nil, http.StatusOK},
		{"simulator disabled", http.MethodPost, "/api/pix/simulate-payment/" + owner.ID, a.admin, nil, http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/nothing", a.admin, nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(tt.method, tt.path, tt.user, nil, tt.headers)
			if rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d (body %s)", tt.method, tt.path, rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRouter_BoletoLifecycle(t *testing.T) {
	a := newAPITest(t, time.Date(2024, time.February, 1, 12, 0, 0, 0, time.UTC))
	owner := testutil.CreateOwner(t, a.db, "21")
	testutil.SetSituation(t, a.db, owner.ID, models.SituationDelinquent)

	rec := a.do(http.MethodPost, "/api/boletos", a.admin, map[string]interface{}{
		"owner_id":    owner.ID,
		"description": "Taxa condominial janeiro",
		"amount":      "350.00",
		"issue_date":  "2024-01-01",
		"due_date":    "2024-01-10",
		"category":    "taxa_condominio",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	var created models.BoletoView
	decode(t, rec, &created)
	if created.Number != "000001" || created.Status != models.BoletoStatusOverdue || created.Total != "350.00" {
		t.Errorf("created = (%s, %s, %s), want (000001, overdue, 350.00)", created.Number, created.Status, created.Total)
	}

	rec = a.do(http.MethodGet, "/api/boletos?status=overdue", a.admin, nil, nil)
	var list models.BoletoListResponse
	decode(t, rec, &list)
	if list.Total != 1 {
		t.Errorf("overdue list total = %d, want 1", list.Total)
	}

	path := "/api/boletos/" + created.ID + "/pay"
	rec = a.do(http.MethodPut, path, a.admin, map[string]string{"payment_date": "2024-02-02", "payment_channel": "transfer"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pay = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var paid models.PaymentResult
	decode(t, rec, &paid)
	if paid.Outcome != models.PaymentOutcomePaid || paid.OwnerSituation != models.SituationActive {
		t.Errorf("pay = (%s, %s), want (paid, active)", paid.Outcome, paid.OwnerSituation)
	}
	if paid.View == nil || paid.View.PaidAt == nil || !paid.View.PaidAt.Equal(time.Date(2024, time.February, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("paid_at = %v, want 2024-02-02T00:00:00Z", paid.View)
	}

	rec = a.do(http.MethodPut, path, a.admin, nil, nil)
	decode(t, rec, &paid)
	if rec.Code != http.StatusOK || paid.Outcome != models.PaymentOutcomeAlreadyPaid {
		t.Errorf("second pay = (%d, %s), want (200, already_paid)", rec.Code, paid.Outcome)
	}

	rec = a.do(http.MethodDelete, "/api/boletos/"+created.ID, a.admin, nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("cancel paid = %d, want 400", rec.Code)
	}

	rec = a.do(http.MethodGet, "/api/boletos/"+created.ID+"/history", a.admin, nil, nil)
	var history []models.AuditLog
	decode(t, rec, &history)
	if len(history) != 2 {
		t.Errorf("history entries = %d, want 2 (create, pay)", len(history))
	}

	rec = a.do(http.MethodGet, "/api/boletos/"+created.ID+"/slip", owner, nil, nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/pdf" {
		t.Errorf("slip = (%d, %s), want (200, application/pdf)", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestRouter_PayRejectsBadInput(t *testing.T) {
	a := newAPITest(t, time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC))
	owner := testutil.CreateOwner(t, a.db, "22")
	boleto := testutil.CreateBoleto(t, a.db, owner.ID, "100.00", models.NewDate(2024, time.March, 1), models.NewDate(2024, time.March, 10))

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"bad date", map[string]string{"payment_date": "15/03/2024"}, http.StatusBadRequest},
		{"before issue", map[string]string{"payment_date": "2024-02-28"}, http.StatusBadRequest},
		{"bad channel", map[string]string{"payment_channel": "cheque"}, http.StatusBadRequest},
		{"bad json", []byte(`{"payment_date":`), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(http.MethodPut, "/api/boletos/"+boleto.ID+"/pay", a.admin, tt.body, nil)
			if rec.Code != tt.want {
				t.Errorf("pay = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	rec := a.do(http.MethodPut, "/api/boletos/"+owner.ID+"/pay", a.admin, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("pay unknown = %d, want 404", rec.Code)
	}
}

func TestRouter_MalformedIDsAreNotFound(t *testing.T) {
	a := newAPITest(t, time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC))

	tests := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodGet, "/api/boletos/abc", nil},
		{http.MethodGet, "/api/boletos/abc/slip", nil},
		{http.MethodGet, "/api/boletos/abc/history", nil},
		{http.MethodPut, "/api/boletos/abc", map[string]string{"notes": "x"}},
		{http.MethodPut, "/api/boletos/abc/pay", nil},
		{http.MethodDelete, "/api/boletos/abc", nil},
		{http.MethodGet, "/api/users/abc", nil},
		{http.MethodPut, "/api/users/abc", map[string]string{"name": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := a.do(tt.method, tt.path, a.admin, tt.body, nil)
			if rec.Code != http.StatusNotFound {
				t.Errorf("%s %s = %d, want 404 (body %s)", tt.method, tt.path, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRouter_OwnerVisibility(t *testing.T) {
	a := newAPITest(t, time.Date(2024, time.April, 5, 12, 0, 0, 0, time.UTC))
	alice := testutil.CreateOwner(t, a.db, "31")
	bob := testutil.CreateOwner(t, a.db, "32")
	mine := testutil.CreateBoleto(t, a.db, alice.ID, "10.00", models.NewDate(2024, time.April, 1), models.NewDate(2024, time.April, 10))
	theirs := testutil.CreateBoleto(t, a.db, bob.ID, "10.00", models.NewDate(2024, time.April, 1), models.NewDate(2024, time.April, 10))

	rec := a.do(http.MethodGet, "/api/boletos?owner_id="+bob.ID, alice, nil, nil)
	var list models.BoletoListResponse
	decode(t, rec, &list)
	if list.Total != 1 || len(list.Boletos) != 1 || list.Boletos[0].ID != mine.ID {
		t.Errorf("owner list = %+v, want only own boleto", list)
	}

	rec = a.do(http.MethodGet, "/api/boletos", a.admin, nil, nil)
	decode(t, rec, &list)
	if list.Total != 2 {
		t.Errorf("admin list total = %d, want 2", list.Total)
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{"own boleto", "/api/boletos/" + mine.ID, http.StatusOK},
		{"foreign boleto", "/api/boletos/" + theirs.ID, http.StatusNotFound},
		{"foreign slip", "/api/boletos/" + theirs.ID + "/slip", http.StatusNotFound},
		{"own profile", "/api/users/" + alice.ID, http.StatusOK},
		{"foreign profile", "/api/users/" + bob.ID, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(http.MethodGet, tt.path, alice, nil, nil)
			if rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
			}
		})
	}
}

func TestRouter_BulkCreate(t *testing.T) {
	a := newAPITest(t, time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC))

	ids := []string{}
	for _, unit := range []string{"41", "42", "43", "44"} {
		ids = append(ids, testutil.CreateOwner(t, a.db, unit).ID)
	}
	ids = append(ids, a.admin.ID)

	rec := a.do(http.MethodPost, "/api/boletos/bulk-create", a.admin, map[string]interface{}{
		"owner_ids":   ids,
		"description": "Taxa extra pintura",
		"amount":      "120.00",
		"due_date":    "2024-06-10",
		"category":    "taxa_extra",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("bulk create = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	var result models.BulkCreateResponse
	decode(t, rec, &result)
	if result.Created != 4 || len(result.Boletos) != 4 {
		t.Errorf("created = %d/%d, want 4", result.Created, len(result.Boletos))
	}
	if len(result.Errors) != 1 || result.Errors[0].OwnerID != a.admin.ID {
		t.Errorf("errors = %+v, want one entry for the admin id", result.Errors)
	}
}

func TestRouter_Idempotency(t *testing.T) {
	a := newAPITest(t, time.Date(2024, time.July, 1, 12, 0, 0, 0, time.UTC))
	owner := testutil.CreateOwner(t, a.db, "51")

	body := map[string]interface{}{
		"owner_id":    owner.ID,
		"description": "Taxa condominial julho",
		"amount":      "410.00",
		"due_date":    "2024-07-10",
		"category":    "taxa_condominio",
	}
	headers := map[string]string{middleware.IdempotencyKeyHeader: "create-51-july"}

	first := a.do(http.MethodPost, "/api/boletos", a.admin, body, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("first = %d, want 201 (body %s)", first.Code, first.Body.String())
	}

	second := a.do(http.MethodPost, "/api/boletos", a.admin, body, headers)
	if second.Code != http.StatusCreated {
		t.Errorf("replay = %d, want 201", second.Code)
	}
	if second.Header().Get(middleware.ReplayedHeader) != "true" {
		t.Errorf("replay header = %q, want true", second.Header().Get(middleware.ReplayedHeader))
	}
	if second.Body.String() != first.Body.String() {
		t.Errorf("replay body = %s, want %s", second.Body.String(), first.Body.String())
	}

	body["amount"] = "999.00"
	third := a.do(http.MethodPost, "/api/boletos", a.admin, body, headers)
	if third.Code != http.StatusUnprocessableEntity {
		t.Errorf("reused key = %d, want 422", third.Code)
	}

	var count int64
	a.db.Model(&models.Boleto{}).Count(&count)
	if count != 1 {
		t.Errorf("boletos = %d, want 1", count)
	}
}

func TestRouter_PixWebhook(t *testing.T) {
	a := newAPITest(t, time.Date(2024, time.August, 5, 12, 0, 0, 0, time.UTC))
	owner := testutil.CreateOwner(t, a.db, "61")
	boleto := testutil.CreateBoleto(t, a.db, owner.ID, "199.90", models.NewDate(2024, time.August, 1), models.NewDate(2024, time.August, 10))

	rec := a.do(http.MethodPost, "/api/pix/generate", a.admin, map[string]string{"boleto_id": boleto.ID}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	var charge models.PixCharge
	decode(t, rec, &charge)

	payload, _ := json.Marshal(map[string]string{"txid": charge.TxID, "status": "PAID", "amount": "199.90"})
	signed := func(deliveryID string) map[string]string {
		return map[string]string{
			security.SignatureHeader: security.SignPayload(payload, testWebhookSecret),
			security.EventIDHeader:   deliveryID,
		}
	}

	rec = a.do(http.MethodPost, "/api/pix/webhook", nil, payload, map[string]string{security.SignatureHeader: "deadbeef"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad signature = %d, want 401", rec.Code)
	}

	rec = a.do(http.MethodPost, "/api/pix/webhook", nil, payload, signed("delivery-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var result models.PixWebhookResult
	decode(t, rec, &result)
	if result.Outcome != models.WebhookOutcomeProcessed {
		t.Errorf("outcome = %s, want processed", result.Outcome)
	}

	rec = a.do(http.MethodPost, "/api/pix/webhook", nil, payload, signed("delivery-1"))
	if rec.Code != http.StatusConflict {
		t.Errorf("replayed delivery = %d, want 409", rec.Code)
	}

	rec = a.do(http.MethodPost, "/api/pix/webhook", nil, payload, signed("delivery-2"))
	decode(t, rec, &result)
	if rec.Code != http.StatusOK || result.Outcome != models.WebhookOutcomeDuplicate {
		t.Errorf("redelivery = (%d, %s), want (200, duplicate)", rec.Code, result.Outcome)
	}

	unknown, _ := json.Marshal(map[string]string{"txid": "UNKNOWN", "status": "PAID"})
	rec = a.do(http.MethodPost, "/api/pix/webhook", nil, unknown, map[string]string{
		security.SignatureHeader: security.SignPayload(unknown, testWebhookSecret),
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown txid = %d, want 404", rec.Code)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	a := newAPITest(t, time.Date(2024, time.August, 5, 12, 0, 0, 0, time.UTC))

	tests := []struct {
		origin     string
		wantOrigin string
	}{
		{"https://app.example.com", "https://app.example.com"},
		{"https://evil.example.com", ""},
	}
	for _, tt := range tests {
		rec := a.do(http.MethodOptions, "/api/boletos", nil, nil, map[string]string{"Origin": tt.origin})
		if rec.Code != http.StatusNoContent {
			t.Errorf("preflight from %s = %d, want 204", tt.origin, rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
			t.Errorf("Allow-Origin for %s = %q, want %q", tt.origin, got, tt.wantOrigin)
		}
		if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("security headers missing on preflight")
		}
	}
}
