package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/malwarebo/condopay/security"
	"github.com/malwarebo/condopay/utils"
)

func fastRetry() *utils.RetryConfig {
	return &utils.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, BackoffType: utils.Fixed}
}

func TestSender_SignsPayload(t *testing.T) {
	var gotSig, gotID string
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(security.SignatureHeader)
		gotID = r.Header.Get(security.EventIDHeader)
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := CreateSender(server.URL, "secret", WithRetry(fastRetry()))
	delivery, err := sender.Send(context.Background(), "tx1:PAID", map[string]string{"txid": "tx1"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if delivery.StatusCode != http.StatusOK {
		t.Errorf("Send() status = %d, want %d", delivery.StatusCode, http.StatusOK)
	}
	if gotID != "tx1:PAID" {
		t.Errorf("event id header = %q, want %q", gotID, "tx1:PAID")
	}
	if !security.VerifySignature(body, "secret", gotSig) {
		t.Errorf("signature %q does not verify for body %s", gotSig, body)
	}
}

func TestSender_Retries(t *testing.T) {
	tests := []struct {
		name         string
		failures     int32
		failStatus   int
		wantAttempts int
		wantErr      bool
	}{
		{name: "Recovers after server errors", failures: 2, failStatus: http.StatusBadGateway, wantAttempts: 3},
		{name: "Gives up after max attempts", failures: 5, failStatus: http.StatusServiceUnavailable, wantAttempts: 3, wantErr: true},
		{name: "Client error is not retried", failures: 5, failStatus: http.StatusBadRequest, wantAttempts: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&calls, 1) <= tt.failures {
					w.WriteHeader(tt.failStatus)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			sender := CreateSender(server.URL, "secret", WithRetry(fastRetry()))
			delivery, err := sender.Send(context.Background(), "evt", struct{}{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Send() error = %v, wantErr %v", err, tt.wantErr)
			}
			if delivery.Attempts != tt.wantAttempts {
				t.Errorf("Send() attempts = %d, want %d", delivery.Attempts, tt.wantAttempts)
			}
			if tt.wantErr {
				var statusErr *StatusError
				if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.failStatus {
					t.Errorf("Send() error = %v, want StatusError %d", err, tt.failStatus)
				}
			}
		})
	}
}
