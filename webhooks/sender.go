package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/malwarebo/condopay/security"
	"github.com/malwarebo/condopay/utils"
)

const defaultTimeout = 10 * time.Second

// StatusError is returned when the receiver answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook receiver returned %d: %s", e.StatusCode, e.Body)
}

type Delivery struct {
	EventID    string        `json:"event_id"`
	URL        string        `json:"url"`
	StatusCode int           `json:"status_code"`
	Attempts   int           `json:"attempts"`
	Duration   time.Duration `json:"duration"`
}

// Sender posts signed JSON notifications to a single endpoint.
type Sender struct {
	url    string
	secret string
	client *http.Client
	retry   *utils.RetryConfig
	breaker *Breaker
	now     func() time.Time
}

type SenderOption func(*Sender)

func WithHTTPClient(client *http.Client) SenderOption {
	return func(s *Sender) { s.client = client }
}

func WithRetry(cfg *utils.RetryConfig) SenderOption {
	return func(s *Sender) { s.retry = cfg }
}

func WithBreaker(b *Breaker) SenderOption {
	return func(s *Sender) { s.breaker = b }
}

func CreateSender(url, secret string, opts ...SenderOption) *Sender {
	s := &Sender{
		url:     url,
		secret:  secret,
		client:  &http.Client{Timeout: defaultTimeout},
		retry:   utils.DefaultRetryConfig(),
		breaker: CreateBreaker(5, time.Minute),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sender) URL() string {
	return s.url
}

// Send marshals event, signs it and posts it, retrying transport errors and
// 5xx answers. A 4xx answer is not retried. While the breaker is open Send
// fails fast with ErrEndpointUnavailable.
func (s *Sender) Send(ctx context.Context, eventID string, event interface{}) (*Delivery, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	delivery := &Delivery{EventID: eventID, URL: s.url}
	if !s.breaker.Allow() {
		return delivery, ErrEndpointUnavailable
	}
	start := s.now()
	err = utils.Retry(ctx, s.retry, func() error {
		delivery.Attempts++
		code, err := s.post(ctx, eventID, payload)
		delivery.StatusCode = code
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode < 500 {
				return utils.Permanent(err)
			}
			return err
		}
		return nil
	})
	delivery.Duration = s.now().Sub(start)

	// Rejections mean the endpoint is up.
	var statusErr *StatusError
	if err != nil && errors.As(err, &statusErr) && statusErr.StatusCode < 500 {
		s.breaker.Record(nil)
	} else {
		s.breaker.Record(err)
	}
	return delivery, err
}

func (s *Sender) post(ctx context.Context, eventID string, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return 0, utils.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(security.SignatureHeader, security.SignPayload(payload, s.secret))
	req.Header.Set(security.EventIDHeader, eventID)
	req.Header.Set(security.TimestampHeader, strconv.FormatInt(s.now().Unix(), 10))

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return resp.StatusCode, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
}
