package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/malwarebo/condopay/config"
	"github.com/malwarebo/condopay/models"
	"github.com/malwarebo/condopay/stores"
	"github.com/malwarebo/condopay/utils"
)

var (
	ErrBoletoNotFound = errors.New("boleto not found")
	ErrNotPending     = errors.New("only pending boletos can be paid")
	ErrNoPixCharge    = errors.New("boleto has no pix charge")
)

type BoletoSource interface {
	GetByID(ctx context.Context, id string) (*models.Boleto, error)
	ListPendingWithPix(ctx context.Context, limit int) ([]*models.Boleto, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, payload *models.PixWebhookPayload) error
}

// DelivererFunc delivers in-process, bypassing HTTP.
type DelivererFunc func(ctx context.Context, payload *models.PixWebhookPayload) error

func (f DelivererFunc) Deliver(ctx context.Context, payload *models.PixWebhookPayload) error {
	return f(ctx, payload)
}

// Simulator pretends to be the PIX provider: it picks pending boletos that
// carry a charge and notifies the webhook that they were paid.
type Simulator struct {
	source      BoletoSource
	deliverer   Deliverer
	interval    time.Duration
	probability float64
	batchSize   int
	now         func() time.Time

	mu   sync.Mutex
	rand func() float64
}

type Option func(*Simulator)

func WithRandom(fn func() float64) Option {
	return func(s *Simulator) { s.rand = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

func CreateSimulator(source BoletoSource, deliverer Deliverer, cfg config.SimulatorConfig, opts ...Option) *Simulator {
	s := &Simulator{
		source:      source,
		deliverer:   deliverer,
		interval:    cfg.Interval,
		probability: cfg.Probability,
		batchSize:   cfg.BatchSize,
		now:         time.Now,
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())).Float64,
	}
	if s.interval <= 0 {
		s.interval = 30 * time.Second
	}
	if s.batchSize <= 0 {
		s.batchSize = 50
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	utils.Info(ctx, "pix simulator started", map[string]interface{}{
		"interval":    s.interval.String(),
		"probability": s.probability,
	})

	for {
		select {
		case <-ctx.Done():
			utils.Info(ctx, "pix simulator stopped")
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				utils.Error(ctx, "pix simulator tick failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}

// Tick returns how many payments were delivered. Delivery failures are
// logged and skipped.
func (s *Simulator) Tick(ctx context.Context) (int, error) {
	boletos, err := s.source.ListPendingWithPix(ctx, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending boletos: %w", err)
	}

	delivered := 0
	for _, boleto := range boletos {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		if !s.roll() {
			continue
		}
		if err := s.deliverer.Deliver(ctx, s.payload(boleto)); err != nil {
			utils.Warn(ctx, "simulated payment not delivered", map[string]interface{}{
				"boleto_id": boleto.ID,
				"error":     err.Error(),
			})
			continue
		}
		delivered++
	}

	if delivered > 0 {
		utils.Info(ctx, "simulated pix payments delivered", map[string]interface{}{
			"candidates": len(boletos),
			"delivered":  delivered,
		})
	}
	return delivered, nil
}

// SimulatePayment delivers a PAID notification for one boleto regardless of
// the configured probability.
func (s *Simulator) SimulatePayment(ctx context.Context, boletoID string) (*models.PixWebhookPayload, error) {
	if utils.ValidateUUID(boletoID, "boleto_id") != nil {
		return nil, ErrBoletoNotFound
	}
	boleto, err := s.source.GetByID(ctx, boletoID)
	if err != nil {
		if stores.IsNotFound(err) {
			return nil, ErrBoletoNotFound
		}
		return nil, fmt.Errorf("failed to load boleto: %w", err)
	}
	if boleto.Status != models.BoletoStatusPending {
		return nil, ErrNotPending
	}
	if boleto.PixTxID == nil || *boleto.PixTxID == "" {
		return nil, ErrNoPixCharge
	}

	payload := s.payload(boleto)
	if err := s.deliverer.Deliver(ctx, payload); err != nil {
		return nil, fmt.Errorf("failed to deliver simulated payment: %w", err)
	}
	return payload, nil
}

func (s *Simulator) payload(boleto *models.Boleto) *models.PixWebhookPayload {
	total := boleto.Total()
	paidAt := s.now().UTC()
	return &models.PixWebhookPayload{
		TxID:      *boleto.PixTxID,
		Status:    models.PixStatusPaid,
		Amount:    &total,
		PaidAt:    &paidAt,
		BoletoID:  boleto.ID,
		Simulated: true,
	}
}

func (s *Simulator) roll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand() < s.probability
}
