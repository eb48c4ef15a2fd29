package simulator

import (
	"context"

	"github.com/malwarebo/condopay/models"
	"github.com/malwarebo/condopay/monitoring"
	"github.com/malwarebo/condopay/utils"
	"github.com/malwarebo/condopay/webhooks"
)

// HTTPDeliverer posts notifications to the webhook endpoint the same way the
// real provider would, signed with the shared webhook secret.
type HTTPDeliverer struct {
	sender *webhooks.Sender
}

func CreateHTTPDeliverer(sender *webhooks.Sender) *HTTPDeliverer {
	return &HTTPDeliverer{sender: sender}
}

func (d *HTTPDeliverer) Deliver(ctx context.Context, payload *models.PixWebhookPayload) error {
	delivery, err := d.sender.Send(ctx, payload.EventID(), payload)
	monitoring.RecordSimulatorDelivery(err == nil)
	if err != nil {
		fields := map[string]interface{}{
			"txid":  payload.TxID,
			"url":   d.sender.URL(),
			"error": err.Error(),
		}
		if delivery != nil {
			fields["attempts"] = delivery.Attempts
			fields["status_code"] = delivery.StatusCode
		}
		utils.Warn(ctx, "simulator webhook delivery failed", fields)
		return err
	}

	utils.Debug(ctx, "simulator webhook delivered", map[string]interface{}{
		"txid":        payload.TxID,
		"status_code": delivery.StatusCode,
		"attempts":    delivery.Attempts,
	})
	return nil
}
