package notify

import (
	"context"

	"go.uber.org/zap"

	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/hit"
	"github.com/caselens/lexalert/internal/logger"
)

// NopMailer stands in when no SMTP endpoint is configured. Deliveries
// are logged and dropped.
type NopMailer struct{}

func (NopMailer) SendAlert(ctx context.Context, to string, hits []hit.Hit) error {
	logger.FromContext(ctx).Info("smtp disabled, dropping alert email",
		zap.String("to", to), zap.Int("hits", len(hits)))
	return nil
}

func (NopMailer) SendDigest(ctx context.Context, to string, rate domalert.Rate, hits []hit.Hit) error {
	logger.FromContext(ctx).Info("smtp disabled, dropping digest email",
		zap.String("to", to), zap.String("rate", string(rate)), zap.Int("hits", len(hits)))
	return nil
}
