package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"CreditIntel/internal/domain/models"
	domrepo "CreditIntel/internal/domain/repository"
	pkgkafka "CreditIntel/pkg/kafka"
	applogger "CreditIntel/pkg/logger"
	"CreditIntel/pkg/metrics"
)

// KafkaActivityHandler recalculates a client whenever the ERP reports
// order, payment or invoice activity for it.
type KafkaActivityHandler struct {
	topic   string
	calc    Calculator
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewKafkaActivityHandler(topic string, calc Calculator, m domrepo.Metrics) *KafkaActivityHandler {
	if m == nil {
		m = metrics.Nop{}
	}
	return &KafkaActivityHandler{topic: topic, calc: calc, metrics: m, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (h *KafkaActivityHandler) SetLogger(l *applogger.Logger) { h.l = l }

func (h *KafkaActivityHandler) Topic() string { return h.topic }

// incoming message schema: {type, clientId, occurredAt}
func (h *KafkaActivityHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.ActivityEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode activity event: %w", err))
	}
	if !ev.Triggers() {
		return nil
	}

	_, err := h.calc.Calculate(ctx, ev.ClientID, nil)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrClientNotFound):
		h.l.Warn("activity for unknown client dropped",
			applogger.ClientID(ev.ClientID),
			applogger.String("type", ev.Type))
		return nil
	case isPermanent(err):
		return pkgkafka.Permanent(err)
	default:
		return err
	}
}

var _ pkgkafka.MessageHandler = (*KafkaActivityHandler)(nil)
