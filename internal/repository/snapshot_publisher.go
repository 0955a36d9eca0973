package repository

import (
	"context"
	"errors"
	"strconv"

	"CreditIntel/internal/domain/models"
	domrepo "CreditIntel/internal/domain/repository"
	pkgkafka "CreditIntel/pkg/kafka"
)

// KafkaSnapshotPublisher publishes snapshots keyed by client id, so every
// update for one client lands on the same partition in order.
type KafkaSnapshotPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSnapshotPublisher(producer *pkgkafka.Producer, topic string) *KafkaSnapshotPublisher {
	return &KafkaSnapshotPublisher{producer: producer, topic: topic}
}

func (p *KafkaSnapshotPublisher) PublishSnapshot(ctx context.Context, snap models.CreditSnapshot) error {
	return p.producer.Publish(ctx, p.topic, []byte(strconv.FormatInt(snap.ClientID, 10)), snap)
}

// Close is a no-op; the producer is closed by its owner.
func (p *KafkaSnapshotPublisher) Close() error { return nil }

// MultiPublisher fans a snapshot out to every publisher and joins their errors.
type MultiPublisher []domrepo.SnapshotPublisher

func (m MultiPublisher) PublishSnapshot(ctx context.Context, snap models.CreditSnapshot) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishSnapshot(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopPublisher drops every snapshot.
type NopPublisher struct{}

func (NopPublisher) PublishSnapshot(context.Context, models.CreditSnapshot) error { return nil }
func (NopPublisher) Close() error                                                { return nil }

var (
	_ domrepo.SnapshotPublisher = (*KafkaSnapshotPublisher)(nil)
	_ domrepo.SnapshotPublisher = MultiPublisher(nil)
	_ domrepo.SnapshotPublisher = NopPublisher{}
)
