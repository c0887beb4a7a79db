package repository

import (
	"context"

	"FinSqueeze/internal/domain/models"
	domrepo "FinSqueeze/internal/domain/repository"
	pkgkafka "FinSqueeze/pkg/kafka"
)

// KafkaAnalysisPublisher publishes aggregate analyses keyed by symbol, so every
// update for one instrument lands on the same partition.
type KafkaAnalysisPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.AnalysisPublisher = (*KafkaAnalysisPublisher)(nil)

func NewKafkaAnalysisPublisher(producer *pkgkafka.Producer, topic string) *KafkaAnalysisPublisher {
	return &KafkaAnalysisPublisher{producer: producer, topic: topic}
}

func (p *KafkaAnalysisPublisher) PublishAnalysis(ctx context.Context, a *models.AggregateAnalysis) error {
	return p.producer.Publish(ctx, p.topic, []byte(a.Symbol), a)
}

func (p *KafkaAnalysisPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher drops analyses; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishAnalysis(context.Context, *models.AggregateAnalysis) error { return nil }
func (NopPublisher) Close() error                                                     { return nil }
