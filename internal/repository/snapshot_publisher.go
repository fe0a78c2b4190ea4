package repository

import (
	"context"
	"fmt"
	"time"

	"CoinPull/internal/domain/models"
	"CoinPull/internal/domain/repository"
)

// messageWriter is the part of pkg/kafka.Producer used here.
type messageWriter interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaSnapshotPublisher implements SnapshotPublisher for Kafka. Each snapshot
// becomes one message keyed by its attempt id.
type KafkaSnapshotPublisher struct {
	producer messageWriter
	topic    string
}

// NewKafkaSnapshotPublisher creates Kafka snapshot publisher.
func NewKafkaSnapshotPublisher(producer messageWriter, topic string) repository.SnapshotPublisher {
	return &KafkaSnapshotPublisher{producer: producer, topic: topic}
}

type assetSummary struct {
	ID           string  `json:"id"`
	Symbol       string  `json:"symbol"`
	Rank         int     `json:"rank"`
	CurrentPrice float64 `json:"current_price"`
	Change24hPct float64 `json:"change_24h_pct"`
	Points       int     `json:"points"`
}

type snapshotMessage struct {
	AttemptID  string            `json:"attempt_id"`
	Mode       models.Mode       `json:"mode"`
	AcquiredAt time.Time         `json:"acquired_at"`
	Horizon    int               `json:"horizon"`
	Assets     []assetSummary    `json:"assets"`
	Forecasts  []models.Forecast `json:"forecasts"`
	Report     models.Report     `json:"report"`
}

func newSnapshotMessage(s *models.Snapshot) snapshotMessage {
	msg := snapshotMessage{
		AttemptID:  s.Batch.AttemptID,
		Mode:       s.Batch.Mode,
		AcquiredAt: s.Batch.AcquiredAt,
		Horizon:    s.Horizon,
		Assets:     make([]assetSummary, 0, s.Batch.Len()),
		Forecasts:  s.Forecasts,
		Report:     s.Report,
	}
	for _, a := range s.Batch.Assets {
		msg.Assets = append(msg.Assets, assetSummary{
			ID:           a.ID,
			Symbol:       a.Symbol,
			Rank:         a.Rank,
			CurrentPrice: a.CurrentPrice,
			Change24hPct: a.Change24hPct,
			Points:       len(a.Series),
		})
	}
	return msg
}

func (p *KafkaSnapshotPublisher) PublishSnapshot(ctx context.Context, s *models.Snapshot) error {
	if s == nil || s.Batch == nil {
		return fmt.Errorf("publish snapshot: empty snapshot")
	}
	return p.producer.Publish(ctx, p.topic, []byte(s.Batch.AttemptID), newSnapshotMessage(s))
}

func (p *KafkaSnapshotPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
