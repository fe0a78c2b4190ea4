package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPull/internal/domain/models"
)

type captured struct {
	topic string
	key   []byte
	value interface{}
}

type fakeWriter struct {
	sent   []captured
	closed bool
}

func (w *fakeWriter) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	w.sent = append(w.sent, captured{topic: topic, key: key, value: value})
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSnapshotPublisher(t *testing.T) {
	w := &fakeWriter{}
	pub := NewKafkaSnapshotPublisher(w, "coinpull.snapshots")

	snap := &models.Snapshot{
		Batch: &models.Batch{
			AttemptID:  "a-1",
			Mode:       models.ModeDemo,
			AcquiredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Assets: []models.Asset{{
				ID: "bitcoin", Symbol: "BTC", Rank: 1, CurrentPrice: 45000,
				Series: []models.PricePoint{{Price: 1}, {Price: 2}},
			}},
		},
		Forecasts: []models.Forecast{{AssetID: "bitcoin", ProjectedChangePct: 1, Trend: models.TrendBullish}},
		Report:    models.Report{AssetCount: 1},
		Horizon:   6,
	}
	require.NoError(t, pub.PublishSnapshot(context.Background(), snap))

	require.Len(t, w.sent, 1)
	assert.Equal(t, "coinpull.snapshots", w.sent[0].topic)
	assert.Equal(t, []byte("a-1"), w.sent[0].key)

	msg, ok := w.sent[0].value.(snapshotMessage)
	require.True(t, ok)
	assert.Equal(t, models.ModeDemo, msg.Mode)
	require.Len(t, msg.Assets, 1)
	assert.Equal(t, 2, msg.Assets[0].Points)
	assert.Equal(t, 1, msg.Report.AssetCount)

	require.NoError(t, pub.Close())
	assert.True(t, w.closed)
}

func TestKafkaSnapshotPublisherRejectsEmpty(t *testing.T) {
	pub := NewKafkaSnapshotPublisher(&fakeWriter{}, "t")
	assert.Error(t, pub.PublishSnapshot(context.Background(), nil))
	assert.Error(t, pub.PublishSnapshot(context.Background(), &models.Snapshot{}))
}
