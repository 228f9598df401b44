package repository

import (
	"context"
	"database/sql"
	"fmt"

	"TwsePulse/internal/domain/models"
	"TwsePulse/internal/domain/repository"
	pkgkafka "TwsePulse/pkg/kafka"
)

// snapshotSchema is applied idempotently on startup.
var snapshotSchema = []string{
	`CREATE TABLE IF NOT EXISTS quote_snapshots (
		fetched_at     DateTime,
		as_of          DateTime,
		channel        LowCardinality(String),
		symbol         LowCardinality(String),
		name           String,
		price          Float64,
		prev_close     Float64,
		change         Float64,
		change_percent Float64,
		open           Float64,
		high           Float64,
		low            Float64,
		volume         Float64
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(fetched_at)
	ORDER BY (symbol, fetched_at)`,
}

// ClickHouseSnapshotSink implements SnapshotSink over a ClickHouse table.
type ClickHouseSnapshotSink struct {
	db    *sql.DB
	table string
}

// NewClickHouseSnapshotSink creates a ClickHouse-backed sink.
func NewClickHouseSnapshotSink(db *sql.DB, table string) repository.SnapshotSink {
	if table == "" {
		table = "quote_snapshots"
	}
	return &ClickHouseSnapshotSink{db: db, table: table}
}

func (s *ClickHouseSnapshotSink) Init(ctx context.Context) error {
	for _, stmt := range snapshotSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("snapshot schema: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseSnapshotSink) Archive(ctx context.Context, snap *models.Snapshot) error {
	q := fmt.Sprintf(`INSERT INTO %s
		(fetched_at, as_of, channel, symbol, name, price, prev_close, change, change_percent, open, high, low, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err := s.db.ExecContext(ctx, q,
		snap.FetchedAt,
		snap.Quote.AsOf,
		snap.Channel,
		snap.Quote.Symbol,
		snap.Quote.Name,
		snap.Quote.Price,
		snap.Quote.PrevClose,
		snap.Quote.Change,
		snap.Quote.ChangePercent,
		snap.Quote.Open,
		snap.Quote.High,
		snap.Quote.Low,
		snap.Quote.Volume,
	)
	return err
}

func (s *ClickHouseSnapshotSink) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseSnapshotSink) Close() error {
	return nil // connection pool is managed by pkg/clickhouse
}

// KafkaSnapshotSink implements SnapshotSink by publishing to an audit
// topic, keyed by symbol for per-symbol ordering.
type KafkaSnapshotSink struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaSnapshotSink creates a Kafka-backed sink.
func NewKafkaSnapshotSink(producer *pkgkafka.Producer, topic string) repository.SnapshotSink {
	return &KafkaSnapshotSink{producer: producer, topic: topic}
}

func (s *KafkaSnapshotSink) Init(ctx context.Context) error   { return nil }
func (s *KafkaSnapshotSink) Health(ctx context.Context) error { return nil }

func (s *KafkaSnapshotSink) Archive(ctx context.Context, snap *models.Snapshot) error {
	return s.producer.Publish(ctx, s.topic, []byte(snap.Quote.Symbol), map[string]interface{}{
		"symbol":        snap.Quote.Symbol,
		"name":          snap.Quote.Name,
		"channel":       snap.Channel,
		"price":         snap.Quote.Price,
		"prevClose":     snap.Quote.PrevClose,
		"change":        snap.Quote.Change,
		"changePercent": snap.Quote.ChangePercent,
		"volume":        snap.Quote.Volume,
		"asOf":          snap.Quote.AsOf.Unix(),
		"fetchedAt":     snap.FetchedAt.Unix(),
	})
}

func (s *KafkaSnapshotSink) Close() error {
	return s.producer.Close()
}

// FanoutSnapshotSink forwards every snapshot to all child sinks, returning
// the first error after trying each.
type FanoutSnapshotSink struct {
	sinks []repository.SnapshotSink
}

// NewFanoutSnapshotSink combines sinks.
func NewFanoutSnapshotSink(sinks ...repository.SnapshotSink) repository.SnapshotSink {
	return &FanoutSnapshotSink{sinks: sinks}
}

func (s *FanoutSnapshotSink) Init(ctx context.Context) error {
	for _, sink := range s.sinks {
		if err := sink.Init(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *FanoutSnapshotSink) Archive(ctx context.Context, snap *models.Snapshot) error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Archive(ctx, snap); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *FanoutSnapshotSink) Health(ctx context.Context) error {
	for _, sink := range s.sinks {
		if err := sink.Health(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *FanoutSnapshotSink) Close() error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
