package cache

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/models"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/storage"
)

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseAuditSink appends quote and build events to ClickHouse.
type ClickHouseAuditSink struct {
	conn   driver.Conn
	logger *logrus.Logger
}

var _ storage.AuditSink = (*ClickHouseAuditSink)(nil)

const createQuotesTable = `
	CREATE TABLE IF NOT EXISTS quote_events (
		id          UUID,
		timestamp   DateTime64(3),
		source      LowCardinality(String),
		pool        String,
		amount_in   String,
		reserve_in  String,
		reserve_out String,
		fee_bps     Int64,
		amount_out  String
	) ENGINE = MergeTree ORDER BY timestamp`

const createBuildsTable = `
	CREATE TABLE IF NOT EXISTS build_events (
		id             UUID,
		timestamp      DateTime64(3),
		source         LowCardinality(String),
		program_id     String,
		pool           String,
		user           String,
		amount_in      String,
		min_amount_out String,
		verified       Bool,
		outcome        LowCardinality(String),
		field          String,
		duration_ms    Int64
	) ENGINE = MergeTree ORDER BY timestamp`

func NewClickHouseAuditSink(ctx context.Context, cfg ClickHouseConfig, logger *logrus.Logger) (*ClickHouseAuditSink, error) {
	if logger == nil {
		logger = logrus.New()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	for _, ddl := range []string{createQuotesTable, createBuildsTable} {
		if err := conn.Exec(ctx, ddl); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("create audit tables: %w", err)
		}
	}

	logger.WithField("addr", cfg.Addr).Info("connected to ClickHouse")
	return &ClickHouseAuditSink{conn: conn, logger: logger}, nil
}

func (c *ClickHouseAuditSink) RecordQuote(ctx context.Context, ev *models.QuoteEvent) error {
	query := `
		INSERT INTO quote_events (
			id, timestamp, source, pool, amount_in, reserve_in, reserve_out, fee_bps, amount_out
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := c.conn.Exec(ctx, query,
		ev.ID,
		ev.Timestamp,
		ev.Source,
		ev.Pool,
		ev.AmountIn,
		ev.ReserveIn,
		ev.ReserveOut,
		ev.FeeBps,
		ev.AmountOut,
	)
	if err != nil {
		return fmt.Errorf("insert quote event: %w", err)
	}
	return nil
}

func (c *ClickHouseAuditSink) RecordBuild(ctx context.Context, ev *models.BuildEvent) error {
	query := `
		INSERT INTO build_events (
			id, timestamp, source, program_id, pool, user,
			amount_in, min_amount_out, verified, outcome, field, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := c.conn.Exec(ctx, query,
		ev.ID,
		ev.Timestamp,
		ev.Source,
		ev.ProgramID,
		ev.Pool,
		ev.User,
		ev.AmountIn,
		ev.MinAmountOut,
		ev.Verified,
		ev.Outcome,
		ev.Field,
		ev.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert build event: %w", err)
	}
	return nil
}

func (c *ClickHouseAuditSink) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseAuditSink) Close() error {
	return c.conn.Close()
}
