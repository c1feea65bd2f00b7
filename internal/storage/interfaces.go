package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/models"
)

// ErrCacheMiss is returned by PoolCache when no fresh entry exists.
var ErrCacheMiss = errors.New("cache miss")

// PoolCache stores short-lived pool snapshots.
type PoolCache interface {
	// GetPool returns ErrCacheMiss when the pool is not cached.
	GetPool(ctx context.Context, address string) (*models.PoolSnapshot, error)

	// SetPool caches snap for ttl.
	SetPool(ctx context.Context, snap *models.PoolSnapshot, ttl time.Duration) error
}

// AuditSink receives an append-only record of quotes and builds.
type AuditSink interface {
	RecordQuote(ctx context.Context, ev *models.QuoteEvent) error
	RecordBuild(ctx context.Context, ev *models.BuildEvent) error

	// Ping checks if the sink is reachable
	Ping(ctx context.Context) error

	io.Closer
}

// MultiSink fans every record out to all sinks and joins their errors.
type MultiSink []AuditSink

func (m MultiSink) RecordQuote(ctx context.Context, ev *models.QuoteEvent) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.RecordQuote(ctx, ev))
	}
	return errors.Join(errs...)
}

func (m MultiSink) RecordBuild(ctx context.Context, ev *models.BuildEvent) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.RecordBuild(ctx, ev))
	}
	return errors.Join(errs...)
}

func (m MultiSink) Ping(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Ping(ctx))
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
