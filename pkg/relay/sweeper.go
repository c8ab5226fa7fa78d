package relay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/peerlink/peerlink/pkg/logging"
)

// SweepReport summarizes one sweep.
type SweepReport struct {
	Expired int     // sessions retired by age
	Orphans int     // stored files with no session, removed by age
	Errors  []error // failures that did not stop the sweep
}

// Sweeper periodically retires expired sessions and stale orphan files.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	logger   *logging.Logger
}

// NewSweeper builds a sweeper for svc. A non-positive interval uses
// DefaultSweepInterval.
func NewSweeper(svc *Service, interval time.Duration, logger *logging.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = svc.logger
	}
	return &Sweeper{svc: svc, interval: interval, logger: logger}
}

// Interval returns the time between ticks.
func (w *Sweeper) Interval() time.Duration {
	return w.interval
}

// Sweep runs one pass. Sessions older than the TTL are retired even if a
// download is in flight; that download then fails as aborted. Files nobody
// owns are removed once their modification time is older than the TTL.
func (w *Sweeper) Sweep(ctx context.Context) SweepReport {
	var report SweepReport
	now := w.svc.opts.Clock.Now()
	ttl := w.svc.opts.TTL

	for _, sess := range w.svc.sessions.Snapshot() {
		if ctx.Err() != nil {
			return report
		}
		if !sess.Expired(now, ttl) {
			continue
		}
		removed, err := w.svc.retire(sess)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("code %d: %w", sess.Code, err))
			continue
		}
		if removed {
			report.Expired++
			w.logger.Info("expired file deleted", "code", sess.Code, "filename", sess.OriginalName)
		}
	}

	keys, err := w.svc.store.List()
	if err != nil {
		report.Errors = append(report.Errors, err)
		return report
	}
	for _, key := range keys {
		if ctx.Err() != nil {
			return report
		}
		if w.svc.isPending(key) || w.svc.sessions.HasStorageKey(key) {
			continue
		}
		mtime, err := w.svc.store.ModTime(key)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}
		if now.Sub(mtime) <= ttl {
			continue
		}
		if err := w.svc.store.Remove(key); err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}
		report.Orphans++
		w.logger.Info("orphaned file deleted", "key", key)
	}

	return report
}

// Run sweeps on every tick until ctx is cancelled. A failing or panicking
// sweep is logged and the next tick runs as usual.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Debug("sweeper started", "interval", w.interval, "ttl", w.svc.opts.TTL)
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("sweeper stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Sweeper) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("sweep panicked", "panic", r)
		}
	}()

	report := w.Sweep(ctx)
	for _, err := range report.Errors {
		w.logger.Error("sweep failed", "error", err)
	}
	if report.Expired > 0 || report.Orphans > 0 {
		w.logger.Debug("sweep finished", "expired", report.Expired, "orphans", report.Orphans)
	}
}
