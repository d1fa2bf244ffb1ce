// Package history persists a downsampled trail of published snapshots to
// SQLite, so headline telemetry survives restarts and can be charted.
// Recording is asynchronous and lossy by design: the producer loop is never
// allowed to block on a slow disk.
package history

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/theonuverse/pasmonux/dbopen"
)

// Schema for the samples table. Call Recorder.Init() or pass it to
// dbopen.WithSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS samples (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	version        INTEGER NOT NULL,
	taken_at       INTEGER NOT NULL,
	cpu_temp       REAL NOT NULL,
	gpu_temp       REAL NOT NULL,
	battery_temp   REAL NOT NULL,
	battery_level  INTEGER NOT NULL,
	total_cpu      REAL NOT NULL,
	memory_used_mb REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_taken ON samples(taken_at);
`

// Sample is one persisted observation of the headline scalars.
type Sample struct {
	Version      uint64  `json:"version"`
	TakenAt      int64   `json:"taken_at"` // unix milliseconds
	CPUTemp      float64 `json:"cpu_temp"`
	GPUTemp      float64 `json:"gpu_temp"`
	BatteryTemp  float64 `json:"battery_temp"`
	BatteryLevel int     `json:"battery_level"`
	TotalCPU     float64 `json:"total_cpu"`
	MemoryUsedMB float64 `json:"memory_used_mb"`
}

// Recorder buffers samples in a channel and flushes them in batches.
type Recorder struct {
	db     *sql.DB
	logger *slog.Logger
	ch     chan Sample
	done   chan struct{}
	once   sync.Once
}

// NewRecorder creates a recorder backed by db and starts its flush loop.
func NewRecorder(db *sql.DB, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		db:     db,
		logger: logger,
		ch:     make(chan Sample, 1024),
		done:   make(chan struct{}),
	}
	go r.flushLoop()
	return r
}

// Init creates the samples table if it doesn't exist.
func (r *Recorder) Init() error {
	_, err := r.db.Exec(Schema)
	return err
}

// RecordAsync queues a sample for persistence. Non-blocking; drops the
// sample if the buffer is full so the producer never backs up.
func (r *Recorder) RecordAsync(s Sample) {
	select {
	case r.ch <- s:
	default:
	}
}

// Recent returns the most recent samples, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Sample, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT version, taken_at, cpu_temp, gpu_temp, battery_temp,
		       battery_level, total_cpu, memory_used_mb
		FROM samples ORDER BY taken_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := []Sample{}
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.Version, &s.TakenAt, &s.CPUTemp, &s.GPUTemp,
			&s.BatteryTemp, &s.BatteryLevel, &s.TotalCPU, &s.MemoryUsedMB); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Close drains the buffer and stops the flush goroutine.
func (r *Recorder) Close() error {
	r.once.Do(func() {
		close(r.ch)
		<-r.done
	})
	return nil
}

func (r *Recorder) flushLoop() {
	defer close(r.done)

	batch := make([]Sample, 0, 64)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case s, ok := <-r.ch:
			if !ok {
				r.flushBatch(batch)
				return
			}
			batch = append(batch, s)
			if len(batch) >= 64 {
				r.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (r *Recorder) flushBatch(batch []Sample) {
	if len(batch) == 0 {
		return
	}
	err := dbopen.RunTx(context.Background(), r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO samples (version, taken_at, cpu_temp, gpu_temp,
			                     battery_temp, battery_level, total_cpu, memory_used_mb)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, s := range batch {
			if _, err := stmt.Exec(s.Version, s.TakenAt, s.CPUTemp, s.GPUTemp,
				s.BatteryTemp, s.BatteryLevel, s.TotalCPU, s.MemoryUsedMB); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("history flush failed", "count", len(batch), "error", err)
	}
}
