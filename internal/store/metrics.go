package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"infra-monitor/internal/model"
)

// InsertBatch persists the samples of one node collection in a single
// transaction. Samples without a timestamp are stamped with the store clock.
// Non-finite values are dropped.
func (s *Store) InsertBatch(ctx context.Context, samples []model.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO metrics (node_id, type, value, metadata, recorded_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := s.now()
	for _, sample := range samples {
		if math.IsNaN(sample.Value) || math.IsInf(sample.Value, 0) {
			s.logger.Warn().
				Int64("node_id", sample.NodeID).
				Str("type", sample.Type).
				Msg("dropping non-finite sample")
			continue
		}

		recordedAt := sample.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = now
		}

		meta, err := encodeMetadata(sample.Metadata)
		if err != nil {
			return err
		}

		if _, err := stmt.ExecContext(ctx, sample.NodeID, sample.Type, roundValue(sample.Value), meta, toMillis(recordedAt)); err != nil {
			return fmt.Errorf("failed to insert sample %s: %w", sample.Type, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit samples: %w", err)
	}
	return nil
}

// Latest returns the newest sample of every metric type recorded for the node
// within window, sorted by type.
func (s *Store) Latest(ctx context.Context, nodeID int64, window time.Duration) ([]model.MetricSample, error) {
	since := s.now().Add(-window)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, node_id, type, value, metadata, recorded_at
		FROM metrics
		WHERE node_id = ? AND recorded_at >= ?
		ORDER BY recorded_at DESC, id DESC`,
		nodeID, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query latest metrics: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var result []model.MetricSample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		if seen[sample.Type] {
			continue
		}
		seen[sample.Type] = true
		result = append(result, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate latest metrics: %w", err)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result, nil
}

// LatestSample returns the most recent sample of a type regardless of age.
func (s *Store) LatestSample(ctx context.Context, nodeID int64, metricType string) (model.MetricSample, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, node_id, type, value, metadata, recorded_at
		FROM metrics
		WHERE node_id = ? AND type = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1`,
		nodeID, metricType)

	sample, err := scanSample(row)
	if err == sql.ErrNoRows {
		return model.MetricSample{}, false, nil
	}
	if err != nil {
		return model.MetricSample{}, false, err
	}
	return sample, true, nil
}

// LatestValue returns the most recent value of a type regardless of age.
// Alert evaluation uses this instead of the freshness-filtered Latest.
func (s *Store) LatestValue(ctx context.Context, nodeID int64, metricType string) (float64, bool, error) {
	sample, ok, err := s.LatestSample(ctx, nodeID, metricType)
	if err != nil || !ok {
		return 0, false, err
	}
	return sample.Value, true, nil
}

// RangeAggregate buckets samples of one type between from and to (inclusive)
// by truncating timestamps to the bucket width.
func (s *Store) RangeAggregate(ctx context.Context, nodeID int64, metricType string, from, to time.Time, bucket model.Bucket) ([]model.AggregatePoint, error) {
	step := bucket.Step().Milliseconds()

	rows, err := s.db.QueryContext(ctx,
		`SELECT (recorded_at / ?) * ? AS bucket_start,
			AVG(value), MIN(value), MAX(value), COUNT(*)
		FROM metrics
		WHERE node_id = ? AND type = ? AND recorded_at >= ? AND recorded_at <= ?
		GROUP BY bucket_start
		ORDER BY bucket_start ASC`,
		step, step, nodeID, metricType, toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query range aggregate: %w", err)
	}
	defer rows.Close()

	var points []model.AggregatePoint
	for rows.Next() {
		var (
			bucketStart int64
			p           model.AggregatePoint
		)
		if err := rows.Scan(&bucketStart, &p.Avg, &p.Min, &p.Max, &p.Count); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate row: %w", err)
		}
		p.BucketStart = fromMillis(bucketStart)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate aggregate rows: %w", err)
	}
	return points, nil
}

// Cleanup deletes samples recorded before cutoff, chunkSize rows per
// statement, until nothing is left to delete. It returns the total deleted.
func (s *Store) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		res, err := s.db.ExecContext(ctx,
			`DELETE FROM metrics WHERE id IN (
				SELECT id FROM metrics WHERE recorded_at < ? LIMIT ?
			)`,
			toMillis(cutoff), s.chunkSize)
		if err != nil {
			return total, fmt.Errorf("failed to delete metrics chunk: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to read deleted row count: %w", err)
		}
		total += n

		if n == 0 {
			break
		}
		s.logger.Debug().Int64("deleted", n).Int64("total", total).Msg("deleted metrics chunk")
	}
	return total, nil
}

// CountOlderThan counts samples recorded before cutoff.
func (s *Store) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM metrics WHERE recorded_at < ?`, toMillis(cutoff)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count metrics: %w", err)
	}
	return n, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(r rowScanner) (model.MetricSample, error) {
	var (
		sample     model.MetricSample
		meta       sql.NullString
		recordedAt int64
	)
	if err := r.Scan(&sample.ID, &sample.NodeID, &sample.Type, &sample.Value, &meta, &recordedAt); err != nil {
		if err == sql.ErrNoRows {
			return sample, err
		}
		return sample, fmt.Errorf("failed to scan metric: %w", err)
	}
	sample.RecordedAt = fromMillis(recordedAt)

	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &sample.Metadata); err != nil {
			return sample, fmt.Errorf("failed to decode metric metadata: %w", err)
		}
	}
	return sample, nil
}

func encodeMetadata(meta map[string]string) (sql.NullString, error) {
	if len(meta) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
