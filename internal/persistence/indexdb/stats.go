package indexdb

import (
	"context"
	"database/sql"
	"sort"
)

// JobStats summarises a run from its indexed audits.
type JobStats struct {
	Ticks      int64  `json:"ticks"`
	LastTick   uint64 `json:"last_tick"`
	LastDigest string `json:"last_digest"`

	// Actions counts audits by action, e.g. "PLACE" or "JOB_TIMED_OUT".
	Actions map[string]int64 `json:"actions"`
	// CompletedByType counts completed jobs per building type.
	CompletedByType map[string]int64 `json:"completed_by_type"`
	// RejectedByReason counts rejected placements per reason.
	RejectedByReason map[string]int64 `json:"rejected_by_reason"`
	// BusiestWorkers lists the workers with the most completed jobs, most first.
	BusiestWorkers []WorkerCount `json:"busiest_workers"`
}

type WorkerCount struct {
	Worker    uint32 `json:"worker"`
	Completed int64  `json:"completed"`
}

// Completed is a shorthand for Actions["JOB_COMPLETED"].
func (s JobStats) Completed() int64 { return s.Actions["JOB_COMPLETED"] }

func (s *SQLiteIndex) JobStats(ctx context.Context) (JobStats, error) {
	out := JobStats{
		Actions:          map[string]int64{},
		CompletedByType:  map[string]int64{},
		RejectedByReason: map[string]int64{},
	}

	var last sql.NullInt64
	var digest sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), MAX(tick) FROM ticks`).Scan(&out.Ticks, &last); err != nil {
		return out, err
	}
	if last.Valid {
		out.LastTick = uint64(last.Int64)
		if err := s.db.QueryRowContext(ctx, `SELECT digest FROM ticks WHERE tick=?`, last.Int64).Scan(&digest); err != nil {
			return out, err
		}
		out.LastDigest = digest.String
	}

	if err := s.countInto(ctx, out.Actions, `SELECT action, COUNT(*) FROM audits GROUP BY action`); err != nil {
		return out, err
	}
	if err := s.countInto(ctx, out.CompletedByType, `SELECT type_id, COUNT(*) FROM audits WHERE action='JOB_COMPLETED' GROUP BY type_id`); err != nil {
		return out, err
	}
	if err := s.countInto(ctx, out.RejectedByReason, `SELECT reason, COUNT(*) FROM audits WHERE action='PLACE_REJECTED' GROUP BY reason`); err != nil {
		return out, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT worker, COUNT(*) FROM audits WHERE action='JOB_COMPLETED' AND worker<>0 GROUP BY worker`)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		var wc WorkerCount
		if err := rows.Scan(&wc.Worker, &wc.Completed); err != nil {
			return out, err
		}
		out.BusiestWorkers = append(out.BusiestWorkers, wc)
	}
	if err := rows.Err(); err != nil {
		return out, err
	}
	sort.Slice(out.BusiestWorkers, func(i, j int) bool {
		a, b := out.BusiestWorkers[i], out.BusiestWorkers[j]
		if a.Completed != b.Completed {
			return a.Completed > b.Completed
		}
		return a.Worker < b.Worker
	})
	return out, nil
}

func (s *SQLiteIndex) countInto(ctx context.Context, dst map[string]int64, query string) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k sql.NullString
		var n int64
		if err := rows.Scan(&k, &n); err != nil {
			return err
		}
		dst[k.String] = n
	}
	return rows.Err()
}
