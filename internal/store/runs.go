package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrLedgerConflict means a ledger entry this run meant to consume was
// already consumed (or gone) when the publish transaction ran. The caller
// must rebuild from fresh ledger state.
var ErrLedgerConflict = errors.New("ledger entry already consumed")

// RunRecord is a published scheduling run. Payload is the planner's own
// JSON; the store never looks inside it.
type RunRecord struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	WindowStart time.Time
	WindowEnd   time.Time
	Payload     []byte
}

// PublishRun stores the run and flips the consumed flag on the given ledger
// entries in one transaction. Either the run exists and the entries are
// consumed, or neither happened. An entry that is already consumed (or
// missing) fails the publish with ErrLedgerConflict.
func (s *Store) PublishRun(ctx context.Context, rec RunRecord, consumeIDs []int64) error {
	if rec.ID == "" {
		return errors.New("run id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs(id, started_at, finished_at, window_start, window_end, payload)
		 VALUES(?,?,?,?,?,?)`,
		rec.ID, formatStamp(rec.StartedAt), formatStamp(rec.FinishedAt),
		formatDay(rec.WindowStart), formatDay(rec.WindowEnd), rec.Payload,
	); err != nil {
		return err
	}

	if len(consumeIDs) > 0 {
		args := make([]any, len(consumeIDs))
		marks := make([]string, len(consumeIDs))
		for i, id := range consumeIDs {
			args[i] = id
			marks[i] = "?"
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE carryover_ledger SET consumed = 1
			  WHERE id IN (`+strings.Join(marks, ",")+`) AND consumed = 0`,
			args...,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n != int64(len(consumeIDs)) {
			return fmt.Errorf("consumed %d of %d ledger entries; run rejected: %w", n, len(consumeIDs), ErrLedgerConflict)
		}
	}
	return tx.Commit()
}

// LatestRun returns the most recently finished run. ok is false when no run
// was ever published.
func (s *Store) LatestRun(ctx context.Context) (RunRecord, bool, error) {
	var rec RunRecord
	var started, finished, ws, we string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, window_start, window_end, payload
		   FROM runs ORDER BY finished_at DESC, id DESC LIMIT 1`,
	).Scan(&rec.ID, &started, &finished, &ws, &we, &rec.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, false, nil
	}
	if err != nil {
		return RunRecord{}, false, err
	}
	if rec.StartedAt, err = parseStamp(started); err != nil {
		return RunRecord{}, false, err
	}
	if rec.FinishedAt, err = parseStamp(finished); err != nil {
		return RunRecord{}, false, err
	}
	if rec.WindowStart, err = parseDay(ws); err != nil {
		return RunRecord{}, false, err
	}
	if rec.WindowEnd, err = parseDay(we); err != nil {
		return RunRecord{}, false, err
	}
	return rec, true, nil
}

// DeleteRunsBefore prunes runs finished before the cutoff, keeping at least
// the most recent run so LatestRun never goes empty after retention.
func (s *Store) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE finished_at < ?
		   AND id <> (SELECT id FROM runs ORDER BY finished_at DESC, id DESC LIMIT 1)`,
		formatStamp(cutoff),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
