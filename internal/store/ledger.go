package store

import (
	"context"
	"errors"
	"time"

	"arksched/internal/carryover"
)

// AddEntry appends one feedback record to the carryover ledger.
func (s *Store) AddEntry(ctx context.Context, e carryover.Entry) (int64, error) {
	if e.HoursRemaining <= 0 {
		return 0, errors.New("carryover entry needs remaining hours > 0")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO carryover_ledger(
		   employee, customer, job, service, stage, item,
		   hours_planned, hours_done, hours_remaining,
		   reported_on, resume_on, notes, consumed, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,0,?)`,
		e.Employee, e.Key.Customer, e.Key.Job, e.Key.Service, e.Key.Stage, e.Key.Item,
		e.HoursPlanned, e.HoursDone, e.HoursRemaining,
		formatDay(e.ReportedOn), formatDay(e.ResumeOn), e.Notes, formatStamp(time.Now()),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListEntries returns ledger entries oldest-first. With includeConsumed
// false only the open entries come back, which is what propagation wants.
func (s *Store) ListEntries(ctx context.Context, includeConsumed bool) ([]carryover.Entry, error) {
	q := `SELECT id, employee, customer, job, service, stage, item,
	             hours_planned, hours_done, hours_remaining,
	             reported_on, resume_on, notes, consumed
	        FROM carryover_ledger`
	if !includeConsumed {
		q += ` WHERE consumed = 0`
	}
	q += ` ORDER BY resume_on, id`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []carryover.Entry
	for rows.Next() {
		var e carryover.Entry
		var reported, resume string
		if err := rows.Scan(
			&e.ID, &e.Employee, &e.Key.Customer, &e.Key.Job, &e.Key.Service, &e.Key.Stage, &e.Key.Item,
			&e.HoursPlanned, &e.HoursDone, &e.HoursRemaining,
			&reported, &resume, &e.Notes, &e.Consumed,
		); err != nil {
			return nil, err
		}
		if e.ReportedOn, err = parseDay(reported); err != nil {
			return nil, err
		}
		if e.ResumeOn, err = parseDay(resume); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteConsumedBefore prunes consumed entries reported before the cutoff.
// Open entries are never pruned regardless of age.
func (s *Store) DeleteConsumedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM carryover_ledger WHERE consumed = 1 AND reported_on < ?`,
		formatDay(cutoff),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
