package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"arksched/internal/catalog"
	"arksched/internal/priority"
)

// Settings is the single-row scheduling configuration. Zero WindowStart and
// WindowEnd mean "no explicit window"; the planner then derives one from the
// current date.
type Settings struct {
	WindowStart time.Time `json:"window_start,omitzero"`
	WindowEnd   time.Time `json:"window_end,omitzero"`

	GapAfterFinishHours    float64 `json:"gap_after_finish_hours"`
	GapBeforeAssemblyHours float64 `json:"gap_before_assembly_hours"`
	AssemblyEarliestHour   int     `json:"assembly_earliest_hour"`
}

func (s *Store) UpsertOrder(ctx context.Context, o catalog.Order) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders(customer, job, service, stage_completed, qty) VALUES(?,?,?,?,?)
		 ON CONFLICT(customer, job, service) DO UPDATE SET
		   stage_completed=excluded.stage_completed, qty=excluded.qty`,
		o.Customer, o.Job, o.Service, o.StageCompleted, o.Qty,
	)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM orders WHERE customer = ? AND job = ? AND service = ?`,
		o.Customer, o.Job, o.Service,
	).Scan(&id)
	return id, err
}

func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	return err
}

func (s *Store) ListOrders(ctx context.Context) ([]catalog.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer, job, service, stage_completed, qty FROM orders ORDER BY customer, job, service`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Order
	for rows.Next() {
		var o catalog.Order
		if err := rows.Scan(&o.ID, &o.Customer, &o.Job, &o.Service, &o.StageCompleted, &o.Qty); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ImportOrders loads a parsed forecast in one transaction. With replace set
// the existing order book is wiped first; otherwise rows merge by
// (customer, job, service).
func (s *Store) ImportOrders(ctx context.Context, orders []catalog.Order, replace bool) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM orders`); err != nil {
			return 0, err
		}
	}
	for _, o := range orders {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO orders(customer, job, service, stage_completed, qty) VALUES(?,?,?,?,?)
			 ON CONFLICT(customer, job, service) DO UPDATE SET
			   stage_completed=excluded.stage_completed, qty=excluded.qty`,
			o.Customer, o.Job, o.Service, o.StageCompleted, o.Qty,
		); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(orders), nil
}

func (s *Store) UpsertWeight(ctx context.Context, w priority.Weight) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO priorities_customers(customer, weight) VALUES(?,?)
		 ON CONFLICT(customer) DO UPDATE SET weight=excluded.weight`,
		w.Customer, w.Weight,
	)
	return err
}

func (s *Store) DeleteWeight(ctx context.Context, customer string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM priorities_customers WHERE customer = ?`, customer)
	return err
}

func (s *Store) ListWeights(ctx context.Context) ([]priority.Weight, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT customer, weight FROM priorities_customers ORDER BY customer`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []priority.Weight
	for rows.Next() {
		var w priority.Weight
		if err := rows.Scan(&w.Customer, &w.Weight); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) AddTarget(ctx context.Context, t priority.Target) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO priorities_targets(customer, stage, by_day) VALUES(?,?,?)`,
		t.Customer, t.Stage, formatDay(t.By),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) DeleteTarget(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM priorities_targets WHERE id = ?`, id)
	return err
}

func (s *Store) ListTargets(ctx context.Context) ([]priority.Target, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer, stage, by_day FROM priorities_targets ORDER BY by_day, customer, stage`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []priority.Target
	for rows.Next() {
		var t priority.Target
		var day string
		if err := rows.Scan(&t.ID, &t.Customer, &t.Stage, &day); err != nil {
			return nil, err
		}
		if t.By, err = parseDay(day); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	var st Settings
	var ws, we sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT window_start, window_end, gap_after_finish_hours,
		        gap_before_assembly_hours, assembly_earliest_hour
		   FROM global_settings WHERE id = 1`,
	).Scan(&ws, &we, &st.GapAfterFinishHours, &st.GapBeforeAssemblyHours, &st.AssemblyEarliestHour)
	if errors.Is(err, sql.ErrNoRows) {
		// Migrations seed the row; a missing row means defaults.
		return Settings{GapAfterFinishHours: 2, GapBeforeAssemblyHours: 12, AssemblyEarliestHour: 9}, nil
	}
	if err != nil {
		return Settings{}, err
	}
	if ws.Valid && ws.String != "" {
		if st.WindowStart, err = parseDay(ws.String); err != nil {
			return Settings{}, err
		}
	}
	if we.Valid && we.String != "" {
		if st.WindowEnd, err = parseDay(we.String); err != nil {
			return Settings{}, err
		}
	}
	return st, nil
}

func (s *Store) PutSettings(ctx context.Context, st Settings) error {
	var ws, we any
	if !st.WindowStart.IsZero() {
		ws = formatDay(st.WindowStart)
	}
	if !st.WindowEnd.IsZero() {
		we = formatDay(st.WindowEnd)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE global_settings SET
		   window_start = ?, window_end = ?, gap_after_finish_hours = ?,
		   gap_before_assembly_hours = ?, assembly_earliest_hour = ?
		 WHERE id = 1`,
		ws, we, st.GapAfterFinishHours, st.GapBeforeAssemblyHours, st.AssemblyEarliestHour,
	)
	return err
}
