package store

import (
	"context"
	"time"

	"arksched/internal/roster"
	"arksched/internal/schedule"
)

// Project is a fixed commitment outside regular production. The planner
// turns projects into blocking intervals before assignment.
type Project struct {
	ID       int64     `json:"id,omitempty"`
	Employee string    `json:"employee"`
	Label    string    `json:"label,omitempty"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// Block converts the project to the assigner's blocking-interval form.
func (p Project) Block() schedule.Block {
	return schedule.Block{Employee: p.Employee, Start: p.Start, End: p.End, Label: p.Label}
}

func (s *Store) UpsertEmployee(ctx context.Context, e roster.Employee) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO employees(name, can_prep, can_finish) VALUES(?,?,?)
		 ON CONFLICT(name) DO UPDATE SET can_prep=excluded.can_prep, can_finish=excluded.can_finish`,
		e.Name, e.CanPrep, e.CanFinish,
	)
	return err
}

// DeleteEmployee removes the employee with their template rows and days off.
// Ledger entries and published runs keep the name: they are history.
func (s *Store) DeleteEmployee(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, q := range []string{
		`DELETE FROM employee_shifts WHERE employee = ?`,
		`DELETE FROM employee_days_off WHERE employee = ?`,
		`DELETE FROM employees WHERE name = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, name); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListEmployees(ctx context.Context) ([]roster.Employee, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, can_prep, can_finish FROM employees ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []roster.Employee
	for rows.Next() {
		var e roster.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.CanPrep, &e.CanFinish); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) AddShift(ctx context.Context, r roster.ShiftRule) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO employee_shifts(employee, weekday, start, end) VALUES(?,?,?,?)`,
		r.Employee, r.Weekday, r.Start, r.End,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) DeleteShift(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM employee_shifts WHERE id = ?`, id)
	return err
}

func (s *Store) ListShifts(ctx context.Context) ([]roster.ShiftRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, employee, weekday, start, end FROM employee_shifts ORDER BY employee, weekday, start`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []roster.ShiftRule
	for rows.Next() {
		var r roster.ShiftRule
		if err := rows.Scan(&r.ID, &r.Employee, &r.Weekday, &r.Start, &r.End); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddDayOff is idempotent: marking the same day twice is not an error.
func (s *Store) AddDayOff(ctx context.Context, d roster.DayOff) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO employee_days_off(employee, day) VALUES(?,?)
		 ON CONFLICT(employee, day) DO NOTHING`,
		d.Employee, formatDay(d.Date),
	)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var id int64
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM employee_days_off WHERE employee = ? AND day = ?`,
			d.Employee, formatDay(d.Date),
		).Scan(&id)
		return id, err
	}
	return res.LastInsertId()
}

func (s *Store) DeleteDayOff(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM employee_days_off WHERE id = ?`, id)
	return err
}

func (s *Store) ListDaysOff(ctx context.Context) ([]roster.DayOff, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, employee, day FROM employee_days_off ORDER BY day, employee`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []roster.DayOff
	for rows.Next() {
		var d roster.DayOff
		var day string
		if err := rows.Scan(&d.ID, &d.Employee, &day); err != nil {
			return nil, err
		}
		if d.Date, err = parseDay(day); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Calendar assembles the scheduling view of the roster in one call.
func (s *Store) Calendar(ctx context.Context) (*roster.Calendar, error) {
	emps, err := s.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	shifts, err := s.ListShifts(ctx)
	if err != nil {
		return nil, err
	}
	daysOff, err := s.ListDaysOff(ctx)
	if err != nil {
		return nil, err
	}
	return roster.NewCalendar(emps, shifts, daysOff), nil
}

func (s *Store) AddProject(ctx context.Context, p Project) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO special_projects(employee, label, start_at, end_at) VALUES(?,?,?,?)`,
		p.Employee, p.Label, formatStamp(p.Start), formatStamp(p.End),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM special_projects WHERE id = ?`, id)
	return err
}

func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, employee, label, start_at, end_at FROM special_projects ORDER BY start_at, employee`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		var start, end string
		if err := rows.Scan(&p.ID, &p.Employee, &p.Label, &start, &end); err != nil {
			return nil, err
		}
		if p.Start, err = parseStamp(start); err != nil {
			return nil, err
		}
		if p.End, err = parseStamp(end); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
