package store

import (
	"fmt"
	"time"
)

// LoggedActivity is one row of the local activity history.
type LoggedActivity struct {
	ID        int64   `db:"id"`
	Type      string  `db:"type"`
	Value     float64 `db:"value"`
	Unit      string  `db:"unit"`
	Date      string  `db:"date"`
	CreatedAt string  `db:"created_at"`
}

// ActivityFilter narrows ListActivities. Dates are YYYY-MM-DD, From inclusive, To exclusive.
type ActivityFilter struct {
	Type  string
	From  string
	To    string
	Limit int
}

// DailyTotal aggregates logged activity per day and type.
type DailyTotal struct {
	Date  string  `db:"day"`
	Type  string  `db:"type"`
	Total float64 `db:"total"`
	Count int     `db:"count"`
}

func (s *Store) RecordActivity(typ string, value float64, unit, date string) (*LoggedActivity, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(
		`INSERT INTO activity_log (type, value, unit, date, created_at) VALUES (?, ?, ?, ?, ?)`,
		typ, value, unit, date, now,
	)
	if err != nil {
		return nil, fmt.Errorf("record activity: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetActivity(id)
}

func (s *Store) GetActivity(id int64) (*LoggedActivity, error) {
	a := &LoggedActivity{}
	err := s.db.Get(a, `SELECT id, type, value, unit, date, created_at FROM activity_log WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get activity %d: %w", id, err)
	}
	return a, nil
}

func (s *Store) ListActivities(f ActivityFilter) ([]LoggedActivity, error) {
	query := `SELECT id, type, value, unit, date, created_at FROM activity_log WHERE 1=1`
	var args []any

	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	if f.From != "" {
		query += ` AND date >= ?`
		args = append(args, f.From)
	}
	if f.To != "" {
		query += ` AND date < ?`
		args = append(args, f.To)
	}
	query += ` ORDER BY date DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	var out []LoggedActivity
	if err := s.db.Select(&out, query, args...); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return out, nil
}

func (s *Store) DailyTotals(from, to string) ([]DailyTotal, error) {
	var out []DailyTotal
	err := s.db.Select(&out, `
		SELECT date AS day, type, COALESCE(SUM(value), 0) AS total, COUNT(*) AS count
		FROM activity_log
		WHERE date >= ? AND date < ?
		GROUP BY day, type
		ORDER BY day, type`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	return out, nil
}

// ClearActivities deletes the local history. Progress is kept separately.
func (s *Store) ClearActivities() error {
	_, err := s.db.Exec(`DELETE FROM activity_log`)
	return err
}
