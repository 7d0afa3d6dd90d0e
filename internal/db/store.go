package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/lazycal/internal/model"
	"github.com/google/uuid"
)

type Store struct {
	DB *sql.DB
}

// EventInput carries the editable fields of an event. Timed events set
// the UTC instants plus the civil time/zone they were entered in;
// all-day events leave all timed fields empty.
type EventInput struct {
	Name        string
	Description string
	Location    string
	Color       string

	Start string
	End   string

	Time    string
	EndTime string

	StartUTC *time.Time
	EndUTC   *time.Time

	StartTimezone string
	EndTimezone   string

	RRule string
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// InputFromEvent rebuilds an input from a stored event, used when a
// gesture commit rewrites the schedule fields of a live event.
func InputFromEvent(ev model.Event) EventInput {
	return EventInput{
		Name:          ev.Name,
		Description:   ev.Description,
		Location:      ev.Location,
		Color:         ev.Color,
		Start:         ev.Start,
		End:           ev.End,
		Time:          ev.Time,
		EndTime:       ev.EndTime,
		StartUTC:      ev.StartUTC,
		EndUTC:        ev.EndUTC,
		StartTimezone: ev.StartTimezone,
		EndTimezone:   ev.EndTimezone,
		RRule:         ev.RRule,
	}
}

const eventColumns = "id, name, description, location, color, start_date, end_date, start_time, end_time, start_utc, end_utc, start_timezone, end_timezone, rrule, created_at, updated_at"

func (s *Store) CreateEvent(ctx context.Context, input EventInput) (model.Event, error) {
	normalized, err := normalizeInput(input)
	if err != nil {
		return model.Event{}, err
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO events (id, name, description, location, color, start_date, end_date, start_time, end_time, start_utc, end_utc, start_timezone, end_timezone, rrule, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, normalized.Name, normalized.Description, normalized.Location, normalized.Color,
		normalized.Start, normalized.End, normalized.Time, normalized.EndTime,
		nullTime(normalized.StartUTC), nullTime(normalized.EndUTC),
		normalized.StartTimezone, normalized.EndTimezone, normalized.RRule, now, now)
	if err != nil {
		return model.Event{}, err
	}

	created, err := s.GetEvent(ctx, id)
	if err != nil {
		return model.Event{}, err
	}

	if err := s.addHistory(ctx, id, "created", formatCreatedDetails(created)); err != nil {
		return model.Event{}, err
	}

	return created, nil
}

func (s *Store) UpdateEvent(ctx context.Context, eventID string, input EventInput) (model.Event, error) {
	before, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return model.Event{}, err
	}

	normalized, err := normalizeInput(input)
	if err != nil {
		return model.Event{}, err
	}

	_, err = s.DB.ExecContext(ctx,
		`UPDATE events SET name = ?, description = ?, location = ?, color = ?, start_date = ?, end_date = ?, start_time = ?, end_time = ?, start_utc = ?, end_utc = ?, start_timezone = ?, end_timezone = ?, rrule = ?, updated_at = ?
		 WHERE id = ?`,
		normalized.Name, normalized.Description, normalized.Location, normalized.Color,
		normalized.Start, normalized.End, normalized.Time, normalized.EndTime,
		nullTime(normalized.StartUTC), nullTime(normalized.EndUTC),
		normalized.StartTimezone, normalized.EndTimezone, normalized.RRule,
		time.Now().UTC(), eventID)
	if err != nil {
		return model.Event{}, err
	}

	after, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return model.Event{}, err
	}

	if err := s.addHistory(ctx, eventID, "updated", formatEventDiff(before, after)); err != nil {
		return model.Event{}, err
	}

	return after, nil
}

func (s *Store) DeleteEvent(ctx context.Context, eventID string) error {
	before, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}

	if err := s.addHistory(ctx, eventID, "deleted", formatDeletedDetails(before)); err != nil {
		return err
	}

	_, err = s.DB.ExecContext(ctx, "DELETE FROM events WHERE id = ?", eventID)
	return err
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (model.Event, error) {
	row := s.DB.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", eventID)
	return scanEvent(row)
}

func (s *Store) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.DB.QueryContext(ctx, "SELECT "+eventColumns+" FROM events ORDER BY start_date, start_time, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// EventsForDay returns events overlapping the given civil day: timed
// events by UTC interval overlap with the day's bounds, all-day
// events by date containment.
func (s *Store) EventsForDay(ctx context.Context, day time.Time, zone *time.Location) ([]model.Event, error) {
	events, err := s.ListEvents(ctx)
	if err != nil {
		return nil, err
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, zone)
	dayEnd := dayStart.AddDate(0, 0, 1)
	dayKey := dayStart.Format("2006-01-02")

	result := make([]model.Event, 0)
	for _, ev := range events {
		if ev.AllDay() {
			if ev.Start <= dayKey && dayKey <= ev.End {
				result = append(result, ev)
			}
			continue
		}
		if ev.EndUTC == nil {
			continue
		}
		if ev.StartUTC.Before(dayEnd) && ev.EndUTC.After(dayStart) {
			result = append(result, ev)
		}
	}
	return result, nil
}

// UpsertEvent inserts or overwrites an event keeping its id, used by
// ICS import in merge mode. No history entry is written per row; the
// import records a single summary entry instead.
func (s *Store) UpsertEvent(ctx context.Context, ev model.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO events (id, name, description, location, color, start_date, end_date, start_time, end_time, start_utc, end_utc, start_timezone, end_timezone, rrule, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name, description = excluded.description, location = excluded.location,
		   color = excluded.color, start_date = excluded.start_date, end_date = excluded.end_date,
		   start_time = excluded.start_time, end_time = excluded.end_time,
		   start_utc = excluded.start_utc, end_utc = excluded.end_utc,
		   start_timezone = excluded.start_timezone, end_timezone = excluded.end_timezone,
		   rrule = excluded.rrule, updated_at = excluded.updated_at`,
		ev.ID, ev.Name, ev.Description, ev.Location, defaultColor(ev.Color),
		ev.Start, ev.End, ev.Time, ev.EndTime,
		nullTime(ev.StartUTC), nullTime(ev.EndUTC),
		ev.StartTimezone, ev.EndTimezone, ev.RRule, now, now)
	return err
}

// ReplaceEvents swaps the whole store content, used by ICS import in
// replace mode.
func (s *Store) ReplaceEvents(ctx context.Context, events []model.Event) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM events"); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (id, name, description, location, color, start_date, end_date, start_time, end_time, start_utc, end_utc, start_timezone, end_timezone, rrule, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.Name, ev.Description, ev.Location, defaultColor(ev.Color),
			ev.Start, ev.End, ev.Time, ev.EndTime,
			nullTime(ev.StartUTC), nullTime(ev.EndUTC),
			ev.StartTimezone, ev.EndTimezone, ev.RRule, now, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) ListHistory(ctx context.Context, eventID string) ([]model.HistoryEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT id, event_id, event_type, details, created_at FROM history WHERE event_id = ? ORDER BY created_at DESC, id DESC", eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]model.HistoryEntry, 0)
	for rows.Next() {
		var entry model.HistoryEntry
		if err := rows.Scan(&entry.ID, &entry.EventID, &entry.EventType, &entry.Details, &entry.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

func (s *Store) addHistory(ctx context.Context, eventID, eventType, details string) error {
	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO history (event_id, event_type, details, created_at) VALUES (?, ?, ?, ?)",
		eventID, eventType, details, time.Now().UTC())
	return err
}

// SaveHolidays replaces the cached holidays of one kind for one year.
func (s *Store) SaveHolidays(ctx context.Context, kind string, year int, holidays []model.Holiday) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	prefix := fmt.Sprintf("%04d-", year)
	if _, err := tx.ExecContext(ctx, "DELETE FROM holidays WHERE kind = ? AND date LIKE ?", kind, prefix+"%"); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, h := range holidays {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO holidays (date, kind, name, fetched_at) VALUES (?, ?, ?, ?)",
			h.Date, kind, h.Name, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListHolidays returns cached holidays within [from, to], both
// yyyy-mm-dd inclusive.
func (s *Store) ListHolidays(ctx context.Context, from, to string) ([]model.Holiday, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT date, kind, name FROM holidays WHERE date >= ? AND date <= ? ORDER BY date, kind", from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	holidays := make([]model.Holiday, 0)
	for rows.Next() {
		var h model.Holiday
		if err := rows.Scan(&h.Date, &h.Kind, &h.Name); err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (model.Event, error) {
	var ev model.Event
	var startUTC, endUTC sql.NullTime
	err := row.Scan(&ev.ID, &ev.Name, &ev.Description, &ev.Location, &ev.Color,
		&ev.Start, &ev.End, &ev.Time, &ev.EndTime,
		&startUTC, &endUTC, &ev.StartTimezone, &ev.EndTimezone, &ev.RRule,
		&ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return model.Event{}, err
	}
	if startUTC.Valid {
		t := startUTC.Time.UTC()
		ev.StartUTC = &t
	}
	if endUTC.Valid {
		t := endUTC.Time.UTC()
		ev.EndUTC = &t
	}
	return ev, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func normalizeInput(input EventInput) (EventInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return EventInput{}, fmt.Errorf("event name is required")
	}
	if input.Start == "" {
		return EventInput{}, fmt.Errorf("event start date is required")
	}
	if input.End == "" {
		input.End = input.Start
	}
	input.Color = defaultColor(input.Color)

	// Timed events need both instants; all-day events need neither.
	if (input.StartUTC == nil) != (input.EndUTC == nil) {
		return EventInput{}, fmt.Errorf("timed event needs both start and end instants")
	}
	if input.StartUTC == nil {
		input.Time = ""
		input.EndTime = ""
		input.StartTimezone = ""
		input.EndTimezone = ""
		if input.End < input.Start {
			input.End = input.Start
		}
	}

	return input, nil
}

func defaultColor(color string) string {
	if strings.TrimSpace(color) == "" {
		return "#3b82f6"
	}
	return color
}

func formatCreatedDetails(ev model.Event) string {
	return fmt.Sprintf("created: name='%s' when=%s", ev.Name, formatWhen(ev))
}

func formatDeletedDetails(ev model.Event) string {
	return fmt.Sprintf("deleted: name='%s' when=%s", ev.Name, formatWhen(ev))
}

func formatEventDiff(before, after model.Event) string {
	changes := []string{}
	if before.Name != after.Name {
		changes = append(changes, formatChange("name", before.Name, after.Name))
	}
	if before.Description != after.Description {
		changes = append(changes, formatChange("description", before.Description, after.Description))
	}
	if before.Location != after.Location {
		changes = append(changes, formatChange("location", before.Location, after.Location))
	}
	if before.Color != after.Color {
		changes = append(changes, formatChange("color", before.Color, after.Color))
	}
	if formatWhen(before) != formatWhen(after) {
		changes = append(changes, formatChange("when", formatWhen(before), formatWhen(after)))
	}
	if before.RRule != after.RRule {
		changes = append(changes, formatChange("rrule", before.RRule, after.RRule))
	}

	if len(changes) == 0 {
		return "updated: no changes"
	}
	return "updated: " + strings.Join(changes, "; ")
}

func formatChange(field, before, after string) string {
	return fmt.Sprintf("%s: '%s' -> '%s'", field, valueOrNone(before), valueOrNone(after))
}

func valueOrNone(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "none"
	}
	return trimmed
}

func formatWhen(ev model.Event) string {
	if ev.AllDay() {
		if ev.Start == ev.End {
			return ev.Start
		}
		return ev.Start + ".." + ev.End
	}
	return fmt.Sprintf("%s %s..%s %s", ev.Start, ev.Time, ev.End, ev.EndTime)
}
