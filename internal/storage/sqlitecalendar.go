package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/valter-silva-au/blockplan/pkg/models"
)

// CalendarDBFileName is the SQLite calendar file inside the base directory.
const CalendarDBFileName = "blockplan.db"

type sqliteCalendar struct {
	db  *sql.DB
	loc *time.Location
}

// OpenSQLiteCalendar opens (creating if needed) the SQLite calendar at path
// and migrates it to SchemaVersion. Zone times of day are read in loc.
func OpenSQLiteCalendar(path string, loc *time.Location) (Calendar, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("open calendar: sqlite path is required")
	}
	if loc == nil {
		loc = time.Local
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("open calendar: creating directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open calendar: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA journal_mode = WAL")

	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteCalendar{db: db, loc: loc}, nil
}

func (c *sqliteCalendar) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Refresh is a no-op: every read goes to the database.
func (c *sqliteCalendar) Refresh() error { return nil }

func (c *sqliteCalendar) ListZones() ([]ZoneEntry, error) {
	rows, err := c.db.Query(`SELECT name, start_clock, end_clock, from_date, days, zone_type, energy_level, min_duration, buffer_required
		FROM zones ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list zones: query: %w", err)
	}
	defer rows.Close()

	var out []ZoneEntry
	for rows.Next() {
		var z ZoneEntry
		var zt, el string
		if err := rows.Scan(&z.Name, &z.Start, &z.End, &z.From, &z.Days, &zt, &el, &z.MinDuration, &z.BufferRequired); err != nil {
			return nil, fmt.Errorf("list zones: scan: %w", err)
		}
		z.ZoneType = models.ZoneType(zt)
		z.EnergyLevel = models.EnergyLevel(el)
		out = append(out, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list zones: rows: %w", err)
	}
	return out, nil
}

func (c *sqliteCalendar) GetZones() ([]models.TimeBlockZone, error) {
	entries, err := c.ListZones()
	if err != nil {
		return nil, err
	}
	return zonesFromEntries(entries, c.loc)
}

func (c *sqliteCalendar) AddZone(zone ZoneEntry) error {
	if _, err := zone.ToZone(c.loc); err != nil {
		return fmt.Errorf("adding zone: %w", err)
	}
	_, err := c.db.Exec(`INSERT INTO zones (name, start_clock, end_clock, from_date, days, zone_type, energy_level, min_duration, buffer_required)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		zone.Name, zone.Start, zone.End, zone.From, zone.Days,
		string(zone.ZoneType), string(zone.EnergyLevel), zone.MinDuration, zone.BufferRequired)
	if err != nil {
		return fmt.Errorf("adding zone: insert: %w", err)
	}
	return nil
}

const eventColumns = `calendar_id, id, task_id, title, kind, start_ms, end_ms, buffer_required`

func (c *sqliteCalendar) queryEvents(op, where string, args ...any) ([]models.Event, error) {
	rows, err := c.db.Query(`SELECT `+eventColumns+` FROM events WHERE `+where+` ORDER BY start_ms, rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var e models.Event
		var kind string
		var startMS, endMS int64
		if err := rows.Scan(&e.CalendarID, &e.ID, &e.TaskID, &e.Title, &kind, &startMS, &endMS, &e.BufferRequired); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		e.Type = models.EventType(kind)
		e.Start = time.UnixMilli(startMS).In(c.loc)
		e.End = time.UnixMilli(endMS).In(c.loc)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return out, nil
}

func (c *sqliteCalendar) GetEvents(start, end time.Time) ([]models.Event, error) {
	return c.queryEvents("get events", `kind = ? AND start_ms < ? AND end_ms > ?`,
		string(models.EventFixed), end.UnixMilli(), start.UnixMilli())
}

func (c *sqliteCalendar) ListEvents(start, end time.Time) ([]models.Event, error) {
	return c.queryEvents("list events", `start_ms < ? AND end_ms > ?`, end.UnixMilli(), start.UnixMilli())
}

func (c *sqliteCalendar) GetManagedEvents() ([]models.Event, error) {
	return c.queryEvents("get managed events", `kind = ?`, string(models.EventManaged))
}

func (c *sqliteCalendar) AddFixedEvent(event models.Event) (string, error) {
	event.Type = models.EventFixed
	return c.insert(event)
}

func (c *sqliteCalendar) CreateEvent(event models.Event) (string, error) {
	return c.insert(event)
}

func (c *sqliteCalendar) insert(event models.Event) (string, error) {
	if !event.Start.Before(event.End) {
		return "", fmt.Errorf("creating event %s: start must be before end", event.ID)
	}
	calendarID := uuid.NewString()
	if event.ID == "" {
		event.ID = calendarID
	}
	_, err := c.db.Exec(`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		calendarID, event.ID, event.TaskID, event.Title, string(event.Type),
		event.Start.UnixMilli(), event.End.UnixMilli(), event.BufferRequired)
	if err != nil {
		return "", fmt.Errorf("creating event %s: insert: %w", event.ID, err)
	}
	return calendarID, nil
}

func (c *sqliteCalendar) RemoveManagedEvents() error {
	if _, err := c.db.Exec(`DELETE FROM events WHERE kind = ?`, string(models.EventManaged)); err != nil {
		return fmt.Errorf("removing managed events: %w", err)
	}
	return nil
}
