package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/blockplan/pkg/models"
)

// CalendarFileName is the YAML calendar file inside the base directory.
const CalendarFileName = "calendar.yaml"

// templateEpoch dates zone templates that carry no "from" date. Zone
// expansion moves past template dates forward to the current day.
var templateEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Calendar is the storage-side calendar: zone templates plus fixed and
// managed events. It is implemented by the YAML file store and by the
// SQLite store.
type Calendar interface {
	GetZones() ([]models.TimeBlockZone, error)
	ListZones() ([]ZoneEntry, error)
	AddZone(zone ZoneEntry) error
	// GetEvents returns the fixed events overlapping [start, end).
	GetEvents(start, end time.Time) ([]models.Event, error)
	// ListEvents returns every event overlapping [start, end), ordered by
	// start time.
	ListEvents(start, end time.Time) ([]models.Event, error)
	GetManagedEvents() ([]models.Event, error)
	// AddFixedEvent stores an externally owned event.
	AddFixedEvent(event models.Event) (string, error)
	// CreateEvent stores a scheduler event and returns its calendar ID.
	CreateEvent(event models.Event) (string, error)
	RemoveManagedEvents() error
	// Refresh rereads state changed by another process.
	Refresh() error
	Close() error
}

// ZoneEntry is a zone template as written by the user. Start and End are
// times of day ("09:00"); From optionally names the first date
// ("2026-03-02") and Days is a cron day-of-week field.
type ZoneEntry struct {
	Name           string             `yaml:"name" json:"name"`
	Start          string             `yaml:"start" json:"start"`
	End            string             `yaml:"end" json:"end"`
	From           string             `yaml:"from,omitempty" json:"from,omitempty"`
	Days           string             `yaml:"days,omitempty" json:"days,omitempty"`
	ZoneType       models.ZoneType    `yaml:"zone_type" json:"zone_type"`
	EnergyLevel    models.EnergyLevel `yaml:"energy_level" json:"energy_level"`
	MinDuration    int                `yaml:"min_duration" json:"min_duration"`
	BufferRequired int                `yaml:"buffer_required" json:"buffer_required"`
}

// ToZone converts the entry into a zone template in loc.
func (z ZoneEntry) ToZone(loc *time.Location) (models.TimeBlockZone, error) {
	day := templateEpoch
	if z.From != "" {
		d, err := time.ParseInLocation("2006-01-02", z.From, loc)
		if err != nil {
			return models.TimeBlockZone{}, fmt.Errorf("zone %q: parsing from date: %w", z.Name, err)
		}
		day = d
	}

	start, err := clockTime(day, z.Start, loc)
	if err != nil {
		return models.TimeBlockZone{}, fmt.Errorf("zone %q: parsing start: %w", z.Name, err)
	}
	end, err := clockTime(day, z.End, loc)
	if err != nil {
		return models.TimeBlockZone{}, fmt.Errorf("zone %q: parsing end: %w", z.Name, err)
	}
	if !models.ValidZoneTypes[z.ZoneType] {
		return models.TimeBlockZone{}, fmt.Errorf("zone %q: unknown zone type %q", z.Name, z.ZoneType)
	}
	if !models.ValidEnergyLevels[z.EnergyLevel] {
		return models.TimeBlockZone{}, fmt.Errorf("zone %q: unknown energy level %q", z.Name, z.EnergyLevel)
	}

	zone, err := models.NewTimeBlockZone(start, end, z.ZoneType, z.EnergyLevel, z.MinDuration, z.BufferRequired, nil)
	if err != nil {
		return models.TimeBlockZone{}, fmt.Errorf("zone %q: %w", z.Name, err)
	}
	zone.Name = z.Name
	zone.Days = z.Days
	return *zone, nil
}

func clockTime(day time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc), nil
}

func zonesFromEntries(entries []ZoneEntry, loc *time.Location) ([]models.TimeBlockZone, error) {
	zones := make([]models.TimeBlockZone, 0, len(entries))
	for _, e := range entries {
		z, err := e.ToZone(loc)
		if err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, nil
}

// CalendarFile represents the top-level structure of calendar.yaml.
type CalendarFile struct {
	Version string         `yaml:"version"`
	Zones   []ZoneEntry    `yaml:"zones"`
	Events  []models.Event `yaml:"events"`
}

type yamlCalendar struct {
	basePath string
	loc      *time.Location
	data     CalendarFile
}

// NewYAMLCalendar opens the calendar.yaml store in basePath. Zone times of
// day are read in loc. Every mutation is written to disk immediately.
func NewYAMLCalendar(basePath string, loc *time.Location) (Calendar, error) {
	if loc == nil {
		loc = time.Local
	}
	c := &yamlCalendar{basePath: basePath, loc: loc}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *yamlCalendar) filePath() string {
	return filepath.Join(c.basePath, CalendarFileName)
}

func (c *yamlCalendar) load() error {
	data, err := os.ReadFile(c.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			c.data = CalendarFile{Version: "1.0"}
			return nil
		}
		return fmt.Errorf("loading calendar: %w", err)
	}

	var cf CalendarFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("loading calendar: parsing YAML: %w", err)
	}
	for i := range cf.Events {
		if cf.Events[i].Type == "" {
			cf.Events[i].Type = models.EventFixed
		}
	}
	if cf.Version == "" {
		cf.Version = "1.0"
	}
	c.data = cf
	return nil
}

func (c *yamlCalendar) save() error {
	data, err := yaml.Marshal(&c.data)
	if err != nil {
		return fmt.Errorf("saving calendar: marshaling YAML: %w", err)
	}
	if err := writeLocked(c.basePath, c.filePath(), data); err != nil {
		return fmt.Errorf("saving calendar: %w", err)
	}
	return nil
}

func (c *yamlCalendar) GetZones() ([]models.TimeBlockZone, error) {
	return zonesFromEntries(c.data.Zones, c.loc)
}

func (c *yamlCalendar) ListZones() ([]ZoneEntry, error) {
	out := make([]ZoneEntry, len(c.data.Zones))
	copy(out, c.data.Zones)
	return out, nil
}

func (c *yamlCalendar) AddZone(zone ZoneEntry) error {
	if _, err := zone.ToZone(c.loc); err != nil {
		return fmt.Errorf("adding zone: %w", err)
	}
	c.data.Zones = append(c.data.Zones, zone)
	return c.save()
}

func (c *yamlCalendar) collect(start, end time.Time, keep func(models.Event) bool) []models.Event {
	var out []models.Event
	for _, e := range c.data.Events {
		if keep(e) && e.Overlaps(start, end) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (c *yamlCalendar) GetEvents(start, end time.Time) ([]models.Event, error) {
	return c.collect(start, end, func(e models.Event) bool { return e.Type == models.EventFixed }), nil
}

func (c *yamlCalendar) ListEvents(start, end time.Time) ([]models.Event, error) {
	return c.collect(start, end, func(models.Event) bool { return true }), nil
}

func (c *yamlCalendar) GetManagedEvents() ([]models.Event, error) {
	var out []models.Event
	for _, e := range c.data.Events {
		if e.Type == models.EventManaged {
			out = append(out, e)
		}
	}
	return out, nil
}

func (c *yamlCalendar) AddFixedEvent(event models.Event) (string, error) {
	event.Type = models.EventFixed
	return c.add(event)
}

func (c *yamlCalendar) CreateEvent(event models.Event) (string, error) {
	return c.add(event)
}

func (c *yamlCalendar) add(event models.Event) (string, error) {
	if !event.Start.Before(event.End) {
		return "", fmt.Errorf("creating event %s: start must be before end", event.ID)
	}
	event.CalendarID = uuid.NewString()
	if event.ID == "" {
		event.ID = event.CalendarID
	}
	c.data.Events = append(c.data.Events, event)
	if err := c.save(); err != nil {
		c.data.Events = c.data.Events[:len(c.data.Events)-1]
		return "", err
	}
	return event.CalendarID, nil
}

func (c *yamlCalendar) RemoveManagedEvents() error {
	kept := c.data.Events[:0]
	for _, e := range c.data.Events {
		if e.Type != models.EventManaged {
			kept = append(kept, e)
		}
	}
	c.data.Events = kept
	return c.save()
}

func (c *yamlCalendar) Refresh() error { return c.load() }

func (c *yamlCalendar) Close() error { return nil }
