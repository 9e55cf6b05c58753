package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/valter-silva-au/blockplan/pkg/models"
)

// DefaultHorizonDays is the expansion horizon used when none is configured.
const DefaultHorizonDays = 7

var zoneParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ExpandZones turns zone templates into concrete instances over the
// planning horizon. A template recurs at its own time of day on the days
// named by its Days field, starting from its own date, or from the date of
// now when the template date has already passed. Instances that ended
// before now are dropped and an instance in progress starts at now. The
// result is ordered by start time.
func ExpandZones(templates []models.TimeBlockZone, now time.Time, horizonDays int) ([]models.TimeBlockZone, error) {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	var instances []models.TimeBlockZone
	for i, tpl := range templates {
		length := tpl.End.Sub(tpl.Start)
		if length <= 0 {
			return nil, fmt.Errorf("zone template %d (%s): start must be before end", i, tpl.Name)
		}

		sched, err := zoneSchedule(tpl)
		if err != nil {
			return nil, fmt.Errorf("zone template %d (%s): %w", i, tpl.Name, err)
		}

		anchor := anchorStart(tpl.Start, now)
		y, m, d := anchor.Date()
		horizonEnd := time.Date(y, m, d, 0, 0, 0, 0, anchor.Location()).AddDate(0, 0, horizonDays)

		for start := sched.Next(anchor.Add(-time.Second)); !start.IsZero() && start.Before(horizonEnd); start = sched.Next(start) {
			end := start.Add(length)
			if !end.After(now) {
				continue
			}
			inst := tpl
			inst.Start = laterOf(start, now)
			inst.End = end
			inst.Events = nil
			instances = append(instances, inst)
		}
	}

	sort.SliceStable(instances, func(i, j int) bool {
		return instances[i].Start.Before(instances[j].Start)
	})
	return instances, nil
}

func zoneSchedule(tpl models.TimeBlockZone) (cron.Schedule, error) {
	days := strings.TrimSpace(tpl.Days)
	if days == "" {
		days = "*"
	}
	expr := fmt.Sprintf("%d %d * * %s", tpl.Start.Minute(), tpl.Start.Hour(), days)
	sched, err := zoneParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing days %q: %w", tpl.Days, err)
	}
	return sched, nil
}

// anchorStart keeps the template's time of day but moves its date forward
// to today when the template date is in the past.
func anchorStart(tplStart, now time.Time) time.Time {
	loc := tplStart.Location()
	today := now.In(loc)
	ty, tm, td := tplStart.Date()
	ny, nm, nd := today.Date()
	if time.Date(ty, tm, td, 0, 0, 0, 0, loc).Before(time.Date(ny, nm, nd, 0, 0, 0, 0, loc)) {
		return time.Date(ny, nm, nd, tplStart.Hour(), tplStart.Minute(), 0, 0, loc)
	}
	return tplStart.Truncate(time.Minute)
}
