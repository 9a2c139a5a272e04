package schedule

import (
	"time"

	"shala/internal/config"
	"shala/internal/model"
)

type venueKey struct {
	weekday time.Weekday
	slot    model.SlotKind
}

// VenueTable answers "where is this class held" for a (weekday, slot) pair.
type VenueTable struct {
	def       string
	overrides map[venueKey]string
}

// NewVenueTable builds the lookup from config. Config validation guarantees
// the weekday and slot names parse.
func NewVenueTable(cfg config.VenueConfig) (*VenueTable, error) {
	vt := &VenueTable{
		def:       cfg.Default,
		overrides: make(map[venueKey]string, len(cfg.Overrides)),
	}
	for _, ov := range cfg.Overrides {
		wd, err := config.ParseWeekday(ov.Weekday)
		if err != nil {
			return nil, err
		}
		vt.overrides[venueKey{weekday: wd, slot: model.SlotKind(ov.Slot)}] = ov.Venue
	}
	return vt, nil
}

// VenueFor returns the venue for a class, falling back to the default hall.
func (vt *VenueTable) VenueFor(weekday time.Weekday, slot model.SlotKind) string {
	if v, ok := vt.overrides[venueKey{weekday: weekday, slot: slot}]; ok {
		return v
	}
	return vt.def
}
