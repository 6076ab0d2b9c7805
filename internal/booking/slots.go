// Package booking computes bookable hours for a space and drives the booking form.
package booking

import (
	"fmt"
	"sort"

	"github.com/spacebook/client/internal/models"
)

const (
	// OpeningHour is the first bookable start hour.
	OpeningHour = 9
	// LastStartHour is the last bookable start hour.
	LastStartHour = 22
	// ClosingHour is the latest possible end hour.
	ClosingHour = 23
)

// HourGrid is the ordered list of bookable start hours.
var HourGrid = func() []int {
	grid := make([]int, 0, LastStartHour-OpeningHour+1)
	for h := OpeningHour; h <= LastStartHour; h++ {
		grid = append(grid, h)
	}
	return grid
}()

// InGrid reports whether hour is a bookable start hour.
func InGrid(hour int) bool {
	return hour >= OpeningHour && hour <= LastStartHour
}

// HourOption is one entry of a start or end hour picker.
type HourOption struct {
	Hour     int    `json:"hour"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
}

// HourLabel renders an hour as "HH:00".
func HourLabel(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

// Reserved is the set of booked intervals of one space on one day.
// The intervals do not overlap but are not sorted.
type Reserved []models.ReservedTime

// IsReserved reports whether hour falls inside [start, end) of any interval.
func (r Reserved) IsReserved(hour int) bool {
	for _, iv := range r {
		if hour >= iv.StartHour && hour < iv.EndHour {
			return true
		}
	}
	return false
}

// NextReservedStartAfter returns the earliest interval start strictly after
// start, or ClosingHour when none exists.
func (r Reserved) NextReservedStartAfter(start int) int {
	next := ClosingHour
	for _, iv := range r {
		if iv.StartHour > start && iv.StartHour < next {
			next = iv.StartHour
		}
	}
	return next
}

// ValidEndHours lists the end hours a booking starting at start may use.
// A booking cannot run into the next reservation, so its start caps the end.
func (r Reserved) ValidEndHours(start int) []int {
	limit := r.NextReservedStartAfter(start)
	if limit > 24 {
		limit = 24
	}

	var ends []int
	for h := start + 1; h <= limit; h++ {
		ends = append(ends, h)
	}
	return ends
}

// IsValidEnd reports whether end is offered for start.
func (r Reserved) IsValidEnd(start, end int) bool {
	return end > start && end <= r.NextReservedStartAfter(start) && end <= 24
}

// StartOptions lists the grid hours, disabling the reserved ones.
func (r Reserved) StartOptions() []HourOption {
	opts := make([]HourOption, 0, len(HourGrid))
	for _, h := range HourGrid {
		opts = append(opts, HourOption{Hour: h, Label: HourLabel(h), Disabled: r.IsReserved(h)})
	}
	return opts
}

// EndOptions lists the valid end hours for start.
func (r Reserved) EndOptions(start int) []HourOption {
	ends := r.ValidEndHours(start)
	opts := make([]HourOption, 0, len(ends))
	for _, h := range ends {
		opts = append(opts, HourOption{Hour: h, Label: HourLabel(h)})
	}
	return opts
}

// Sorted returns a copy ordered by start hour.
func (r Reserved) Sorted() Reserved {
	out := make(Reserved, len(r))
	copy(out, r)
	sort.Slice(out, func(i, j int) bool { return out[i].StartHour < out[j].StartHour })
	return out
}

// Equal reports whether r and other hold the same intervals, in any order.
func (r Reserved) Equal(other Reserved) bool {
	if len(r) != len(other) {
		return false
	}
	a, b := r.Sorted(), other.Sorted()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Price returns the cost of booking [start, end) at pricePerHour.
func Price(start, end int, pricePerHour int64) int64 {
	if end <= start {
		return 0
	}
	return int64(end-start) * pricePerHour
}
