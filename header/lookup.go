package header

import (
	"errors"
	"fmt"
	"math"
)

// ErrBadLookup reports a lookup whose entries are out of order, overlap,
// or point outside the row range they index.
var ErrBadLookup = errors.New("header: malformed lookup")

// AppRows assigns a contiguous run of grid rows to an application.
type AppRows struct {
	AppID uint32
	Rows  uint32
}

// LookupItem marks where an application's row range begins. The range
// ends where the next item begins, or at the lookup size for the last
// item.
type LookupItem struct {
	AppID uint32
	Start uint32
}

// Lookup is a compact per-application row index over the systematic
// rows of a grid. Items are sorted by application ID and their starts
// partition [0, size).
type Lookup struct {
	size  uint32
	items []LookupItem
}

// NewLookup builds a lookup from per-application row counts. Ranges
// must carry strictly increasing application IDs and at least one row
// each; rows are assigned in order starting at zero.
func NewLookup(ranges []AppRows) (Lookup, error) {
	var (
		items []LookupItem
		total uint64
	)
	for i, r := range ranges {
		if r.Rows == 0 {
			return Lookup{}, fmt.Errorf("%w: app %d has no rows", ErrBadLookup, r.AppID)
		}
		if i > 0 && r.AppID <= ranges[i-1].AppID {
			return Lookup{}, fmt.Errorf("%w: app %d out of order", ErrBadLookup, r.AppID)
		}
		items = append(items, LookupItem{AppID: r.AppID, Start: uint32(total)})
		total += uint64(r.Rows)
		if total > math.MaxUint32 {
			return Lookup{}, fmt.Errorf("%w: %d rows overflow", ErrBadLookup, total)
		}
	}
	return Lookup{size: uint32(total), items: items}, nil
}

// Size returns the number of rows the lookup indexes.
func (l Lookup) Size() uint32 { return l.size }

// Items returns a copy of the lookup entries in application order.
func (l Lookup) Items() []LookupItem {
	return append([]LookupItem(nil), l.items...)
}

// RowsOf returns the half-open row range [start, end) assigned to the
// application, or ok=false when the application has no rows.
func (l Lookup) RowsOf(appID uint32) (start, end uint32, ok bool) {
	for i, it := range l.items {
		if it.AppID != appID {
			continue
		}
		end = l.size
		if i+1 < len(l.items) {
			end = l.items[i+1].Start
		}
		return it.Start, end, true
	}
	return 0, 0, false
}

// validate checks the structural invariants a decoded lookup must hold:
// a non-empty lookup starts at row zero, IDs and starts strictly
// increase, and every start lies inside [0, size).
func (l Lookup) validate() error {
	if l.size == 0 {
		if len(l.items) != 0 {
			return fmt.Errorf("%w: %d items with zero size", ErrBadLookup, len(l.items))
		}
		return nil
	}
	if len(l.items) == 0 {
		return fmt.Errorf("%w: no items for %d rows", ErrBadLookup, l.size)
	}
	if l.items[0].Start != 0 {
		return fmt.Errorf("%w: first range starts at %d", ErrBadLookup, l.items[0].Start)
	}
	for i, it := range l.items {
		if it.Start >= l.size {
			return fmt.Errorf("%w: app %d starts at %d of %d", ErrBadLookup, it.AppID, it.Start, l.size)
		}
		if i == 0 {
			continue
		}
		if it.AppID <= l.items[i-1].AppID {
			return fmt.Errorf("%w: app %d out of order", ErrBadLookup, it.AppID)
		}
		if it.Start <= l.items[i-1].Start {
			return fmt.Errorf("%w: app %d start %d not increasing", ErrBadLookup, it.AppID, it.Start)
		}
	}
	return nil
}
