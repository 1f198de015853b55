// Package pricing answers "what was the price of this holding on this date"
// from caller-supplied price points, carrying the last known price forward
// across gaps.
package pricing

import (
	"slices"
	"sort"
	"time"

	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

// Book indexes price points per holding in ascending date order.
type Book struct {
	series map[string][]model.PricePoint
}

// NewBook creates a book from points in any order. Later points for the same
// holding and date replace earlier ones.
func NewBook(points []model.PricePoint) *Book {
	b := &Book{series: make(map[string][]model.PricePoint)}
	for _, p := range points {
		b.series[p.HoldingID] = append(b.series[p.HoldingID], p)
	}
	for id, pts := range b.series {
		slices.SortStableFunc(pts, func(a, c model.PricePoint) int {
			return a.Date.Compare(c.Date)
		})
		b.series[id] = dedupe(pts)
	}
	return b
}

func dedupe(pts []model.PricePoint) []model.PricePoint {
	out := pts[:0]
	for _, p := range pts {
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.Date) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

// AsOf returns the most recent price at or before at.
// Non-positive prices are treated as unusable.
func (b *Book) AsOf(holdingID string, at time.Time) (float64, bool) {
	pts := b.series[holdingID]
	i := sort.Search(len(pts), func(i int) bool {
		return pts[i].Date.After(at)
	})
	for i--; i >= 0; i-- {
		if pts[i].Price > 0 {
			return pts[i].Price, true
		}
	}
	return 0, false
}

// PriceFunc returns a lookup bound to the instant at.
func (b *Book) PriceFunc(at time.Time) model.PriceFunc {
	return func(holdingID string) (float64, bool) {
		return b.AsOf(holdingID, at)
	}
}

// Series returns the forward-filled price of holdingID on each date.
// Dates before the first observation have ok=false.
func (b *Book) Series(holdingID string, dates []time.Time) ([]float64, []bool) {
	prices := make([]float64, len(dates))
	ok := make([]bool, len(dates))
	for i, date := range dates {
		prices[i], ok[i] = b.AsOf(holdingID, date)
	}
	return prices, ok
}

// HoldingIDs returns the holdings that have at least one price point, sorted.
func (b *Book) HoldingIDs() []string {
	ids := make([]string, 0, len(b.series))
	for id := range b.series {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Tracker wraps a lookup and remembers which holdings had no price.
// It is not safe for concurrent use.
type Tracker struct {
	lookup  model.PriceFunc
	missing map[string]struct{}
}

// Track wraps lookup in a Tracker.
func Track(lookup model.PriceFunc) *Tracker {
	return &Tracker{lookup: lookup, missing: make(map[string]struct{})}
}

// Price looks up holdingID and records it when absent.
func (t *Tracker) Price(holdingID string) (float64, bool) {
	p, ok := t.lookup(holdingID)
	if !ok {
		t.missing[holdingID] = struct{}{}
		return 0, false
	}
	return p, true
}

// IsMissing reports whether holdingID has been looked up without a price.
func (t *Tracker) IsMissing(holdingID string) bool {
	_, ok := t.missing[holdingID]
	return ok
}

// Missing returns the holdings looked up without a price, sorted.
func (t *Tracker) Missing() []string {
	ids := make([]string, 0, len(t.missing))
	for id := range t.missing {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// DailyGrid returns every calendar day from start to end inclusive, in UTC.
func DailyGrid(start, end time.Time) []time.Time {
	s := truncateDay(start)
	e := truncateDay(end)
	if e.Before(s) {
		return nil
	}
	var dates []time.Time
	for cur := s; !cur.After(e); cur = cur.AddDate(0, 0, 1) {
		dates = append(dates, cur)
	}
	return dates
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
