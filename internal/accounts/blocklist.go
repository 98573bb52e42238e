package accounts

import (
	"sort"
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// Blocklist is the per-day set of rate-limited account ids. The day boundary
// is computed in a fixed reference location, so a block placed on day D is
// gone on D+1 no matter where the process runs or how long it has been up.
type Blocklist struct {
	mu   sync.Mutex
	loc  *time.Location
	now  func() time.Time
	days map[string]map[string]struct{}
}

// NewBlocklist returns an empty blocklist keyed by dates in loc.
func NewBlocklist(loc *time.Location) *Blocklist {
	if loc == nil {
		loc = time.UTC
	}
	return &Blocklist{
		loc:  loc,
		now:  time.Now,
		days: make(map[string]map[string]struct{}),
	}
}

// Today returns the current date in the reference location.
func (b *Blocklist) Today() string {
	return b.now().In(b.loc).Format(dayLayout)
}

// Block adds id to today's entry. It reports whether the id was newly added.
func (b *Blocklist) Block(id string) bool {
	if id == "" {
		return false
	}
	today := b.Today()

	b.mu.Lock()
	defer b.mu.Unlock()

	// Past days are never read again.
	for day := range b.days {
		if day != today {
			delete(b.days, day)
		}
	}

	ids, ok := b.days[today]
	if !ok {
		ids = make(map[string]struct{})
		b.days[today] = ids
	}
	if _, blocked := ids[id]; blocked {
		return false
	}
	ids[id] = struct{}{}
	return true
}

// Unblock removes id from every day that lists it.
func (b *Blocklist) Unblock(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ids := range b.days {
		delete(ids, id)
	}
}

// IsBlocked reports whether id is blocked today.
func (b *Blocklist) IsBlocked(id string) bool {
	today := b.Today()

	b.mu.Lock()
	defer b.mu.Unlock()
	_, blocked := b.days[today][id]
	return blocked
}

// BlockedToday returns a sorted copy of today's blocked ids.
func (b *Blocklist) BlockedToday() []string {
	today := b.Today()

	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]string, 0, len(b.days[today]))
	for id := range b.days[today] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
