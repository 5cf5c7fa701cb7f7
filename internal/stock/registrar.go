package stock

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registrar decides which products are watched. Each source (the cart, the
// product being viewed) reports its IDs; the deduplicated union is
// committed downstream once no change has arrived for the debounce window.
// Identical sets are never committed twice in a row.
type Registrar struct {
	window time.Duration
	commit func(ids []string)

	mu        sync.Mutex
	sources   map[string][]string
	committed []string
	pending   []string
	pendingAt uint64
	stopTimer func() bool
	schedule  Scheduler
	closed    bool

	logger zerolog.Logger
}

// NewRegistrar creates a registrar that calls commit with every settled
// watch set.
func NewRegistrar(window time.Duration, commit func(ids []string), logger zerolog.Logger) *Registrar {
	return &Registrar{
		window:  window,
		commit:  commit,
		sources: make(map[string][]string),
		schedule: func(d time.Duration, fn func()) func() bool {
			return time.AfterFunc(d, fn).Stop
		},
		logger: logger.With().Str("component", "stock-registrar").Logger(),
	}
}

// Watch replaces the IDs contributed by source.
func (r *Registrar) Watch(source string, ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.sources[source] = append([]string(nil), ids...)
	ids = watchSet(r.sources)

	switch {
	case r.stopTimer != nil && slices.Equal(ids, r.pending):
		return
	case slices.Equal(ids, r.committed):
		r.cancelLocked()
		return
	}

	r.cancelLocked()
	r.pending = ids
	r.pendingAt++
	seq := r.pendingAt
	r.stopTimer = r.schedule(r.window, func() { r.fire(seq) })
}

// Flush commits a pending watch set immediately.
func (r *Registrar) Flush() {
	r.mu.Lock()
	if r.stopTimer == nil {
		r.mu.Unlock()
		return
	}
	seq := r.pendingAt
	r.mu.Unlock()

	r.fire(seq)
}

// Close drops any pending change.
func (r *Registrar) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.cancelLocked()
}

func (r *Registrar) cancelLocked() {
	if r.stopTimer != nil {
		r.stopTimer()
		r.stopTimer = nil
	}
	r.pending = nil
}

func (r *Registrar) fire(seq uint64) {
	r.mu.Lock()
	if r.closed || seq != r.pendingAt || r.stopTimer == nil {
		r.mu.Unlock()
		return
	}
	ids := r.pending
	r.stopTimer()
	r.stopTimer = nil
	r.pending = nil
	r.committed = ids
	r.mu.Unlock()

	r.logger.Debug().Strs("ids", ids).Msg("watch set committed")
	r.commit(ids)
}

// watchSet returns the deduplicated union of all sources, sorted and
// without empty IDs.
func watchSet(sources map[string][]string) []string {
	seen := make(map[string]bool)
	ids := []string{}
	for _, list := range sources {
		for _, id := range list {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
