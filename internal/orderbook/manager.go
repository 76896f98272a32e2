package orderbook

import (
	"sync"

	"aero-gateway/internal/venueid"
)

// Manager owns every (venue, instrument) book for the process lifetime,
// creating a book on first touch and handing out the same instance for
// every later lookup of the same key (spec.md §4.7 "order-book manager:
// multi-writer across sessions"). The outer map is guarded separately from
// each book's own rwlock so that concurrent access to distinct keys never
// contends.
type Manager struct {
	mu    sync.RWMutex
	books map[venueid.ID]map[string]*Book
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{books: make(map[venueid.ID]map[string]*Book)}
}

// Get returns the book for (venue, instrument), creating it if this is the
// first time the pair has been touched.
func (m *Manager) Get(venue venueid.ID, instrument string) *Book {
	m.mu.RLock()
	if byInstrument, ok := m.books[venue]; ok {
		if b, ok := byInstrument[instrument]; ok {
			m.mu.RUnlock()
			return b
		}
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	byInstrument, ok := m.books[venue]
	if !ok {
		byInstrument = make(map[string]*Book)
		m.books[venue] = byInstrument
	}
	if b, ok := byInstrument[instrument]; ok {
		return b
	}
	b := NewBook()
	byInstrument[instrument] = b
	return b
}

// Apply routes a parsed venue message to the appropriate book, creating it
// on first touch, and returns the book for further inspection (e.g. BBO).
func (m *Manager) Apply(venue venueid.ID, p *ParsedOrderBook) *Book {
	b := m.Get(venue, p.Instrument)
	b.Apply(p)
	return b
}

// BBO is a convenience lookup that returns the zero-value empty BBO if the
// (venue, instrument) pair has never been touched, without creating a book
// as a side effect.
func (m *Manager) BBO(venue venueid.ID, instrument string) BBO {
	m.mu.RLock()
	byInstrument, ok := m.books[venue]
	if !ok {
		m.mu.RUnlock()
		return BBO{Empty: true}
	}
	b, ok := byInstrument[instrument]
	m.mu.RUnlock()
	if !ok {
		return BBO{Empty: true}
	}
	return b.BBO()
}

// Instruments returns the instrument identifiers currently tracked for a
// venue.
func (m *Manager) Instruments(venue venueid.ID) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byInstrument, ok := m.books[venue]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(byInstrument))
	for instrument := range byInstrument {
		out = append(out, instrument)
	}
	return out
}
