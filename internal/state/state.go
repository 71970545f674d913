// Package state holds the HUD values of the current map session with
// thread-safe access.
package state

import (
	"math"
	"sync"
	"time"

	"github.com/litescript/ls-drive/internal/geo"
)

// EventType represents the type of session event.
type EventType string

const (
	EventRouteLoaded EventType = "ROUTE_LOADED"
	EventRouteFailed EventType = "ROUTE_FAILED"
	EventStarted     EventType = "STARTED"
	EventStopped     EventType = "STOPPED"
	EventArrived     EventType = "ARRIVED"
	EventCleared     EventType = "CLEARED"
)

// Event is one entry of the session event log.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Session   string    `json:"session,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Manager is the session store. The controller owns it; renderers and the
// exporter read snapshots.
type Manager struct {
	mu sync.RWMutex

	// HUD values
	position       geo.Coordinate
	hasPosition    bool
	startAddress   string
	endAddress     string
	currentAddress string
	totalMeters    float64
	hasTotal       bool
	etaText        string

	// Transient notice
	notice         string
	noticeExpires  time.Time
	noticeDuration time.Duration

	// Event log (ring buffer)
	events       []Event
	maxEvents    int
	eventWriteAt int
}

// Config holds configuration for the session store.
type Config struct {
	MaxEvents      int
	NoticeDuration time.Duration
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		MaxEvents:      50,
		NoticeDuration: 3 * time.Second,
	}
}

// NewManager creates an empty session store.
func NewManager(cfg Config) *Manager {
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = 50
	}
	noticeDuration := cfg.NoticeDuration
	if noticeDuration <= 0 {
		noticeDuration = 3 * time.Second
	}
	return &Manager{
		maxEvents:      maxEvents,
		events:         make([]Event, 0, maxEvents),
		noticeDuration: noticeDuration,
	}
}

// SetPosition records the vehicle position shown in the HUD.
func (m *Manager) SetPosition(c geo.Coordinate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = c
	m.hasPosition = true
}

// ClearPosition blanks the HUD position.
func (m *Manager) ClearPosition() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = geo.Coordinate{}
	m.hasPosition = false
}

// SetStartAddress sets the address of the start point.
func (m *Manager) SetStartAddress(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startAddress = addr
}

// SetEndAddress sets the address of the destination.
func (m *Manager) SetEndAddress(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endAddress = addr
}

// SetCurrentAddress sets the address under the vehicle.
func (m *Manager) SetCurrentAddress(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentAddress = addr
}

// SetTotalMeters records the route length, rounded to whole meters.
func (m *Manager) SetTotalMeters(meters float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if math.IsNaN(meters) || meters < 0 {
		m.totalMeters = 0
		m.hasTotal = false
		return
	}
	m.totalMeters = math.Round(meters)
	m.hasTotal = true
}

// SetETA sets the formatted arrival time; "" blanks it.
func (m *Manager) SetETA(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etaText = text
}

// ShowNotice displays text until NoticeDuration after now. A newer notice
// replaces the current one.
func (m *Manager) ShowNotice(now time.Time, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notice = text
	m.noticeExpires = now.Add(m.noticeDuration)
}

// DismissNotice hides the notice immediately.
func (m *Manager) DismissNotice() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notice = ""
	m.noticeExpires = time.Time{}
}

// AddEvent appends to the event log.
func (m *Manager) AddEvent(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	m.addEvent(e)
}

// Clear resets every HUD value. The notice and event log are kept so a
// failure message survives the reset it triggers.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = geo.Coordinate{}
	m.hasPosition = false
	m.startAddress = ""
	m.endAddress = ""
	m.currentAddress = ""
	m.totalMeters = 0
	m.hasTotal = false
	m.etaText = ""
}

// addEvent adds an event to the ring buffer.
func (m *Manager) addEvent(e Event) {
	if len(m.events) < m.maxEvents {
		m.events = append(m.events, e)
	} else {
		m.events[m.eventWriteAt] = e
		m.eventWriteAt = (m.eventWriteAt + 1) % m.maxEvents
	}
}

// Snapshot is an immutable copy of the store.
type Snapshot struct {
	Position       *geo.Coordinate `json:"position,omitempty"`
	StartAddress   string          `json:"start_address,omitempty"`
	EndAddress     string          `json:"end_address,omitempty"`
	CurrentAddress string          `json:"current_address,omitempty"`
	TotalMeters    *float64        `json:"total_meters,omitempty"`
	ETA            string          `json:"eta,omitempty"`
	Notice         string          `json:"notice,omitempty"`
	Events         []Event         `json:"events,omitempty"`
}

// Snapshot returns a consistent copy of the store. An expired notice is
// omitted.
func (m *Manager) Snapshot(now time.Time) Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		StartAddress:   m.startAddress,
		EndAddress:     m.endAddress,
		CurrentAddress: m.currentAddress,
		ETA:            m.etaText,
		Events:         m.getEventsOrdered(),
	}
	if m.hasPosition {
		pos := m.position
		snap.Position = &pos
	}
	if m.hasTotal {
		total := m.totalMeters
		snap.TotalMeters = &total
	}
	if m.notice != "" && now.Before(m.noticeExpires) {
		snap.Notice = m.notice
	}
	return snap
}

// getEventsOrdered returns events in chronological order.
func (m *Manager) getEventsOrdered() []Event {
	if len(m.events) == 0 {
		return nil
	}

	// If buffer isn't full yet, just copy
	if len(m.events) < m.maxEvents {
		result := make([]Event, len(m.events))
		copy(result, m.events)
		return result
	}

	// Ring buffer is full, reorder from oldest to newest
	result := make([]Event, m.maxEvents)
	for i := 0; i < m.maxEvents; i++ {
		idx := (m.eventWriteAt + i) % m.maxEvents
		result[i] = m.events[idx]
	}
	return result
}

// RecentEvents returns the last n events.
func (m *Manager) RecentEvents(n int) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.getEventsOrdered()
	if len(all) <= n {
		return all
	}
	return all[len(all)-n:]
}

