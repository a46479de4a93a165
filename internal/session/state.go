package session

// Session-wide state shared by the cascade controller, the fetch orchestrator
// and the UI shell

import (
	"sync"

	"github.com/tturner/gpdplot/internal/gpd"
)

// Snapshot is a consistent, caller-owned copy of the session state.
type Snapshot struct {
	Options      gpd.Options
	Domain       gpd.Domain
	Busy         bool
	ErrorMessage string // user-visible fetch failure, empty when none
	Notice       string // non-fatal domain resolution notice, empty when none
	SelectedTab  gpd.TabID
}

// State is the single source of truth for the current selection. All access is
// serialized; Options are replaced, never edited in place.
type State struct {
	mu           sync.RWMutex
	options      gpd.Options
	domain       gpd.Domain
	inflight     int
	errorMessage string
	notice       string
	selectedTab  gpd.TabID
}

// New creates a State with the given starting selection and domain.
func New(opts gpd.Options, domain gpd.Domain) *State {
	return &State{
		options: opts,
		domain:  domain.Clone(),
	}
}

// Snapshot returns a copy safe to keep across later updates.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Options:      s.options,
		Domain:       s.domain.Clone(),
		Busy:         s.inflight > 0,
		ErrorMessage: s.errorMessage,
		Notice:       s.notice,
		SelectedTab:  s.selectedTab,
	}
}

// Options returns the current selection.
func (s *State) Options() gpd.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.options
}

// Domain returns a copy of the displayed domain.
func (s *State) Domain() gpd.Domain {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.domain.Clone()
}

// Update applies fn to copies of the options and domain under the write lock
// and stores what fn returns.
func (s *State) Update(fn func(opts gpd.Options, domain gpd.Domain) (gpd.Options, gpd.Domain)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options, s.domain = fn(s.options, s.domain.Clone())
}

// BeginFetch marks one more fetch in flight and clears the previous error.
func (s *State) BeginFetch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight++
	s.errorMessage = ""
}

// EndFetch marks a fetch finished. A non-empty message becomes the visible error.
func (s *State) EndFetch(errMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight > 0 {
		s.inflight--
	}
	if errMessage != "" {
		s.errorMessage = errMessage
	}
}

// Busy reports whether any fetch is in flight.
func (s *State) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// ErrorMessage returns the last fetch failure message.
func (s *State) ErrorMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errorMessage
}

// SetNotice records a non-fatal notice; empty clears it.
func (s *State) SetNotice(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = msg
}

// Notice returns the current non-fatal notice.
func (s *State) Notice() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notice
}

// SelectTab records which tab the UI shows.
func (s *State) SelectTab(id gpd.TabID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedTab = id
}

// SelectedTab returns the tab the UI shows.
func (s *State) SelectedTab() gpd.TabID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedTab
}
