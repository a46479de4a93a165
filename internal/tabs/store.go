package tabs

// Per-tab accumulation of fetched datasets

import (
	"fmt"
	"sync"

	"github.com/tturner/gpdplot/internal/gpd"
)

// Store holds one ordered list of datasets per display tab. Tabs are created
// in order and never removed; datasets are only ever appended.
type Store struct {
	mu   sync.Mutex
	tabs [][]gpd.Dataset
}

// New returns a store with tab 0 present.
func New() *Store {
	return &Store{tabs: make([][]gpd.Dataset, 1)}
}

// EnsureTab grows the store up to and including id. id may be at most one past
// the current maximum.
func (s *Store) EnsureTab(id gpd.TabID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(id)
}

func (s *Store) ensureLocked(id gpd.TabID) error {
	if id < 0 || id > len(s.tabs) {
		return fmt.Errorf("tab %d (have 0..%d): %w", id, len(s.tabs)-1, gpd.ErrInvalidTabID)
	}
	if id == len(s.tabs) {
		s.tabs = append(s.tabs, nil)
	}
	return nil
}

// Append adds ds to the end of tab id. The tab must exist.
func (s *Store) Append(id gpd.TabID, ds gpd.Dataset) error {
	_, err := s.AppendAndRead(id, ds)
	return err
}

// AppendAndRead appends ds and returns the tab's datasets as of that append,
// so callers can render exactly the state their append produced.
func (s *Store) AppendAndRead(id gpd.TabID, ds gpd.Dataset) ([]gpd.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.tabs) {
		return nil, fmt.Errorf("append to tab %d (have 0..%d): %w", id, len(s.tabs)-1, gpd.ErrInvalidTabID)
	}
	ds.Points = append([]gpd.DataPoint(nil), ds.Points...)
	s.tabs[id] = append(s.tabs[id], ds)
	return copyDatasets(s.tabs[id]), nil
}

// DatasetsFor returns a copy of tab id's datasets in insertion order. Unknown
// tabs yield nil.
func (s *Store) DatasetsFor(id gpd.TabID) []gpd.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.tabs) {
		return nil
	}
	return copyDatasets(s.tabs[id])
}

// Count returns the number of tabs.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tabs)
}

// Max returns the highest existing tab id.
func (s *Store) Max() gpd.TabID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tabs) - 1
}

func copyDatasets(in []gpd.Dataset) []gpd.Dataset {
	out := make([]gpd.Dataset, len(in))
	for i, ds := range in {
		out[i] = gpd.Dataset{
			Options: ds.Options,
			Points:  append([]gpd.DataPoint(nil), ds.Points...),
		}
	}
	return out
}
