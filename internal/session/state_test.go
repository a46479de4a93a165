package session

import (
	"sync"
	"testing"

	"github.com/tturner/gpdplot/internal/gpd"
)

func TestSnapshotIsDetached(t *testing.T) {
	s := New(gpd.DefaultOptions(), gpd.DefaultDomain())
	snap := s.Snapshot()
	snap.Domain.XbjChoices[0] = 99

	if s.Domain().XbjChoices[0] == 99 {
		t.Error("snapshot shares domain storage with state")
	}

	s.Update(func(opts gpd.Options, d gpd.Domain) (gpd.Options, gpd.Domain) {
		return opts.WithXbj(0.01), d
	})
	if snap.Options.Xbj != 0.001 {
		t.Errorf("earlier snapshot changed: %v", snap.Options.Xbj)
	}
	if s.Options().Xbj != 0.01 {
		t.Errorf("Options().Xbj = %v", s.Options().Xbj)
	}
}

func TestBusyCountsOverlappingFetches(t *testing.T) {
	s := New(gpd.DefaultOptions(), gpd.DefaultDomain())

	s.BeginFetch()
	s.BeginFetch()
	if !s.Busy() {
		t.Fatal("expected busy")
	}
	s.EndFetch("")
	if !s.Busy() {
		t.Fatal("still one fetch in flight")
	}
	s.EndFetch("Error: Data not found")
	if s.Busy() {
		t.Fatal("expected idle")
	}
	if s.ErrorMessage() != "Error: Data not found" {
		t.Errorf("ErrorMessage() = %q", s.ErrorMessage())
	}

	// extra EndFetch must not go negative
	s.EndFetch("")
	s.BeginFetch()
	if !s.Busy() {
		t.Error("counter went negative")
	}
	if s.ErrorMessage() != "" {
		t.Error("BeginFetch should clear the previous error")
	}
}

func TestNoticeAndTab(t *testing.T) {
	s := New(gpd.DefaultOptions(), gpd.DefaultDomain())
	s.SetNotice("domain unavailable")
	s.SelectTab(2)
	snap := s.Snapshot()
	if snap.Notice != "domain unavailable" || snap.SelectedTab != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
	s.SetNotice("")
	if s.Notice() != "" {
		t.Error("notice not cleared")
	}
}

func TestConcurrentUpdates(t *testing.T) {
	s := New(gpd.DefaultOptions().WithQ2(0), gpd.DefaultDomain())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(opts gpd.Options, d gpd.Domain) (gpd.Options, gpd.Domain) {
				return opts.WithQ2(opts.Q2 + 1), d
			})
			_ = s.Snapshot()
		}()
	}
	wg.Wait()
	if got := s.Options().Q2; got != 50 {
		t.Errorf("Q2 = %v, want 50", got)
	}
}
