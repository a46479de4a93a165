package tui

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tturner/gpdplot/internal/cascade"
	"github.com/tturner/gpdplot/internal/export"
	"github.com/tturner/gpdplot/internal/fetch"
	"github.com/tturner/gpdplot/internal/gpd"
	"github.com/tturner/gpdplot/internal/modelclient"
	"github.com/tturner/gpdplot/internal/modelsvc"
	"github.com/tturner/gpdplot/internal/session"
	"github.com/tturner/gpdplot/internal/tabs"
)

func newTestModel(t *testing.T) (*Model, string) {
	t.Helper()
	srv := httptest.NewServer(modelsvc.NewServer(modelsvc.Options{}))
	t.Cleanup(srv.Close)

	client := modelclient.NewClient(srv.URL, 5*time.Second, nil)
	state := session.New(gpd.DefaultOptions(), gpd.DefaultDomain())
	store := tabs.New()
	dir := t.TempDir()
	deps := Deps{
		Context:      context.Background(),
		Controller:   cascade.New(client, state, nil),
		Orchestrator: fetch.New(client, store, state, nil, export.NewFileExporter(dir), nil),
		Store:        store,
		State:        state,
	}
	return NewModel(deps), dir
}

// drain runs cmd and feeds its message back into the model.
func drain(t *testing.T, m *Model, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	_, next := m.Update(cmd())
	return next
}

func press(m *Model, msg tea.KeyMsg) tea.Cmd {
	_, cmd := m.Update(msg)
	return cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestInitLoadsDomain(t *testing.T) {
	m, _ := newTestModel(t)
	drain(t, m, m.runCascade("init", m.deps.Controller.Init))

	if m.resolves != 0 {
		t.Errorf("resolves = %d after completion", m.resolves)
	}
	d := m.deps.State.Domain()
	if len(d.XbjChoices) != 19 || len(d.TChoices) != 19 {
		t.Errorf("domain = %d xbj, %d t", len(d.XbjChoices), len(d.TChoices))
	}
}

func TestCycleXbjRunsCascade(t *testing.T) {
	m, _ := newTestModel(t)
	drain(t, m, m.runCascade("init", m.deps.Controller.Init))

	press(m, tea.KeyMsg{Type: tea.KeyDown})
	press(m, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != fieldXbj {
		t.Fatalf("cursor = %d", m.cursor)
	}
	cmd := press(m, tea.KeyMsg{Type: tea.KeyRight})
	if m.resolves != 1 {
		t.Errorf("resolves = %d while in flight", m.resolves)
	}
	drain(t, m, cmd)

	snap := m.deps.State.Snapshot()
	if snap.Options.Xbj != 0.002 {
		t.Errorf("xbj = %v, want the next choice 0.002", snap.Options.Xbj)
	}
	if !snap.Domain.Q2Range.Known {
		t.Error("xbj change should resolve a q2 range")
	}
	if !strings.Contains(m.View(), "(0.05 to 2)") {
		t.Error("view should show the q2 range hint")
	}
}

func TestCycleModel(t *testing.T) {
	m, _ := newTestModel(t)
	press(m, tea.KeyMsg{Type: tea.KeyDown})
	drain(t, m, press(m, tea.KeyMsg{Type: tea.KeyLeft}))
	if got := m.deps.State.Options().Model; got != gpd.ModelUVA {
		t.Errorf("model = %s", got)
	}
	// UVA starts at 0.001, which is the current xbj
	if got := m.deps.State.Options().Xbj; got != 0.001 {
		t.Errorf("xbj = %v", got)
	}
}

func TestPlotKeyAppendsToSelectedTab(t *testing.T) {
	m, _ := newTestModel(t)
	drain(t, m, press(m, runes("p")))
	if n := len(m.deps.Store.DatasetsFor(0)); n != 1 {
		t.Fatalf("tab 0 has %d datasets", n)
	}
	if !strings.Contains(m.status, "Plotted") {
		t.Errorf("status = %q", m.status)
	}

	press(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.tab != 1 {
		t.Fatalf("tab = %d, want the new tab", m.tab)
	}
	press(m, runes("5"))
	if m.tab != 1 {
		t.Error("tabs beyond the next new one cannot be selected")
	}
	drain(t, m, press(m, runes("p")))
	if m.deps.Store.Count() != 2 || len(m.deps.Store.DatasetsFor(1)) != 1 {
		t.Errorf("tab 1 not filled: count=%d", m.deps.Store.Count())
	}
	if m.deps.State.SelectedTab() != 1 {
		t.Error("selected tab not recorded in session state")
	}
	if !strings.Contains(m.View(), "GPD Up") {
		t.Error("view should draw the selected tab's curves")
	}

	press(m, runes("1"))
	if m.tab != 0 {
		t.Errorf("tab = %d after pressing 1", m.tab)
	}
}

func TestInvalidTabIsFatal(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(plotDoneMsg{tab: 5, err: gpd.ErrInvalidTabID})
	if cmd == nil {
		t.Fatal("expected quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if !errors.Is(m.Err(), gpd.ErrInvalidTabID) {
		t.Errorf("Err() = %v", m.Err())
	}
}

func TestDownload(t *testing.T) {
	m, dir := newTestModel(t)

	press(m, runes("d"))
	if m.form == nil || m.formKind != formDownload {
		t.Fatal("download form not opened")
	}
	if *m.formValue != "model.csv" {
		t.Errorf("default filename = %q", *m.formValue)
	}
	press(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.form != nil {
		t.Fatal("esc should close the form")
	}

	drain(t, m, m.download("run1.csv"))
	if _, err := os.Stat(filepath.Join(dir, "run1.csv")); err != nil {
		t.Fatalf("export missing: %v", err)
	}
	if !strings.Contains(m.status, "Saved 99 points") {
		t.Errorf("status = %q", m.status)
	}
	if len(m.deps.Store.DatasetsFor(0)) != 0 {
		t.Error("download must not add to the tab")
	}
}

func TestQ2FormOnlyOnQ2Field(t *testing.T) {
	m, _ := newTestModel(t)
	press(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.form != nil {
		t.Fatal("enter on GPD cycles instead of opening a form")
	}
	press(m, tea.KeyMsg{Type: tea.KeyUp})
	if m.cursor != fieldQ2 {
		t.Fatalf("cursor = %d, want wrap to q2", m.cursor)
	}
	press(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.formKind != formQ2 || m.formValue == nil {
		t.Fatalf("q2 form not opened, kind=%d", m.formKind)
	}
	if *m.formValue != "0.1" {
		t.Errorf("q2 form prefilled with %q", *m.formValue)
	}
}

func TestParseQ2(t *testing.T) {
	r := gpd.Q2Range{Min: 0.05, Max: 2, Known: true}
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"1.5", 1.5, false},
		{" 0.05 ", 0.05, false},
		{"2.5", 0, true},
		{"abc", 0, true},
		{"-1", 0, true},
	}
	for _, tt := range tests {
		got, err := parseQ2(tt.in, r)
		if tt.wantErr != (err != nil) || got != tt.want {
			t.Errorf("parseQ2(%q) = %v, %v", tt.in, got, err)
		}
	}
	if _, err := parseQ2("50", gpd.Q2Range{}); err != nil {
		t.Errorf("unknown range should accept any positive value: %v", err)
	}
}

func TestStep(t *testing.T) {
	tests := []struct{ i, dir, n, want int }{
		{0, 1, 3, 1},
		{2, 1, 3, 0},
		{0, -1, 3, 2},
		{-1, 1, 3, 0},
	}
	for _, tt := range tests {
		if got := step(tt.i, tt.dir, tt.n); got != tt.want {
			t.Errorf("step(%d,%d,%d) = %d", tt.i, tt.dir, tt.n, got)
		}
	}
}

func TestViewShowsStatusLines(t *testing.T) {
	m, _ := newTestModel(t)
	m.deps.State.SetNotice("Could not refresh choices")
	m.deps.State.BeginFetch()
	m.deps.State.EndFetch("Error: Data not found (HTTP 404)")

	view := m.View()
	for _, want := range []string{"GPD Model Explorer", "BKM Model", "GPD_E", "Error: Data not found", "Could not refresh choices", "No data plotted"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
