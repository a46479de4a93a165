package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/tturner/gpdplot/internal/cascade"
	"github.com/tturner/gpdplot/internal/fetch"
	"github.com/tturner/gpdplot/internal/gpd"
	"github.com/tturner/gpdplot/internal/logging"
	"github.com/tturner/gpdplot/internal/render"
	"github.com/tturner/gpdplot/internal/session"
	"github.com/tturner/gpdplot/internal/tabs"
)

// field is a row of the options form.
type field int

const (
	fieldGPD field = iota
	fieldModel
	fieldXbj
	fieldT
	fieldQ2
	fieldCount
)

var fieldLabels = [fieldCount]string{"GPD", "Model", "xbj", "t", "q2"}

// Deps are the core services the UI drives.
type Deps struct {
	Context      context.Context
	Controller   *cascade.Controller
	Orchestrator *fetch.Orchestrator
	Store        *tabs.Store
	State        *session.State
	Logger       *logging.Logger
	Filename     string // default download name
}

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Prev     key.Binding
	Next     key.Binding
	Edit     key.Binding
	Plot     key.Binding
	Download key.Binding
	NextTab  key.Binding
	PrevTab  key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/↓", "field")),
	Down:     key.NewBinding(key.WithKeys("down", "j")),
	Prev:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/→", "change")),
	Next:     key.NewBinding(key.WithKeys("right", "l")),
	Edit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "edit q2")),
	Plot:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "plot")),
	Download: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "download")),
	NextTab:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab/1-9", "tab")),
	PrevTab:  key.NewBinding(key.WithKeys("shift+tab")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Messages carrying results of core operations back to the update loop.
type (
	cascadeDoneMsg struct {
		label   string
		outcome cascade.Outcome
		err     error
	}
	plotDoneMsg struct {
		tab gpd.TabID
		ds  gpd.Dataset
		err error
	}
	downloadDoneMsg struct {
		filename string
		ds       gpd.Dataset
		err      error
	}
)

// Model is the main TUI model.
type Model struct {
	deps    Deps
	styles  Styles
	layout  Layout
	spinner spinner.Model

	cursor   field
	tab      gpd.TabID
	resolves int // cascade operations in flight
	status   string
	fatal    error

	form      *huh.Form
	formKind  formKind
	formValue *string
}

// NewModel creates the explorer model.
func NewModel(deps Deps) *Model {
	if deps.Context == nil {
		deps.Context = context.Background()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	if deps.Filename == "" {
		deps.Filename = fetch.DefaultFilename
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = DefaultStyles.Running
	return &Model{
		deps:    deps,
		styles:  DefaultStyles,
		layout:  NewLayout(DefaultWidth, DefaultHeight),
		spinner: sp,
		tab:     deps.State.SelectedTab(),
	}
}

// Err returns the error that ended the program, if any.
func (m *Model) Err() error {
	return m.fatal
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.runCascade("init", m.deps.Controller.Init),
	)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = NewLayout(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case cascadeDoneMsg:
		if m.resolves > 0 {
			m.resolves--
		}
		switch {
		case msg.err == nil:
		case gpd.IsDomainUnavailable(msg.err):
			// the session notice carries it
		default:
			m.status = m.styles.Warning.Render(msg.err.Error())
		}
		return m, nil

	case plotDoneMsg:
		if errors.Is(msg.err, gpd.ErrInvalidTabID) {
			m.fatal = msg.err
			m.deps.Logger.Error("Tab state out of sync: %v", msg.err)
			return m, tea.Quit
		}
		if msg.err == nil {
			m.status = m.styles.Success.Render(fmt.Sprintf("Plotted %s on tab %d", msg.ds.Options, msg.tab+1))
		}
		return m, nil

	case downloadDoneMsg:
		if msg.err == nil {
			m.status = m.styles.Success.Render(fmt.Sprintf("Saved %d points to %s", len(msg.ds.Points), msg.filename))
		}
		return m, nil
	}

	if m.form != nil {
		return m.updateForm(msg)
	}
	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Up):
		m.cursor = (m.cursor + fieldCount - 1) % fieldCount
	case key.Matches(msg, keys.Down):
		m.cursor = (m.cursor + 1) % fieldCount
	case key.Matches(msg, keys.Prev):
		return m, m.cycle(-1)
	case key.Matches(msg, keys.Next):
		return m, m.cycle(1)
	case key.Matches(msg, keys.Edit):
		if m.cursor == fieldQ2 {
			return m, m.openForm(formQ2)
		}
		return m, m.cycle(1)
	case key.Matches(msg, keys.Plot):
		return m, m.plot()
	case key.Matches(msg, keys.Download):
		return m, m.openForm(formDownload)
	case key.Matches(msg, keys.NextTab):
		m.shiftTab(1)
	case key.Matches(msg, keys.PrevTab):
		m.shiftTab(-1)
	default:
		if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			m.selectTab(gpd.TabID(s[0] - '1'))
		}
	}
	return m, nil
}

// selectTab moves to id. Valid ids are the existing tabs plus one new tab
// past the last, which the next plot creates.
func (m *Model) selectTab(id gpd.TabID) {
	if id < 0 || id > m.deps.Store.Max()+1 {
		return
	}
	m.tab = id
	m.deps.State.SelectTab(id)
}

func (m *Model) shiftTab(dir int) {
	n := m.deps.Store.Max() + 2
	m.selectTab(((m.tab+dir)%n + n) % n)
}

// cycle moves the focused field to the neighbouring choice and starts the
// cascade for it.
func (m *Model) cycle(dir int) tea.Cmd {
	snap := m.deps.State.Snapshot()
	ctl := m.deps.Controller
	switch m.cursor {
	case fieldGPD:
		next := gpd.AllGPDs[step(indexOfGPD(snap.Options.GPD), dir, len(gpd.AllGPDs))]
		return m.runCascade("gpd", func(ctx context.Context) (cascade.Outcome, error) {
			return ctl.SetGPD(ctx, next)
		})
	case fieldModel:
		next := gpd.AllModels[step(indexOfModel(snap.Options.Model), dir, len(gpd.AllModels))]
		return m.runCascade("model", func(ctx context.Context) (cascade.Outcome, error) {
			return ctl.SetModel(ctx, next)
		})
	case fieldXbj:
		choices := snap.Domain.XbjChoices
		if len(choices) == 0 {
			return nil
		}
		next := choices[step(gpd.IndexOf(choices, snap.Options.Xbj), dir, len(choices))]
		return m.runCascade("xbj", func(ctx context.Context) (cascade.Outcome, error) {
			return ctl.SetXbj(ctx, next)
		})
	case fieldT:
		choices := snap.Domain.TChoices
		if len(choices) == 0 {
			return nil
		}
		next := choices[step(gpd.IndexOf(choices, snap.Options.T), dir, len(choices))]
		return m.runCascade("t", func(ctx context.Context) (cascade.Outcome, error) {
			return ctl.SetT(ctx, next)
		})
	}
	return nil
}

func step(i, dir, n int) int {
	if i < 0 {
		return 0
	}
	return ((i+dir)%n + n) % n
}

func indexOfGPD(g gpd.GPD) int {
	for i, v := range gpd.AllGPDs {
		if v == g {
			return i
		}
	}
	return -1
}

func indexOfModel(mo gpd.Model) int {
	for i, v := range gpd.AllModels {
		if v == mo {
			return i
		}
	}
	return -1
}

func (m *Model) runCascade(label string, fn func(context.Context) (cascade.Outcome, error)) tea.Cmd {
	m.resolves++
	m.status = ""
	ctx := m.deps.Context
	return func() tea.Msg {
		out, err := fn(ctx)
		return cascadeDoneMsg{label: label, outcome: out, err: err}
	}
}

func (m *Model) plot() tea.Cmd {
	orch, ctx, tab := m.deps.Orchestrator, m.deps.Context, m.tab
	opts := m.deps.State.Options()
	m.status = ""
	return func() tea.Msg {
		ds, err := orch.PlotWith(ctx, opts, tab)
		return plotDoneMsg{tab: tab, ds: ds, err: err}
	}
}

func (m *Model) download(filename string) tea.Cmd {
	orch, ctx := m.deps.Orchestrator, m.deps.Context
	opts := m.deps.State.Options()
	m.status = ""
	return func() tea.Msg {
		ds, err := orch.DownloadWith(ctx, opts, filename)
		return downloadDoneMsg{filename: filename, ds: ds, err: err}
	}
}

func (m *Model) openForm(kind formKind) tea.Cmd {
	value := new(string)
	switch kind {
	case formQ2:
		snap := m.deps.State.Snapshot()
		*value = gpd.FormatValue(snap.Options.Q2)
		m.form = buildQ2Form(value, snap.Domain.Q2Range)
	case formDownload:
		*value = m.deps.Filename
		m.form = buildDownloadForm(value)
	default:
		return nil
	}
	m.formKind = kind
	m.formValue = value
	return m.form.Init()
}

func (m *Model) closeForm() {
	m.form = nil
	m.formKind = formNone
	m.formValue = nil
}

func (m *Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		m.closeForm()
		return m, nil
	}
	formModel, cmd := m.form.Update(msg)
	if f, ok := formModel.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		kind, value := m.formKind, strings.TrimSpace(*m.formValue)
		m.closeForm()
		switch kind {
		case formQ2:
			q2, err := parseQ2(value, m.deps.State.Domain().Q2Range)
			if err == nil {
				err = m.deps.Controller.SetQ2(q2)
			}
			if err != nil {
				m.status = m.styles.Warning.Render(err.Error())
			}
			return m, nil
		case formDownload:
			m.deps.Filename = value
			return m, m.download(value)
		}
	case huh.StateAborted:
		m.closeForm()
		return m, nil
	}
	return m, cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	snap := m.deps.State.Snapshot()
	width := m.layout.ContentWidth

	header := m.styles.Title.Render("GPD Model Explorer")
	if snap.Busy || m.resolves > 0 {
		header += " " + m.spinner.View() + m.styles.Running.Render(busyLabel(snap.Busy, m.resolves))
	}

	var body string
	if m.form != nil {
		body = m.styles.BoxFocused.Width(width).Render(m.form.View())
	} else {
		body = m.styles.Box.Width(width).Render(m.optionsView(snap))
	}

	var lines []string
	if snap.ErrorMessage != "" {
		lines = append(lines, m.styles.Error.Render(snap.ErrorMessage))
	}
	if snap.Notice != "" {
		lines = append(lines, m.styles.Warning.Render(snap.Notice))
	}
	if m.status != "" {
		lines = append(lines, m.status)
	}

	datasets := m.deps.Store.DatasetsFor(m.tab)
	chart := render.Chart(datasets, width, m.layout.ChartHeight)

	return JoinVertical(1,
		header,
		body,
		strings.Join(lines, "\n"),
		m.tabBar(),
		chart,
		render.KeyLine(datasets),
		m.footer(),
	)
}

func busyLabel(fetching bool, resolves int) string {
	switch {
	case fetching && resolves > 0:
		return " fetching data, updating choices"
	case fetching:
		return " fetching data"
	default:
		return " updating choices"
	}
}

func (m *Model) optionsView(snap session.Snapshot) string {
	values := [fieldCount]string{
		string(snap.Options.GPD),
		snap.Options.Model.Label(),
		gpd.FormatValue(snap.Options.Xbj),
		gpd.FormatValue(snap.Options.T),
		gpd.FormatValue(snap.Options.Q2),
	}
	hints := [fieldCount]string{
		"",
		"",
		fmt.Sprintf("%d choices", len(snap.Domain.XbjChoices)),
		fmt.Sprintf("%d choices", len(snap.Domain.TChoices)),
		snap.Domain.Q2Range.String(),
	}

	var rows []string
	for f := field(0); f < fieldCount; f++ {
		marker := "  "
		if f == m.cursor {
			marker = m.styles.Selected.Render("> ")
		}
		var value string
		switch {
		case f == fieldGPD:
			value = m.gpdRadios(snap.Options.GPD)
		case f != m.cursor:
			value = m.styles.Value.Render(values[f])
		case f == fieldQ2:
			value = m.styles.Cursor.Render(" " + values[f] + " ")
		default:
			value = m.styles.Cursor.Render("‹ " + values[f] + " ›")
		}
		row := marker + m.styles.Label.Render(fieldLabels[f]) + value
		if hints[f] != "" {
			row += "  " + m.styles.Hint.Render(hints[f])
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

func (m *Model) gpdRadios(selected gpd.GPD) string {
	parts := make([]string, len(gpd.AllGPDs))
	for i, g := range gpd.AllGPDs {
		parts[i] = RadioIcon(g == selected, m.styles) + " " + m.styles.Value.Render(string(g))
	}
	return strings.Join(parts, "  ")
}

func (m *Model) tabBar() string {
	var parts []string
	for id := 0; id <= m.deps.Store.Max()+1; id++ {
		label := fmt.Sprintf("%d", id+1)
		if id > m.deps.Store.Max() {
			label = "+"
		}
		if id == m.tab {
			parts = append(parts, m.styles.TabActive.Render(label))
		} else {
			parts = append(parts, m.styles.TabInactive.Render(label))
		}
	}
	count := len(m.deps.Store.DatasetsFor(m.tab))
	info := m.styles.Dim.Render(fmt.Sprintf("  %d datasets", count))
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...) + info
}

func (m *Model) footer() string {
	bindings := []key.Binding{keys.Up, keys.Prev, keys.Edit, keys.Plot, keys.Download, keys.NextTab, keys.Quit}
	var parts []string
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, m.styles.KeyBinding.Render(h.Key)+" "+m.styles.KeyHint.Render(h.Desc))
	}
	return m.styles.Footer.Render(strings.Join(parts, "  "))
}
