package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the explorer and blocks until the user quits. A tab
// desynchronisation ends the program with that error.
func Run(deps Deps) error {
	model := NewModel(deps)
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if deps.Context != nil {
		opts = append(opts, tea.WithContext(deps.Context))
	}
	program := tea.NewProgram(model, opts...)

	if _, err := program.Run(); err != nil {
		return err
	}
	return model.Err()
}
