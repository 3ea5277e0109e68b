package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chazuruo/ledupdater/internal/app"
	"github.com/chazuruo/ledupdater/internal/events"
)

// Run shows the updater until the user quits or ctx is done.
func Run(ctx context.Context, a *app.App) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ch := make(chan events.Event, 64)
	unsub := a.Bus().Forward(ch)
	defer unsub()

	m := New(ctx, a, ch, a.Config().Flash.Port)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
