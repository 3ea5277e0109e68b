package gui

import (
	"context"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"

	"github.com/chazuruo/ledupdater/internal/app"
	"github.com/chazuruo/ledupdater/internal/events"
)

// AppID identifies the application to fyne preferences storage.
const AppID = "com.chazuruo.ledupdater"

// Run opens the updater window and blocks until it is closed or ctx is done.
func Run(ctx context.Context, a *app.App) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fa := fyneapp.NewWithID(AppID)
	w := fa.NewWindow(WindowTitle)
	w.Resize(fyne.NewSize(WindowWidth, WindowHeight))

	ui := New(ctx, w, a, a.Config().Flash.Port)

	ch := make(chan events.Event, 64)
	unsub := a.Bus().Forward(ch)
	defer unsub()
	ui.Follow(ctx, ch)

	fa.Lifecycle().SetOnStarted(ui.Refresh)
	go func() {
		<-ctx.Done()
		fyne.Do(fa.Quit)
	}()

	w.ShowAndRun()
	return nil
}
