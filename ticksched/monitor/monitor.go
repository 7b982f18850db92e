// Package monitor renders live clock and scheduler state to the terminal
// while the demo runs.
package monitor

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// Stats is the snapshot the monitor draws on each refresh.
type Stats struct {
	Ticks       uint32
	Msec        uint32
	PendingTick int
	PendingMsec int
	Ready       int
	Dispatched  uint64
	Sleeps      uint64
	Faults      uint64
}

// Monitor owns a tcell screen for the duration of a run.
type Monitor struct {
	screen tcell.Screen
	quit   bool
}

func New() *Monitor {
	return &Monitor{}
}

// Init takes over the terminal. Pair with Cleanup.
func (m *Monitor) Init() error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to initialize terminal: %v", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %v", err)
	}
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()
	m.screen = screen
	return nil
}

// Update processes input and redraws the view. Reports whether the user
// asked to quit.
func (m *Monitor) Update(stats Stats) bool {
	for m.screen.HasPendingEvent() {
		ev := m.screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
				m.quit = true
			}
		case *tcell.EventResize:
			m.screen.Sync()
		}
	}

	m.screen.Clear()
	lines := []string{
		" ticksched monitor",
		"",
		fmt.Sprintf(" ticks         %12d", stats.Ticks),
		fmt.Sprintf(" msec          %12d", stats.Msec),
		"",
		fmt.Sprintf(" pending tick  %12d", stats.PendingTick),
		fmt.Sprintf(" pending msec  %12d", stats.PendingMsec),
		fmt.Sprintf(" ready         %12d", stats.Ready),
		"",
		fmt.Sprintf(" dispatched    %12d", stats.Dispatched),
		fmt.Sprintf(" idle sleeps   %12d", stats.Sleeps),
		fmt.Sprintf(" faults        %12d", stats.Faults),
		"",
		" press q to quit",
	}
	for y, line := range lines {
		m.drawText(0, y, line)
	}
	m.screen.Show()

	return m.quit
}

func (m *Monitor) drawText(x, y int, text string) {
	for i, r := range text {
		m.screen.SetContent(x+i, y, r, nil, tcell.StyleDefault)
	}
}

// Cleanup restores the terminal.
func (m *Monitor) Cleanup() {
	if m.screen != nil {
		m.screen.Fini()
	}
}
