package terminal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/valerio/go-pacer/pacer/backend"
	"github.com/valerio/go-pacer/pacer/backend/terminal/render"
	"github.com/valerio/go-pacer/pacer/input"
	"github.com/valerio/go-pacer/pacer/input/action"
	"github.com/valerio/go-pacer/pacer/input/event"
	"github.com/valerio/go-pacer/pacer/timing"
)

const (
	minTermWidth  = 60
	minTermHeight = 20

	playfieldMaxWidth = 64
	overlayHeight     = 14
	logCapacity       = 200
)

var (
	borderStyle = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	titleStyle  = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	labelStyle  = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	valueStyle  = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	bodyStyle   = tcell.StyleDefault.Foreground(tcell.ColorAqua)
	alertStyle  = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	okStyle     = tcell.StyleDefault.Foreground(tcell.ColorGreen)
)

// Backend implements the Backend interface using tcell for terminal rendering
type Backend struct {
	screen     tcell.Screen
	logBuffer  *render.LogBuffer
	logLevel   slog.Level
	prevLogger *slog.Logger
	config     backend.Config
	eventQueue []backend.InputEvent
}

// New creates a new terminal backend drawing to the controlling terminal
func New() *Backend {
	return &Backend{
		logLevel: slog.LevelInfo,
	}
}

// NewWithScreen creates a terminal backend drawing to an existing screen,
// such as a tcell.SimulationScreen.
func NewWithScreen(screen tcell.Screen) *Backend {
	b := New()
	b.screen = screen
	return b
}

// Init initializes the terminal backend
func (t *Backend) Init(config backend.Config) error {
	t.config = config
	t.logLevel = config.LogLevel
	t.eventQueue = make([]backend.InputEvent, 0)

	if t.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("failed to initialize terminal: %w", err)
		}
		t.screen = screen
	}

	if err := t.screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}

	// Logs go to the panel instead of the terminal while the screen is active
	t.logBuffer = render.NewLogBuffer(logCapacity)
	t.prevLogger = slog.Default()
	slog.SetDefault(slog.New(render.NewLogBufferHandler(t.logBuffer, slog.LevelDebug)))

	slog.Info("Terminal backend initialized", "title", config.Title)
	if config.ShowOverlay {
		slog.Debug("Stats overlay enabled")
	}

	t.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	t.screen.Clear()

	return nil
}

// Update renders a frame and processes events
func (t *Backend) Update(frame *backend.Frame) ([]backend.InputEvent, error) {
	for t.screen.HasPendingEvent() {
		switch ev := t.screen.PollEvent().(type) {
		case *tcell.EventKey:
			if act, ok := actionForKey(ev); ok {
				slog.Debug("Key event", "key", ev.Name(), "action", act)
				t.eventQueue = append(t.eventQueue, backend.InputEvent{Action: act, Type: event.Press})
			}
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}

	events := t.eventQueue
	t.eventQueue = nil

	t.render(frame)
	t.screen.Show()

	return events, nil
}

// Cleanup cleans up terminal resources
func (t *Backend) Cleanup() error {
	if t.screen != nil {
		slog.Info("Cleaning up terminal backend")
		t.screen.Fini()
	}
	if t.prevLogger != nil {
		slog.SetDefault(t.prevLogger)
	}
	return nil
}

// HandleAction processes backend-specific actions
func (t *Backend) HandleAction(act action.Action) {
	switch act {
	case action.OverlayToggle:
		t.config.ShowOverlay = !t.config.ShowOverlay
		if t.config.ShowOverlay {
			slog.Info("Stats overlay enabled")
		} else {
			slog.Info("Stats overlay disabled")
		}
	case action.LogLevelIncrease:
		t.changeLogLevel(1)
	case action.LogLevelDecrease:
		t.changeLogLevel(-1)
	}
}

// LogLevel returns the current log panel filter.
func (t *Backend) LogLevel() slog.Level {
	return t.logLevel
}

// tcellKeyNameMap converts tcell keys to key names used in default mappings
var tcellKeyNameMap = map[tcell.Key]string{
	tcell.KeyUp:     "Up",
	tcell.KeyDown:   "Down",
	tcell.KeyLeft:   "Left",
	tcell.KeyRight:  "Right",
	tcell.KeyEscape: "Escape",
	tcell.KeyF10:    "F10",
}

// actionForKey maps a key event to an action using the default key map
func actionForKey(ev *tcell.EventKey) (action.Action, bool) {
	switch ev.Key() {
	case tcell.KeyCtrlC:
		return action.Quit, true
	case tcell.KeyRune:
		name := string(ev.Rune())
		if ev.Rune() == ' ' {
			name = "Space"
		}
		return input.GetDefaultMapping(name)
	}

	if name, ok := tcellKeyNameMap[ev.Key()]; ok {
		return input.GetDefaultMapping(name)
	}
	return 0, false
}

// changeLogLevel moves the panel filter one level; a positive direction
// shows more detail.
func (t *Backend) changeLogLevel(direction int) {
	oldLevel := t.logLevel
	switch direction {
	case -1:
		switch t.logLevel {
		case slog.LevelDebug:
			t.logLevel = slog.LevelInfo
		case slog.LevelInfo:
			t.logLevel = slog.LevelWarn
		case slog.LevelWarn:
			t.logLevel = slog.LevelError
		}
	case 1:
		switch t.logLevel {
		case slog.LevelError:
			t.logLevel = slog.LevelWarn
		case slog.LevelWarn:
			t.logLevel = slog.LevelInfo
		case slog.LevelInfo:
			t.logLevel = slog.LevelDebug
		}
	}
	if oldLevel != t.logLevel {
		slog.Info("Log filter changed", "from", oldLevel, "to", t.logLevel)
	}
}

func (t *Backend) render(frame *backend.Frame) {
	termWidth, termHeight := t.screen.Size()
	t.screen.Clear()

	if termWidth < minTermWidth || termHeight < minTermHeight {
		msg := fmt.Sprintf("Terminal too small! Need at least %dx%d", minTermWidth, minTermHeight)
		t.drawText(0, termHeight/2, termWidth, msg, alertStyle)
		return
	}

	dividerX := min(termWidth/2, playfieldMaxWidth)
	rightX := dividerX + 2
	rightWidth := termWidth - rightX - 1

	t.drawBorders(termWidth, termHeight, dividerX, frame)
	t.drawPlayfield(1, 1, dividerX-1, termHeight-2, frame)

	logsY := 1
	if t.config.ShowOverlay {
		t.drawOverlay(rightX, 1, rightWidth, frame)
		logsY = overlayHeight + 2
		for x := dividerX + 1; x < termWidth; x++ {
			t.screen.SetContent(x, overlayHeight+1, '─', nil, borderStyle)
		}
		t.screen.SetContent(dividerX, overlayHeight+1, '├', nil, borderStyle)
		t.drawText(rightX, overlayHeight+1, rightWidth, t.logsTitle(), titleStyle)
	}
	t.drawLogs(rightX, logsY, rightWidth, termHeight)
}

func (t *Backend) logsTitle() string {
	return fmt.Sprintf(" Logs [%s] (-/+ filter) ", t.logLevel)
}

func (t *Backend) drawBorders(termWidth, termHeight, dividerX int, frame *backend.Frame) {
	for y := 0; y < termHeight-1; y++ {
		t.screen.SetContent(dividerX, y, '│', nil, borderStyle)
	}

	title := fmt.Sprintf(" %s ", t.config.Title)
	if frame.Paused {
		title = fmt.Sprintf(" %s [paused] ", t.config.Title)
	}
	t.drawText(1, 0, dividerX-1, title, titleStyle)

	if t.config.ShowOverlay {
		t.drawText(dividerX+2, 0, termWidth-dividerX-2, " Timing ", titleStyle)
	} else {
		t.drawText(dividerX+2, 0, termWidth-dividerX-2, t.logsTitle(), titleStyle)
	}

	help := " SPACE=pause F=fixed/variable UP/DOWN=rate LEFT/RIGHT=depth K/L=load S=skip draw O=overlay Q=quit "
	t.drawText(0, termHeight-1, termWidth, help, borderStyle)
}

func (t *Backend) drawPlayfield(x, y, width, height int, frame *backend.Frame) {
	if width <= 0 || height <= 0 {
		return
	}
	for _, body := range frame.Bodies {
		bx := x + int(body.X*float64(width))
		by := y + int(body.Y*float64(height))
		if bx < x || bx >= x+width || by < y || by >= y+height {
			continue
		}
		t.screen.SetContent(bx, by, '●', nil, bodyStyle)
	}
}

func (t *Backend) drawOverlay(x, y, width int, frame *backend.Frame) {
	sched := frame.Scheduler
	frames := frame.Frames

	mode := "variable"
	if sched.IsFixedTimeStep {
		mode = "fixed"
	}

	slowly, slowlyStyle := "no", okStyle
	if sched.IsRunningSlowly {
		slowly, slowlyStyle = "YES", alertStyle
	}

	rows := []struct {
		label string
		value string
		style tcell.Style
	}{
		{"mode", fmt.Sprintf("%s %s (%.1f Hz)", mode, ms(sched.TargetStep), timing.RateForStep(sched.TargetStep)), valueStyle},
		{"ticks", fmt.Sprintf("%d sim %d draw %d skip %d", sched.Ticks, sched.Simulations, sched.Renders, sched.SuppressedDraws), valueStyle},
		{"simulated", sched.TotalSimulated.Truncate(time.Millisecond).String(), valueStyle},
		{"pending", ms(sched.Accumulated), valueStyle},
		{"frame lag", fmt.Sprintf("%d", sched.FrameLag), valueStyle},
		{"slowly", slowly, slowlyStyle},
		{"frame", fmt.Sprintf("%s avg %s", ms(frames.Duration.Current), ms(frames.Duration.Average)), valueStyle},
		{"min/max", fmt.Sprintf("%s / %s", ms(frames.Duration.Minimum), ms(frames.Duration.Maximum)), valueStyle},
		{"fps", fmt.Sprintf("%.1f avg %.1f (%d samples)", frames.Frequency.Current, frames.Frequency.Average, frames.Window), valueStyle},
		{"history", render.Sparkline(frame.History, 2*sched.TargetStep, width-12), bodyStyle},
		{"present", fmt.Sprintf("%s avg", ms(frame.Present.Duration.Average)), valueStyle},
		{"load", fmt.Sprintf("sim %s draw %s", ms(frame.SimulateCost), ms(frame.RenderCost)), valueStyle},
	}

	for i, row := range rows {
		t.drawText(x, y+i, 11, row.label, labelStyle)
		t.drawText(x+12, y+i, width-12, row.value, row.style)
	}

	budget := float64(frame.SimulateCost+frame.RenderCost) / float64(max(sched.TargetStep, 1))
	t.drawText(x, y+len(rows), 11, "budget", labelStyle)
	t.drawText(x+12, y+len(rows), width-12, render.Gauge(budget, min(20, width-12)), valueStyle)
}

func (t *Backend) drawLogs(startX, startY, width, termHeight int) {
	if width <= 0 || startY >= termHeight {
		return
	}

	availableHeight := termHeight - startY - 1
	if availableHeight <= 0 {
		return
	}

	debugStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)
	infoStyle := tcell.StyleDefault.Foreground(tcell.ColorBlue)
	warnStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)

	for i, logEntry := range t.logBuffer.GetRecent(availableHeight, t.logLevel) {
		style := infoStyle
		switch logEntry.Level {
		case slog.LevelDebug:
			style = debugStyle
		case slog.LevelWarn:
			style = warnStyle
		case slog.LevelError:
			style = alertStyle
		}
		t.drawText(startX, startY+i, width, render.FormatLogEntry(logEntry), style)
	}
}

func (t *Backend) drawText(x, y, width int, text string, style tcell.Style) {
	for i, ch := range []rune(render.Truncate(text, width)) {
		t.screen.SetContent(x+i, y, ch, nil, style)
	}
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
}

var (
	_ backend.Backend       = (*Backend)(nil)
	_ backend.ActionHandler = (*Backend)(nil)
)
