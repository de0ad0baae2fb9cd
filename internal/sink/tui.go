package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/monify-labs/telemon/pkg/models"
)

// ErrSinkClosed is returned by Present after Close
var ErrSinkClosed = errors.New("sink closed")

// TUI feeds a live terminal dashboard. Present never blocks on rendering:
// frames go through a single-slot queue and a frame not yet drawn is
// replaced by the newer one.
type TUI struct {
	mu      sync.Mutex
	frames  chan *models.Frame
	closed  bool
	dropped uint64
	onQuit  func()
}

// NewTUI creates a dashboard sink. onQuit runs when the user quits the
// dashboard, typically to cancel sampling.
func NewTUI(onQuit func()) *TUI {
	if onQuit == nil {
		onQuit = func() {}
	}
	return &TUI{
		frames: make(chan *models.Frame, 1),
		onQuit: onQuit,
	}
}

// Present queues frame for drawing, replacing any frame still queued
func (t *TUI) Present(_ context.Context, frame *models.Frame) error {
	if frame == nil {
		return nil
	}
	f := *frame

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrSinkClosed
	}

	select {
	case t.frames <- &f:
	default:
		// Drop the stale frame; only this goroutine sends, so the slot is free after
		select {
		case <-t.frames:
			t.dropped++
		default:
		}
		t.frames <- &f
	}
	return nil
}

// Dropped returns how many frames were replaced before being drawn
func (t *TUI) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// Close ends the frame stream. The dashboard keeps the last frame on screen.
func (t *TUI) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.frames)
	}
	return nil
}

// Model returns the bubbletea model drawing this sink's frames
func (t *TUI) Model() *Dashboard {
	return &Dashboard{
		frames: t.frames,
		onQuit: t.onQuit,
		width:  120,
		height: 40,
	}
}

// Dashboard renders the latest frame
type Dashboard struct {
	frames <-chan *models.Frame
	onQuit func()
	latest *models.Frame
	done   bool
	width  int
	height int
}

// Messages
type (
	frameMsg  *models.Frame
	streamEnd struct{}
)

func waitForFrame(frames <-chan *models.Frame) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-frames
		if !ok {
			return streamEnd{}
		}
		return frameMsg(f)
	}
}

func (m *Dashboard) Init() tea.Cmd { return waitForFrame(m.frames) }

func (m *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.onQuit()
			return m, tea.Quit
		}
	case frameMsg:
		m.latest = msg
		return m, waitForFrame(m.frames)
	case streamEnd:
		m.done = true
	}
	return m, nil
}

// Styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	gaugeFill   = "█"
	gaugeEmpty  = "░"
	sparkRunes  = []rune("▁▂▃▄▅▆▇█")
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1).
			MarginRight(1)
)

func (m *Dashboard) View() string {
	if m.latest == nil {
		if m.done {
			return subtleStyle.Render("Sampling stopped before the first tick. Press q to quit.") + "\n"
		}
		return subtleStyle.Render("Waiting for the first sample…  (q to quit)") + "\n"
	}

	f := m.latest
	s := &f.Snapshot
	status := fmt.Sprintf("tick %d  %s  up %s", f.Tick, s.Timestamp.Format("Mon Jan 2 15:04:05 MST 2006"), uptime(f))
	if m.done {
		status += "  sampling stopped, q to quit"
	}
	header := titleStyle.Render("telemon") + "  " + subtleStyle.Render(hostLine(f.Host)) + "  " + subtleStyle.Render(status)

	sparkWidth := 28
	cpuCard := card("CPU · "+text(s.CPUModel),
		gaugeBar(s.CPUUsagePercent, 28)+"\n"+
			"temp "+celsius(s.CPUTemperatureCelsius)+"\n"+
			sparkline(f.History[models.MetricCPU], 0, 100, sparkWidth))

	memCard := card("Memory",
		gaugeBar(s.MemoryUsagePercent, 28)+"\n"+
			"swap "+percent(s.SwapUsagePercent)+"  "+megahertz(s.RAMSpeedMHz)+"\n"+
			sparkline(f.History[models.MetricMemory], 0, 100, sparkWidth))

	gpuCard := card("GPU · "+text(s.GPUModel),
		gaugeBar(s.GPUUsagePercent, 28)+"\n"+
			"temp "+celsius(s.GPUTemperatureCelsius)+"  mem "+gpuMemory(s)+"\n"+
			sparkline(f.History[models.MetricGPU], 0, 100, sparkWidth))

	line1 := lipgloss.JoinHorizontal(lipgloss.Top, cpuCard, memCard, gpuCard)

	storage := make([]string, 0, len(s.Storage))
	for _, e := range s.Storage {
		storage = append(storage, fmt.Sprintf("%-14s %5.1f%%  %s free",
			truncate(e.MountPoint, 14), e.PercentUsed, gigabytes(e.FreeBytes)))
	}
	if len(storage) == 0 {
		storage = append(storage, models.NotAvailable)
	}
	storageCard := card("Storage", strings.Join(storage, "\n"))

	netCard := card("Network",
		"total "+megabytes(s.NetworkBytesTotal)+"\n"+
			"since last "+megabytes(f.NetworkBytesSinceLast))

	procCard := card("Top "+rankTitle(f.Processes.Key), renderProcesses(f.Processes))

	line2 := lipgloss.JoinHorizontal(lipgloss.Top, procCard, storageCard, netCard)

	return lipgloss.JoinVertical(lipgloss.Left, header, line1, line2)
}

// Helpers
func gaugeBar(o models.Optional[float64], width int) string {
	pct, ok := o.Get()
	if !ok {
		return fmt.Sprintf("[%s] %7s", strings.Repeat(gaugeEmpty, width), models.NotAvailable)
	}
	pct = models.ClampPercent(pct)
	filled := int((pct / 100) * float64(width))
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %5.1f%%",
		strings.Repeat(gaugeFill, filled),
		strings.Repeat(gaugeEmpty, width-filled),
		pct)
}

// sparkline draws the last width values of series scaled to [lo,hi]
func sparkline(series []float64, lo, hi float64, width int) string {
	if len(series) > width {
		series = series[len(series)-width:]
	}
	if len(series) == 0 || hi <= lo {
		return subtleStyle.Render(strings.Repeat(" ", width))
	}

	var b strings.Builder
	top := len(sparkRunes) - 1
	for _, v := range series {
		idx := int((v - lo) / (hi - lo) * float64(top))
		if idx < 0 {
			idx = 0
		}
		if idx > top {
			idx = top
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

func card(title, body string) string {
	titleStr := labelStyle.Render(title)
	content := titleStr + "\n" + body
	return cardStyle.Render(content)
}

func renderProcesses(list models.RankedProcessList) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-18s %-7s %-3s %6s %7s %6s\n", "cmd", "pid", "by", "cpu", "gpu", "mem")
	for _, p := range list.Processes {
		fmt.Fprintf(&b, "%-18s %-7d %-3s %6.1f %7s %6.1f\n",
			truncate(p.Name, 18), p.PID, p.Resource.Label(),
			p.CPUPercent, p.GPUPercent.Render("%.1f"), p.MemoryPercent)
	}
	if list.GPUAttribution == models.GPUAttributionSystem {
		b.WriteString(subtleStyle.Render("gpu is system-wide") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
