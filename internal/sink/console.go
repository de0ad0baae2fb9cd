package sink

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/monify-labs/telemon/pkg/models"
)

const separator = "--------------------------------------"

// Console writes one text block per tick. Styling is dropped automatically
// when out is not a terminal.
type Console struct {
	out io.Writer

	title lipgloss.Style
	label lipgloss.Style
	na    lipgloss.Style
}

// NewConsole creates a console sink writing to out
func NewConsole(out io.Writer) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		out:   out,
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("45")),
		label: r.NewStyle().Foreground(lipgloss.Color("81")),
		na:    r.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

// Present writes frame
func (c *Console) Present(_ context.Context, frame *models.Frame) error {
	if frame == nil {
		return nil
	}
	if _, err := io.WriteString(c.out, c.Render(frame)); err != nil {
		return fmt.Errorf("failed to write console frame: %w", err)
	}
	return nil
}

// Render formats frame as a text block
func (c *Console) Render(frame *models.Frame) string {
	s := &frame.Snapshot
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s\n", c.title.Render(fmt.Sprintf("Round %d", frame.Tick)), s.Timestamp.Format("2006-01-02 15:04:05"))
	c.line(&b, "Host", hostLine(frame.Host))
	c.line(&b, "Uptime", uptime(frame))
	c.line(&b, "CPU usage", percent(s.CPUUsagePercent))
	c.line(&b, "CPU temperature", celsius(s.CPUTemperatureCelsius))
	c.line(&b, "CPU model", text(s.CPUModel))
	c.line(&b, "GPU usage", percent(s.GPUUsagePercent))
	c.line(&b, "GPU temperature", celsius(s.GPUTemperatureCelsius))
	c.line(&b, "GPU model", text(s.GPUModel))
	c.line(&b, "GPU memory", gpuMemory(s))
	c.line(&b, "Memory usage", percent(s.MemoryUsagePercent))
	c.line(&b, "RAM speed", megahertz(s.RAMSpeedMHz))
	c.line(&b, "Swap usage", percent(s.SwapUsagePercent))

	b.WriteString(c.label.Render("Storage:") + "\n")
	if len(s.Storage) == 0 {
		b.WriteString("  " + c.na.Render(models.NotAvailable) + "\n")
	}
	for _, e := range s.Storage {
		fmt.Fprintf(&b, "  %-12s %-12s used %-10s free %-10s %.2f %%\n",
			e.DeviceID, e.MountPoint, gigabytes(e.UsedBytes), gigabytes(e.FreeBytes), e.PercentUsed)
	}

	c.line(&b, "Network total", megabytes(s.NetworkBytesTotal))
	c.line(&b, "Network since last", megabytes(frame.NetworkBytesSinceLast))
	b.WriteString(separator + "\n")

	procs := frame.Processes
	b.WriteString(c.title.Render(fmt.Sprintf("Top processes by %s", rankTitle(procs.Key))) + "\n")
	if len(procs.Processes) == 0 {
		b.WriteString("  " + c.na.Render("no processes") + "\n")
	}
	for _, p := range procs.Processes {
		fmt.Fprintf(&b, "  %-24s pid %-7d %-3s  CPU %6.1f %%  GPU %9s  RAM %6.2f %%\n",
			truncate(p.Name, 24), p.PID, p.Resource.Label(),
			p.CPUPercent, percent(p.GPUPercent), p.MemoryPercent)
	}
	if procs.GPUAttribution == models.GPUAttributionSystem {
		b.WriteString("  " + c.na.Render("GPU figures are system-wide, not per process") + "\n")
	}
	b.WriteString(separator + "\n")

	return b.String()
}

func (c *Console) line(b *strings.Builder, label, value string) {
	if value == models.NotAvailable {
		value = c.na.Render(value)
	}
	fmt.Fprintf(b, "%s %s\n", c.label.Render(fmt.Sprintf("%-20s", label+":")), value)
}

// Close is a no-op; the writer belongs to the caller
func (c *Console) Close() error {
	return nil
}

func rankTitle(key string) string {
	if key == "" || key == "merged" {
		return "CPU and RAM"
	}
	return models.RankKey(key).Label()
}
