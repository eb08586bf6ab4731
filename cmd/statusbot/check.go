package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/lipgloss"

	"github.com/hazz-dev/statusbot/internal/checker"
	"github.com/hazz-dev/statusbot/internal/config"
	"github.com/hazz-dev/statusbot/internal/notify"
	"github.com/hazz-dev/statusbot/internal/registry"
	"github.com/hazz-dev/statusbot/internal/report"
)

var errServicesDown = errors.New("one or more services are down")

// palette holds the terminal styles for one output stream. Colors are
// dropped automatically when out is not a terminal.
type palette struct {
	title     lipgloss.Style
	header    lipgloss.Style
	cell      lipgloss.Style
	healthy   lipgloss.Style
	unhealthy lipgloss.Style
	dim       lipgloss.Style
}

func newPalette(out io.Writer) palette {
	r := lipgloss.NewRenderer(out)
	return palette{
		title:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		header:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#6B7280")),
		cell:      r.NewStyle(),
		healthy:   r.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true),
		unhealthy: r.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true),
		dim:       r.NewStyle().Foreground(lipgloss.Color("#6B7280")),
	}
}

func (p palette) mark(healthy bool) string {
	if healthy {
		return p.healthy.Render("✓")
	}
	return p.unhealthy.Render("✗")
}

func runChecks(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger) error {
	reg, err := registry.New(cfg.Services)
	if err != nil {
		return err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}

	fc := report.New(reg, checker.NewHTTP(timeout), logger).RunFullCheck(ctx)
	renderReport(out, fc.Report())

	if !fc.AllHealthy {
		return errServicesDown
	}
	return nil
}

// renderReport prints a report as an aligned table.
func renderReport(out io.Writer, rep notify.Report) {
	p := newPalette(out)

	headers := []string{"SERVICE", "STATUS", "RESPONSE", "DESCRIPTION"}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	rows := make([][]string, 0, len(rep.Entries))
	for _, e := range rep.Entries {
		row := []string{e.Service, e.Status, e.Latency, e.Description}
		for i, v := range row {
			widths[i] = max(widths[i], lipgloss.Width(v))
		}
		rows = append(rows, row)
	}

	fmt.Fprintln(out, p.title.Render(rep.Title))

	var line string
	for i, h := range headers {
		line += p.header.Width(widths[i] + 2).Render(h)
	}
	fmt.Fprintln(out, "  "+line)

	for n, row := range rows {
		e := rep.Entries[n]
		line = ""
		for i, v := range row {
			style := p.cell
			if i == 3 {
				style = p.dim
			}
			line += style.Width(widths[i] + 2).Render(v)
		}
		fmt.Fprintln(out, p.mark(e.Healthy)+" "+line)
	}
}
