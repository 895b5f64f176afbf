package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/mdcore/internal/metrics"
)

var (
	cyan  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	red   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	title = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	box   = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("238")).
		Padding(0, 1)
)

var thermoColumns = []string{"step", "temp", "pe", "ke", "etotal", "press"}

func thermoHeader() string {
	cells := make([]string, len(thermoColumns))
	for i, c := range thermoColumns {
		cells[i] = fmt.Sprintf("%12s", c)
	}
	return cyan.Render(strings.Join(cells, " "))
}

func thermoRow(s metrics.Sample) string {
	return white.Render(fmt.Sprintf("%12d %12.6g %12.6g %12.6g %12.6g %12.6g",
		s.Step, s.Temp, s.PE, s.KE, s.ETotal, s.Press))
}

// summary renders label/value pairs in a bordered box.
func summary(heading string, kv [][2]string) string {
	width := 0
	for _, p := range kv {
		width = max(width, len(p[0]))
	}
	lines := []string{title.Render(heading)}
	for _, p := range kv {
		lines = append(lines, dim.Render(fmt.Sprintf("%-*s", width, p[0]))+"  "+white.Render(p[1]))
	}
	return box.Render(strings.Join(lines, "\n"))
}
