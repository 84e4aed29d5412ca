package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/gwillem/droid/pkg/selftest"
)

var (
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func writeReport(w io.Writer, r *selftest.Report, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		data, err := reportYAML(r)
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		_, err := io.WriteString(w, renderReport(r))
		return err
	}
}

// reportYAML renders the report with the same field names as its JSON form.
func reportYAML(r *selftest.Report) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	blockStyle(&doc)
	return yaml.Marshal(&doc)
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func outcomeStyle(o selftest.Outcome) lipgloss.Style {
	switch o {
	case selftest.Pass:
		return successStyle
	case selftest.Degraded:
		return warnStyle
	case selftest.Failed:
		return failStyle
	}
	return dimStyle
}

func motorStatusStyle(s selftest.MotorStatus) lipgloss.Style {
	switch s {
	case selftest.Ok:
		return successStyle
	case selftest.Untested:
		return dimStyle
	}
	return failStyle
}

func renderReport(r *selftest.Report) string {
	var sb strings.Builder

	sb.WriteString(headerStyle.Render("Self-test report"))
	sb.WriteString("\n\n")

	steps := make([][]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		steps = append(steps, []string{string(s.Step), string(s.Outcome)})
	}
	st := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Step", "Outcome").
		Rows(steps...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == 1 && row >= 0 && row < len(r.Steps) {
				return outcomeStyle(r.Steps[row].Outcome).Padding(0, 1)
			}
			return tableCellStyle
		})
	sb.WriteString(st.Render())
	sb.WriteString("\n")

	motors := make([][]string, 0, len(r.Motors))
	for _, m := range r.Motors {
		motors = append(motors, []string{
			string(m.Side),
			m.Status.String(),
			m.Abort.String(),
			fmt.Sprintf("%d", m.PeakPower),
			fmt.Sprintf("%.1f", m.Stats.Distance),
			fmt.Sprintf("%.1f", m.Stats.HeadingDelta),
			fmt.Sprintf("%.3f", m.Stats.AccelX),
			fmt.Sprintf("%.3f", m.Stats.AccelY),
		})
	}
	mt := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Motor", "Status", "Abort", "Power", "Dist mm", "Heading °", "Ax g", "Ay g").
		Rows(motors...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == 1 && row >= 0 && row < len(r.Motors) {
				return motorStatusStyle(r.Motors[row].Status).Padding(0, 1)
			}
			return tableCellStyle
		})
	sb.WriteString(mt.Render())
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Battery %.2fV, %.0fmA. Rest pitch %.2f°.\n", r.Voltage, r.Current, r.RestPitch)
	switch {
	case r.Error != "":
		sb.WriteString(failStyle.Render(fmt.Sprintf("FAILED (%s): %s", r.Code, r.Error)))
	case r.Passed():
		sb.WriteString(successStyle.Render("PASSED"))
	default:
		sb.WriteString(warnStyle.Render("PASSED with warnings"))
	}
	sb.WriteString("\n")
	return sb.String()
}
