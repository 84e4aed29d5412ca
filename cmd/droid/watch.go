package main

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gwillem/droid/pkg/droid"
	"github.com/gwillem/droid/pkg/telemetry"
)

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 9 // log box height
	maxLogs      = 7 // number of log lines to show
	borderSize   = 2 // chart border
)

// Motor colors
var motorColors = map[droid.MotorSide]string{
	droid.MotorLeft:  "51",  // cyan
	droid.MotorRight: "201", // magenta
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type watchModel struct {
	stream *telemetry.Stream
	chart  *streamlinechart.Model
	width  int
	height int
	logs   []string
	last   map[droid.MotorSide]telemetry.Sample
	result *telemetry.Result
}

type sampleMsg telemetry.Sample
type logMsg string
type doneMsg telemetry.Result

// streamClosed is sent once a channel has been drained and closed.
type streamClosed struct{}

func waitForSample(s *telemetry.Stream) tea.Cmd {
	return func() tea.Msg {
		smp, ok := <-s.Samples()
		if !ok {
			return streamClosed{}
		}
		return sampleMsg(smp)
	}
}

func waitForLog(s *telemetry.Stream) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-s.Logs()
		if !ok {
			return streamClosed{}
		}
		return logMsg(line)
	}
}

func waitForDone(s *telemetry.Stream) tea.Cmd {
	return func() tea.Msg {
		return doneMsg(s.Result())
	}
}

// initialWatchModel plots encoder travel for each motor, scaled to the
// distance abort limit.
func initialWatchModel(s *telemetry.Stream, th droid.Thresholds) watchModel {
	limit := th.AbortDistance * 1.25
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-limit, limit),
	)
	for _, side := range droid.AllMotors() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(motorColors[side]))
		chart.SetDataSetStyles(string(side), runes.ThinLineStyle, style)
	}
	return watchModel{
		stream: s,
		chart:  &chart,
		last:   make(map[droid.MotorSide]telemetry.Sample),
	}
}

func (m *watchModel) addLog(msg string) {
	m.logs = append(m.logs, strings.Split(msg, "\n")...)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

func (m *watchModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(40, m.width-borderSize-2)
	height = max(10, m.height-headerHeight-legendHeight-footerHeight-borderSize)
	return width, height
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		waitForSample(m.stream),
		waitForLog(m.stream),
		waitForDone(m.stream),
	)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "enter":
			return m, tea.Quit
		}

	case sampleMsg:
		smp := telemetry.Sample(msg)
		m.last[smp.Motor] = smp
		m.chart.PushDataSet(string(smp.Motor), smp.Position)
		m.chart.DrawAll()
		return m, waitForSample(m.stream)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.stream)

	case doneMsg:
		res := telemetry.Result(msg)
		m.result = &res
		if res.Err != nil {
			m.addLog("Self-test failed: " + res.Err.Error())
		} else {
			m.addLog("Self-test finished.")
		}
		return m, nil

	case streamClosed:
		return m, nil
	}
	return m, nil
}

func (m watchModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("D-O Self Test"))
	switch {
	case m.result == nil:
		sb.WriteString(statusStyle.Render("  running"))
	case m.result.Err != nil:
		sb.WriteString(failStyle.Render("  failed"))
	default:
		sb.WriteString(successStyle.Render("  done"))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(m.renderLegend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(20, m.width-4))

	logLines := statusStyle.Render("Press 'q' to quit")
	if len(m.logs) > 0 {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")
	return sb.String()
}

func (m watchModel) renderLegend() string {
	var items []string
	for _, side := range droid.AllMotors() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(motorColors[side])).Bold(true)
		item := colorStyle.Render("━━") + " " + string(side)
		if smp, ok := m.last[side]; ok {
			item += statusStyle.Render(fmt.Sprintf(" pwr %d  %.0fmm  %.1f°  %.0fmA",
				smp.Power, smp.Position, smp.Heading, smp.Current))
		}
		items = append(items, item)
	}
	return strings.Join(items, "    ")
}
