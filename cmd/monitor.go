// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/chamois/pkg/chamois"
	"github.com/Thermoquad/chamois/pkg/engine"
	"github.com/Thermoquad/chamois/pkg/toolchange"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live MMU dashboard",
	Long: `Show the cached MMU status and transport statistics, refreshed live.

Keys:
  0-9  tool change to that index. With more than ten tools an index
       that could take a second digit waits for it (or enter), so
       "1" "5" selects T15 and "1" enter selects T1. esc clears.
  h    home
  d    disable
  x    halt
  q    quit`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	var p *tea.Program
	s, err := openSession(cmd, func(stage toolchange.Stage) {
		if p != nil {
			p.Send(stageMsg(stage))
		}
	})
	if err != nil {
		return err
	}
	defer s.Close()

	m := initialMonitorModel(cmd.Context(), s.engine, s.table, s.info, s.cfg.Toolheads)
	p = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// Log entry
type eventEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// monitor model
type monitorModel struct {
	ctx       context.Context
	engine    *engine.Engine
	table     *toolchange.Table
	connInfo  string
	toolheads int

	status  chamois.DeviceStatus
	stats   engine.Stats
	pending int

	busy    string // command being executed, empty when idle
	typed   string // tool index digits waiting for another key
	stage   toolchange.Stage
	spinner spinner.Model

	events    []eventEntry
	maxEvents int
	width     int
	height    int
	quitting  bool
}

// Messages
type monitorTickMsg time.Time
type stageMsg toolchange.Stage
type commandDoneMsg struct {
	name     string
	messages []string
	err      error
}

func initialMonitorModel(ctx context.Context, eng *engine.Engine, table *toolchange.Table, connInfo string, toolheads int) monitorModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	return monitorModel{
		ctx:       ctx,
		engine:    eng,
		table:     table,
		connInfo:  connInfo,
		toolheads: toolheads,
		spinner:   sp,
		events:    make([]eventEntry, 0),
		maxEvents: 100,
		width:     80,
		height:    24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(monitorTickCmd(), m.execute("STATUS"))
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

// execute runs a command table entry off the UI goroutine
func (m monitorModel) execute(name string) tea.Cmd {
	table := m.table
	ctx := m.ctx
	return func() tea.Msg {
		done := commandDoneMsg{name: name}
		done.err = table.Execute(ctx, name, func(msg string) {
			done.messages = append(done.messages, msg)
		})
		return done
	}
}

// commandForKey maps a key press to a command table name. Digits build a
// tool index in typed. The index fires once no further digit could extend
// it below toolheads, or on enter. pending is the new typed value.
func commandForKey(key, typed string, toolheads int) (name, pending string) {
	switch key {
	case "h":
		return "HOME", ""
	case "d":
		return "DISABLE", ""
	case "x":
		return "HALT", ""
	case "esc":
		return "", ""
	case "enter":
		if typed == "" {
			return "", ""
		}
		return "T" + typed, ""
	}

	if len(key) != 1 || key[0] < '0' || key[0] > '9' {
		return "", typed
	}
	index, _ := strconv.Atoi(typed + key)
	if index >= toolheads {
		return "", ""
	}
	if index == 0 || index*10 >= toolheads {
		return "T" + strconv.Itoa(index), ""
	}
	return "", strconv.Itoa(index)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

		name, pending := commandForKey(msg.String(), m.typed, m.toolheads)
		m.typed = pending
		if name == "" {
			return m, nil
		}
		if m.busy != "" {
			m.addEvent(fmt.Sprintf("%s ignored, %s still running", name, m.busy), true)
			return m, nil
		}
		m.busy = name
		m.stage = toolchange.StageIdle
		m.addEvent(name+" started", false)
		return m, tea.Batch(m.execute(name), m.spinner.Tick)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		m.status = m.engine.Status()
		m.stats = m.engine.Statistics()
		m.pending = m.engine.Pending()
		return m, monitorTickCmd()

	case stageMsg:
		m.stage = toolchange.Stage(msg)

	case commandDoneMsg:
		if msg.name == m.busy {
			m.busy = ""
		}
		for _, line := range msg.messages {
			m.addEvent(line, false)
		}
		if msg.err != nil {
			m.addEvent(fmt.Sprintf("%s: %v", msg.name, msg.err), true)
		}
		m.status = m.engine.Status()

	case spinner.TickMsg:
		if m.busy == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *monitorModel) addEvent(message string, isError bool) {
	m.events = append(m.events, eventEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.events) > m.maxEvents {
		m.events = m.events[len(m.events)-m.maxEvents:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("CHAMOIS - MMU MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %d tools | 0-%d tool change, h home, d disable, x halt, q quit",
		m.connInfo, m.toolheads, m.toolheads-1)))
	s.WriteString("\n\n")

	if m.typed != "" {
		s.WriteString(headerStyle.Render(fmt.Sprintf("T%s_ (next digit or enter)", m.typed)))
		s.WriteString("\n")
	}
	if m.busy != "" {
		s.WriteString(m.spinner.View())
		s.WriteString(warningStyle.Render(fmt.Sprintf(" %s: %s", m.busy, m.stage)))
	} else {
		s.WriteString(valueStyle.Render("✓ Idle"))
	}
	if m.pending > 0 {
		s.WriteString(headerStyle.Render(fmt.Sprintf(" (%d queued)", m.pending)))
	}
	s.WriteString("\n\n")

	// Device status
	status := strings.Builder{}
	yesNo := func(v bool) string {
		if v {
			return valueStyle.Render("yes")
		}
		return warningStyle.Render("no")
	}
	status.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Homed:"), yesNo(m.status.Initialized),
		labelStyle.Render("Loaded:"), yesNo(m.status.Loaded),
		labelStyle.Render("Tool:"), valueStyle.Render(fmt.Sprintf("T%d", m.status.SelectedIndex)),
	))
	status.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("Extruded:"), valueStyle.Render(fmt.Sprintf("%d mm", m.status.TotalExtrudedDistance)),
		labelStyle.Render("Tool changes:"), valueStyle.Render(fmt.Sprintf("%d", m.status.ToolChangeCount)),
	))
	if m.status.LastUpdate.IsZero() {
		status.WriteString(headerStyle.Render("no status yet"))
	} else {
		status.WriteString(headerStyle.Render("updated " + formatAge(time.Since(m.status.LastUpdate)) + " ago"))
	}
	s.WriteString(boxStyle.Render(status.String()))
	s.WriteString("\n\n")

	// Transport statistics
	stats := strings.Builder{}
	stats.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Transactions:"), valueStyle.Render(fmt.Sprintf("%d (%.2f/s)", m.stats.Transactions, m.stats.TransactionRate())),
		labelStyle.Render("Retries:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.Retries)),
		labelStyle.Render("Failed:"), func() string {
			if m.stats.Failures > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", m.stats.Failures))
			}
			return valueStyle.Render("0")
		}(),
	))
	errorCount := m.stats.ConnectErrors + m.stats.Timeouts + m.stats.ProtocolErrors + m.stats.IOErrors + m.stats.DeviceErrors
	if errorCount > 0 {
		stats.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d, %s: %d, %s: %d, %s: %d)\n",
			labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", errorCount)),
			headerStyle.Render("connect"), m.stats.ConnectErrors,
			headerStyle.Render("timeout"), m.stats.Timeouts,
			headerStyle.Render("protocol"), m.stats.ProtocolErrors,
			headerStyle.Render("io"), m.stats.IOErrors,
			headerStyle.Render("device"), m.stats.DeviceErrors,
		))
	}
	stats.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Last RTT:"), valueStyle.Render(m.stats.LastRTT.Round(time.Microsecond).String()),
		labelStyle.Render("Uptime:"), valueStyle.Render(formatAge(time.Since(m.stats.StartTime))),
	))
	s.WriteString(boxStyle.Render(stats.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 18
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.events) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	events := strings.Builder{}
	if len(m.events) == 0 {
		events.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range m.events[startIdx:] {
		timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
		if entry.isError {
			events.WriteString(fmt.Sprintf("%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message)))
		} else {
			events.WriteString(fmt.Sprintf("%s %s\n", timestamp, "ℹ "+entry.message))
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(events.String()))

	return s.String()
}

// formatAge renders a duration as "2 hours, 3 minutes, and 1 second"
func formatAge(d time.Duration) string {
	seconds := int64(d / time.Second)
	units := []struct {
		name string
		size int64
	}{
		{"day", 86400},
		{"hour", 3600},
		{"minute", 60},
		{"second", 1},
	}

	parts := []string{}
	for _, u := range units {
		n := seconds / u.size
		seconds %= u.size
		if n == 0 && !(u.size == 1 && len(parts) == 0) {
			continue
		}
		if n == 1 {
			parts = append(parts, "1 "+u.name)
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
}
