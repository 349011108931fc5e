package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mvave-bridge/bridge"
	"mvave-bridge/midi"
	"mvave-bridge/theme"
	"mvave-bridge/widgets"
)

// Actions are the operations that need more than the engine: the port
// selection policy and the switches file.
type Actions interface {
	// Connect opens the preferred ports.
	Connect() error
	Disconnect() error
	// Ports returns the connected input and output, empty when idle.
	Ports() (in, out string)
	// Save writes the layout and returns the path written.
	Save(language string) (string, error)
	// Load applies the saved layout, reconnecting when its ports differ.
	Load() (path, language string, warnings []string, err error)
}

const portRefresh = time.Second

type tickMsg time.Time

type Options struct {
	Engine   *bridge.Engine
	Actions  Actions
	Updates  *Updates
	Theme    *theme.Theme
	Language string
}

type Model struct {
	engine  *bridge.Engine
	actions Actions
	updates *Updates
	theme   *theme.Theme

	str   Strings
	keys  keyMap
	help  help.Model
	input textinput.Model

	cursor    int
	switches  []bridge.Switch
	learning  bridge.LearningSession
	connected bool
	inPort    string
	outPort   string

	status    string
	statusErr bool
	editing   bool
	quitting  bool
}

func NewModel(opts Options) Model {
	th := opts.Theme
	if th == nil {
		th = theme.New(nil)
	}
	str := StringsFor(opts.Language)

	in := textinput.New()
	in.CharLimit = 3
	in.Prompt = str.EnterCC

	m := Model{
		engine:  opts.Engine,
		actions: opts.Actions,
		updates: opts.Updates,
		theme:   th,
		str:     str,
		keys:    newKeyMap(str),
		help:    help.New(),
		input:   in,
	}
	m.refresh()
	return m
}

func tick() tea.Cmd {
	return tea.Tick(portRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tick()}
	if m.updates != nil {
		cmds = append(cmds, ListenForUpdates(m.updates))
	}
	return tea.Batch(cmds...)
}

// refresh re-reads engine snapshots; the engine is the only source of truth.
func (m *Model) refresh() {
	m.switches = m.engine.Switches()
	m.learning = m.engine.Learning()
	m.connected = m.engine.Connected()
	if m.actions != nil {
		m.inPort, m.outPort = m.actions.Ports()
	}
	if m.cursor >= len(m.switches) {
		m.cursor = max(len(m.switches)-1, 0)
	}
}

func (m Model) selected() (bridge.Switch, bool) {
	if m.cursor < 0 || m.cursor >= len(m.switches) {
		return bridge.Switch{}, false
	}
	return m.switches[m.cursor], true
}

func (m *Model) setStatus(s string) {
	m.status, m.statusErr = s, false
}

// fail turns an engine error into a localized status line.
func (m *Model) fail(err error) {
	if err == nil {
		return
	}
	var msg string
	switch {
	case errors.Is(err, bridge.ErrNotConnected):
		msg = m.str.NeedConnect
	case errors.Is(err, bridge.ErrCapacity):
		_, nMax := m.engine.Bounds()
		msg = fmt.Sprintf(m.str.LimitReached, nMax)
	case errors.Is(err, bridge.ErrProtected):
		msg = m.str.Protected
	default:
		msg = err.Error()
	}
	m.status, m.statusErr = msg, true
}

func (m Model) label(id string) string {
	for _, sw := range m.switches {
		if sw.ControlID == id {
			return fmt.Sprintf("%s %d", m.str.Switch, sw.Ordinal)
		}
	}
	return id
}

func (m Model) fieldName(f bridge.Field) string {
	if f == bridge.FieldOutput {
		return m.str.Output
	}
	return m.str.Input
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateKeys(msg)

	case UpdateMsg:
		m.refresh()
		if msg.Kind == UpdateLearning {
			m.learnStatus(msg)
		}
		if m.updates == nil {
			return m, nil
		}
		return m, ListenForUpdates(m.updates)

	case tickMsg:
		m.refresh()
		return m, tick()
	}
	return m, nil
}

func (m *Model) learnStatus(msg UpdateMsg) {
	switch msg.Status {
	case bridge.LearnWaiting:
		if msg.Field == bridge.FieldOutput {
			m.setStatus(fmt.Sprintf(m.str.PressOutput, m.label(msg.ControlID)))
		} else {
			m.setStatus(fmt.Sprintf(m.str.PressPhysical, m.label(msg.ControlID)))
		}
	case bridge.LearnDone:
		cc := m.str.NotAssigned
		if sw, ok := m.engine.Switch(msg.ControlID); ok {
			if msg.Field == bridge.FieldOutput {
				cc = sw.OutputCC.String()
			} else {
				cc = sw.InputCC.String()
			}
		}
		m.setStatus(fmt.Sprintf(m.str.LearnAssigned, m.label(msg.ControlID), m.fieldName(msg.Field), cc))
	case bridge.LearnCancelled:
		m.setStatus(m.str.LearnCancelled)
	}
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sw, ok := m.selected()

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.switches)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Trigger):
		if ok {
			m.fail(m.engine.Trigger(sw.ControlID))
		}

	case key.Matches(msg, m.keys.Arm):
		if err := m.engine.Arm(); err != nil {
			m.fail(err)
		} else {
			m.setStatus(m.str.Learning)
		}

	case key.Matches(msg, m.keys.LearnIn):
		if ok {
			m.fail(m.engine.RequestTarget(sw.ControlID, bridge.FieldInput))
		}

	case key.Matches(msg, m.keys.LearnOut):
		if ok {
			m.fail(m.engine.RequestTarget(sw.ControlID, bridge.FieldOutput))
		}

	case key.Matches(msg, m.keys.Cancel):
		m.engine.Disarm()

	case key.Matches(msg, m.keys.Mode):
		if ok {
			next := bridge.Momentary
			if sw.Mode == bridge.Momentary {
				next = bridge.Toggle
			}
			m.fail(m.engine.SetMode(sw.ControlID, next))
		}

	case key.Matches(msg, m.keys.EditCC):
		if ok {
			m.editing = true
			m.input.SetValue(sw.OutputCC.String())
			m.input.CursorEnd()
			cmd := m.input.Focus()
			return m, cmd
		}

	case key.Matches(msg, m.keys.Add):
		added, err := m.engine.AddSwitch()
		if err != nil {
			m.fail(err)
			break
		}
		m.refresh()
		m.cursor = len(m.switches) - 1
		m.setStatus(fmt.Sprintf(m.str.Added, m.label(added.ControlID)))

	case key.Matches(msg, m.keys.Delete):
		if ok {
			name := m.label(sw.ControlID)
			if err := m.engine.DeleteSwitch(sw.ControlID); err != nil {
				m.fail(err)
			} else {
				m.setStatus(fmt.Sprintf(m.str.Deleted, name))
			}
		}

	case key.Matches(msg, m.keys.Save):
		if m.actions != nil {
			path, err := m.actions.Save(m.str.Code)
			if err != nil {
				m.fail(err)
			} else {
				m.setStatus(fmt.Sprintf(m.str.Saved, path))
			}
		}

	case key.Matches(msg, m.keys.Load):
		if m.actions != nil {
			path, lang, warnings, err := m.actions.Load()
			if err != nil {
				m.fail(err)
				break
			}
			if lang != "" {
				m.setLanguage(StringsFor(lang))
			}
			m.setStatus(fmt.Sprintf(m.str.Loaded, path, len(warnings)))
		}

	case key.Matches(msg, m.keys.Connect):
		if m.actions != nil {
			if m.engine.Connected() {
				m.fail(m.actions.Disconnect())
			} else {
				m.fail(m.actions.Connect())
			}
		}

	case key.Matches(msg, m.keys.Lang):
		m.setLanguage(m.str.next())

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	m.refresh()
	return m, nil
}

func (m *Model) setLanguage(s Strings) {
	m.str = s
	m.keys = newKeyMap(s)
	m.input.Prompt = s.EnterCC
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = false
		m.input.Blur()
		return m, nil

	case tea.KeyEnter:
		m.editing = false
		m.input.Blur()
		sw, ok := m.selected()
		if !ok {
			return m, nil
		}
		cc, err := midi.ParseCC(strings.TrimSpace(m.input.Value()))
		if err != nil {
			m.fail(err)
			return m, nil
		}
		m.fail(m.engine.SetOutputCC(sw.ControlID, cc))
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) modeName(mode bridge.Mode) string {
	if mode == bridge.Momentary {
		return m.str.Momentary
	}
	return m.str.Toggle
}

func (m Model) ccText(cc midi.CC) string {
	if !cc.Valid() {
		return m.str.NotAssigned
	}
	return cc.String()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.theme.Accent()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(m.theme.Muted())
	statusStyle := lipgloss.NewStyle().Foreground(m.theme.FG())
	if m.statusErr {
		statusStyle = statusStyle.Foreground(m.theme.Warning())
	}

	link := widgets.RenderLamp(m.theme.Error(), m.theme.Symbols.NoLink) + " " + m.str.Disconnected
	if m.connected {
		link = widgets.RenderLamp(m.theme.On(), m.theme.Symbols.Link) + " " + m.str.Connected
		if m.inPort != "" {
			link += dimStyle.Render(fmt.Sprintf("  %s → %s", m.inPort, m.outPort))
		}
	}
	header := headerStyle.Render(m.str.AppTitle) + "  " + link

	rows := make([]widgets.SwitchRow, len(m.switches))
	for i, sw := range m.switches {
		rows[i] = widgets.SwitchRow{
			Label:    fmt.Sprintf("%s %d", m.str.Switch, sw.Ordinal),
			Input:    m.ccText(sw.InputCC),
			Output:   m.ccText(sw.OutputCC),
			Mode:     m.modeName(sw.Mode),
			On:       sw.State,
			Selected: i == m.cursor,
			Learning: m.learning.Aimed() && m.learning.Target == sw.ControlID,
			Diverged: sw.Diverged,
		}
	}
	table := widgets.RenderSwitchTable(m.theme,
		[4]string{"", m.str.InputCC, m.str.OutputCC, m.str.Mode}, rows)

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(table)
	out.WriteString("\n\n")

	if m.learning.Active && !m.learning.Aimed() {
		out.WriteString(lipgloss.NewStyle().Foreground(m.theme.Learning()).Render(m.str.Learning))
		out.WriteString("\n")
	}
	if m.editing {
		out.WriteString(m.input.View())
		out.WriteString("\n")
	} else if m.status != "" {
		out.WriteString(statusStyle.Render(m.status))
		out.WriteString("\n")
	}
	if m.help.ShowAll {
		out.WriteString("\n")
		out.WriteString(widgets.RenderLegendItem(m.theme.On(), m.theme.Symbols.On, m.str.LegendOn))
		out.WriteString("\n")
		out.WriteString(widgets.RenderLegendItem(m.theme.Learning(), m.theme.Symbols.Learning, m.str.LegendLearning))
		out.WriteString("\n")
		out.WriteString(widgets.RenderLegendItem(m.theme.Error(), m.theme.Symbols.Diverged, m.str.Diverged))
		out.WriteString("\n")
	}
	out.WriteString("\n")
	out.WriteString(m.help.View(m.keys))
	return out.String()
}
