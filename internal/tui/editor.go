package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobintake/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(1, 0, 1, 2)

	rowStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	selectedRowStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 0, 0, 2)

	cellStyle = lipgloss.NewStyle().
			Width(12)

	activeCellStyle = cellStyle.
			Foreground(lipgloss.Color("205")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Padding(1, 0, 0, 2)
)

var columns = []string{"creation", "enrichment", "analysis"}

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Left   key.Binding
	Right  key.Binding
	Toggle key.Binding
	Save   key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Left, k.Right, k.Toggle, k.Save, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Left:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev flag")),
	Right:  key.NewBinding(key.WithKeys("right", "l", "tab"), key.WithHelp("→/l", "next flag")),
	Toggle: key.NewBinding(key.WithKeys(" ", "space", "enter"), key.WithHelp("space", "toggle")),
	Save:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
	Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

type savedMsg struct{ err error }

type editorModel struct {
	sources []model.Source
	save    func([]model.Source) error
	row     int
	col     int
	dirty   bool
	saved   bool
	saving  bool
	status  string
	err     error
	help    help.Model
}

func newEditorModel(sources []model.Source, save func([]model.Source) error) editorModel {
	cp := make([]model.Source, len(sources))
	for i, s := range sources {
		cp[i] = s.Clone()
	}
	return editorModel{sources: cp, save: save, help: help.New()}
}

func (m editorModel) Init() tea.Cmd {
	return nil
}

func (m editorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case savedMsg:
		m.saving = false
		m.err = msg.err
		if msg.err == nil {
			m.dirty = false
			m.saved = true
			m.status = "saved"
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case m.saving:
			return m, nil
		case key.Matches(msg, keys.Up):
			if m.row > 0 {
				m.row--
			}
		case key.Matches(msg, keys.Down):
			if m.row < len(m.sources)-1 {
				m.row++
			}
		case key.Matches(msg, keys.Left):
			if m.col > 0 {
				m.col--
			}
		case key.Matches(msg, keys.Right):
			m.col = (m.col + 1) % len(columns)
		case key.Matches(msg, keys.Toggle):
			if len(m.sources) > 0 {
				m.toggle()
			}
		case key.Matches(msg, keys.Save):
			if !m.dirty {
				m.status = "nothing to save"
				return m, nil
			}
			m.saving = true
			m.status = "saving..."
			return m, m.saveCmd()
		}
	}
	return m, nil
}

func (m *editorModel) toggle() {
	c := &m.sources[m.row].Capabilities
	switch m.col {
	case 0:
		c.Creation = !c.Creation
	case 1:
		c.Enrichment = !c.Enrichment
	case 2:
		c.Analysis = !c.Analysis
	}
	m.dirty = true
	m.status = ""
	m.err = nil
}

func (m editorModel) saveCmd() tea.Cmd {
	save := m.save
	snapshot := make([]model.Source, len(m.sources))
	for i, s := range m.sources {
		snapshot[i] = s.Clone()
	}
	return func() tea.Msg {
		return savedMsg{err: save(snapshot)}
	}
}

func flag(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func (m editorModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Sources"))
	b.WriteString("\n")

	header := fmt.Sprintf("%-20s", "")
	for _, c := range columns {
		header += cellStyle.Render(c)
	}
	b.WriteString(rowStyle.Render(header) + "\n")

	for i, s := range m.sources {
		caps := s.Capabilities
		vals := []bool{caps.Creation, caps.Enrichment, caps.Analysis}
		line := fmt.Sprintf("%-20s", s.Name)
		for j, v := range vals {
			if i == m.row && j == m.col {
				line += activeCellStyle.Render(flag(v))
			} else {
				line += cellStyle.Render(flag(v))
			}
		}
		if i == m.row {
			b.WriteString(selectedRowStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString(rowStyle.Render(line) + "\n")
		}
	}

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("save failed: " + m.err.Error()))
	case m.dirty:
		b.WriteString(statusStyle.Render("unsaved changes"))
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.help.View(keys)))
	return b.String()
}

// RunSourcesEditor opens an interactive editor over the capability switches
// of sources. save is called with the full edited list each time the user
// saves. The returned boolean reports whether at least one save succeeded.
func RunSourcesEditor(sources []model.Source, save func([]model.Source) error) (bool, error) {
	p := tea.NewProgram(newEditorModel(sources, save))
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	return result.(editorModel).saved, nil
}
