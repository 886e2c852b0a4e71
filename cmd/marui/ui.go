package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"marui/internal/graph"
)

type uiStyles struct {
	doc    lipgloss.Style
	title  lipgloss.Style
	status lipgloss.Style
	bad    lipgloss.Style
	fresh  lipgloss.Style
	clean  lipgloss.Style
}

func defaultStyles() uiStyles {
	return uiStyles{
		doc:    lipgloss.NewStyle().Margin(1, 2),
		title:  lipgloss.NewStyle().MarginLeft(2).Bold(true).Foreground(lipgloss.Color("#3B82F6")),
		status: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#64748B")),
		bad:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F87171")),
		fresh:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FBBF24")),
		clean:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981")),
	}
}

type keyMap struct {
	quit   key.Binding
	rescan key.Binding
}

var keys = keyMap{
	quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
}

// cycleItem is one list row; new marks a cycle absent from the previous run.
type cycleItem struct {
	chain string
	size  int
	new   bool
}

func (i cycleItem) Title() string {
	if i.new {
		return "New circular import"
	}
	return "Circular import"
}

func (i cycleItem) Description() string {
	return fmt.Sprintf("%s  (%d modules)", i.chain, i.size)
}

func (i cycleItem) FilterValue() string { return i.chain }

type updateMsg struct {
	cycles      []graph.Cycle
	introduced  []string
	moduleCount int
	fileCount   int
}

type rescanDoneMsg struct{}

type model struct {
	list   list.Model
	styles uiStyles
	rescan func()

	cycles      int
	introduced  int
	moduleCount int
	fileCount   int
	scanning    bool
	lastUpdate  time.Time
}

func initialModel(rescan func()) model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Circular Imports"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.AdditionalShortHelpKeys = func() []key.Binding { return []key.Binding{keys.rescan} }

	return model{
		list:       l,
		styles:     defaultStyles(),
		rescan:     rescan,
		lastUpdate: time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Keys typed into the filter box belong to the list.
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, keys.quit):
			return m, tea.Quit
		case key.Matches(msg, keys.rescan) && m.rescan != nil && !m.scanning:
			m.scanning = true
			rescan := m.rescan
			return m, func() tea.Msg {
				rescan()
				return rescanDoneMsg{}
			}
		}
	case tea.WindowSizeMsg:
		h, v := m.styles.doc.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
	case rescanDoneMsg:
		m.scanning = false
		return m, nil
	case updateMsg:
		m.applyUpdate(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *model) applyUpdate(msg updateMsg) {
	fresh := make(map[string]bool, len(msg.introduced))
	for _, c := range msg.introduced {
		fresh[c] = true
	}

	items := make([]list.Item, 0, len(msg.cycles))
	for _, c := range msg.cycles {
		chain := c.String()
		items = append(items, cycleItem{chain: chain, size: len(c.Modules()), new: fresh[chain]})
	}
	m.list.SetItems(items)

	m.cycles = len(msg.cycles)
	m.introduced = len(msg.introduced)
	m.moduleCount = msg.moduleCount
	m.fileCount = msg.fileCount
	m.lastUpdate = time.Now()
}

func (m model) View() string {
	s := m.styles
	status := s.status.Render(fmt.Sprintf("Last update %s | %d files | %d modules",
		m.lastUpdate.Format("15:04:05"), m.fileCount, m.moduleCount))
	if m.scanning {
		status += s.status.Render(" | rescanning")
	}

	summary := s.clean.Render("No circular imports")
	if m.cycles > 0 {
		summary = s.bad.Render(fmt.Sprintf("%d cycles", m.cycles))
		if m.introduced > 0 {
			summary += " " + s.fresh.Render(fmt.Sprintf("(%d new)", m.introduced))
		}
	}

	header := s.title.Render("marui: Python import cycles") + "\n" + status + " | " + summary + "\n"
	return s.doc.Render(header + "\n" + m.list.View())
}
