package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hyperjson/interpstate/hosttest"
	"github.com/hyperjson/interpstate/interp"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	ctxStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	deadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectContext modelState = iota
	stateInputKey
	stateShowResult
)

type interactiveModel struct {
	registry *interp.Registry
	contexts []*interp.Context
	input    textinput.Model
	result   string
	err      error
	selected int
	state    modelState
}

func newInteractiveModel() (*interactiveModel, error) {
	m := &interactiveModel{
		registry: interp.NewRegistry(),
		state:    stateSelectContext,
	}
	if err := m.addContext(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *interactiveModel) addContext() error {
	c, err := m.registry.OnContextCreate(hosttest.New())
	if err != nil {
		return err
	}
	if err := c.EnsureInitialized(); err != nil {
		return err
	}
	m.contexts = append(m.contexts, c)
	return nil
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.state == stateSelectContext {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectContext && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectContext && m.selected < len(m.contexts)-1 {
				m.selected++
			}

		case "n":
			if m.state == stateSelectContext {
				if err := m.addContext(); err != nil {
					m.err = err
					m.state = stateShowResult
				}
				return m, nil
			}

		case "t":
			if m.state == stateSelectContext {
				c := m.contexts[m.selected]
				if err := m.registry.OnContextDestroy(c); err != nil {
					m.err = err
					m.state = stateShowResult
				}
				return m, nil
			}

		case "enter":
			switch m.state {
			case stateSelectContext:
				m.input = textinput.New()
				m.input.Placeholder = "object key"
				m.input.Prompt = "key: "
				m.input.Width = 40
				m.input.Focus()
				m.state = stateInputKey
				return m, nil

			case stateInputKey:
				m.internKey(m.input.Value())
				m.state = stateShowResult
				return m, nil

			case stateShowResult:
				m.state = stateSelectContext
				m.result = ""
				m.err = nil
				return m, nil
			}

		case "esc":
			m.state = stateSelectContext
			m.result = ""
			m.err = nil
			return m, nil
		}
	}

	if m.state == stateInputKey {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *interactiveModel) internKey(key string) {
	c := m.contexts[m.selected]
	h, err := c.InternKey([]byte(key))
	if err != nil {
		m.err = err
		return
	}
	m.result = fmt.Sprintf("%q -> ref %d (owner %d)", key, h.Ref(), h.Owner())
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Context Inspector"))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectContext:
		for i, c := range m.contexts {
			cursor := "  "
			line := m.formatContext(c)
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + line))
			} else {
				b.WriteString(cursor + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter intern key • n new context • t teardown • q quit"))

	case stateInputKey:
		b.WriteString(fmt.Sprintf("Intern into context %d\n\n", m.contexts[m.selected].ID()))
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter intern • esc back"))

	case stateShowResult:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • esc back"))
	}

	return b.String()
}

func (m *interactiveModel) formatContext(c *interp.Context) string {
	style := ctxStyle
	if c.State() == interp.StateTornDown {
		style = deadStyle
	}
	line := fmt.Sprintf("context %d [%s]", c.ID(), c.State())

	if cache, err := c.Keys(); err == nil {
		stats := cache.Stats()
		line += fmt.Sprintf("  hits=%d misses=%d evictions=%d", stats.Hits, stats.Misses, stats.Evictions)
	}
	return style.Render(line)
}

func runInteractive() error {
	m, err := newInteractiveModel()
	if err != nil {
		return err
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
