// Package tui is a terminal front end for the question answering service.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mini-rag/internal/models"
	"mini-rag/internal/rag"
)

const ingestCommand = "/ingest "

type answerMsg struct{ answer *models.Answer }

type ingestMsg struct{ result *models.IngestResult }

type errMsg struct{ err error }

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx      context.Context
	service  rag.Service
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	answer *models.Answer
	cursor int
	status string
	busy   bool
	ready  bool
}

// New creates a new TUI model instance.
func New(ctx context.Context, service rag.Service) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /ingest path/to/file.pdf"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		service:  service,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Ready.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.render())
		return m, nil

	case answerMsg:
		m.busy = false
		m.answer = msg.answer
		m.cursor = 0
		if msg.answer.NoContext {
			m.status = "No relevant context found. Ingest a PDF first."
		} else {
			m.status = fmt.Sprintf("Answered in %s from %d matches.", msg.answer.Elapsed.Round(time.Millisecond), msg.answer.Retrieved)
		}
		m.viewport.SetContent(m.render())
		return m, nil

	case ingestMsg:
		m.busy = false
		m.status = fmt.Sprintf("Indexed %s: %d chunks, %d records in %s.",
			msg.result.Source, msg.result.Chunks, msg.result.Upserted, msg.result.Elapsed.Round(time.Millisecond))
		return m, nil

	case errMsg:
		m.busy = false
		m.status = "Error: " + msg.err.Error()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}

		switch msg.String() {
		case "enter":
			if m.busy {
				return m, nil
			}

			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			m.input.SetValue("")
			m.busy = true

			if path, ok := strings.CutPrefix(line, ingestCommand); ok {
				m.status = "Ingesting " + filepath.Base(path) + "..."
				return m, tea.Batch(m.spinner.Tick, m.ingest(strings.TrimSpace(path)))
			}

			m.status = "Thinking..."
			return m, tea.Batch(m.spinner.Tick, m.ask(line))

		case "down":
			if m.answer != nil && len(m.answer.Sources) > 0 {
				m.cursor = (m.cursor + 1) % len(m.answer.Sources)
				m.viewport.SetContent(m.render())
				return m, nil
			}

		case "up":
			if m.answer != nil && len(m.answer.Sources) > 0 {
				m.cursor = (m.cursor - 1 + len(m.answer.Sources)) % len(m.answer.Sources)
				m.viewport.SetContent(m.render())
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := m.service.Ask(m.ctx, question)
		if err != nil {
			return errMsg{err}
		}
		return answerMsg{answer}
	}
}

func (m Model) ingest(path string) tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return errMsg{err}
		}

		result, err := m.service.Ingest(m.ctx, models.Document{
			Filename: filepath.Base(path),
			Data:     data,
		})
		if err != nil {
			return errMsg{err}
		}
		return ingestMsg{result}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := lipgloss.NewStyle().Bold(true).Render("Mini RAG")
	input := queryBoxStyle.Render(m.input.View())

	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	status = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(status)

	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) render() string {
	if m.answer == nil {
		return "No answer yet."
	}

	var sb strings.Builder
	sb.WriteString(answerStyle.Render(m.answer.Text))

	if len(m.answer.Sources) == 0 {
		return sb.String()
	}

	src := m.answer.Sources[m.cursor]
	sb.WriteString("\n\nReranked Sources\n")
	sb.WriteString(sourceTitleStyle.Render(fmt.Sprintf("[%d] %s chunk %d  score=%.3f  (%d/%d, up/down)",
		m.cursor+1, src.Source, src.ChunkID, src.RelevanceScore, m.cursor+1, len(m.answer.Sources))))
	sb.WriteString("\n")
	sb.WriteString(src.Text)
	return sb.String()
}

var (
	resultBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	answerStyle      = lipgloss.NewStyle().Bold(true)
	sourceTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)
