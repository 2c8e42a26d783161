package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-rag/internal/models"
)

type stubService struct {
	asked    []string
	ingested []models.Document
	answer   *models.Answer
	err      error
}

func (s *stubService) Ingest(ctx context.Context, doc models.Document) (*models.IngestResult, error) {
	s.ingested = append(s.ingested, doc)
	if s.err != nil {
		return nil, s.err
	}
	return &models.IngestResult{Source: doc.Filename, Chunks: 3, Upserted: 3}, nil
}

func (s *stubService) Ask(ctx context.Context, question string) (*models.Answer, error) {
	s.asked = append(s.asked, question)
	if s.err != nil {
		return nil, s.err
	}
	return s.answer, nil
}

func sized(t *testing.T, svc *stubService) Model {
	t.Helper()
	m, _ := New(context.Background(), svc).Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return m.(Model)
}

// submit types line, presses enter and feeds back every message the
// resulting command produces except spinner ticks.
func submit(t *testing.T, m Model, line string) Model {
	t.Helper()
	m.input.SetValue(line)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	for _, c := range batch {
		msg := c()
		switch msg.(type) {
		case answerMsg, ingestMsg, errMsg:
			next, _ = m.Update(msg)
			m = next.(Model)
		}
	}
	return m
}

func TestModel_Ask(t *testing.T) {
	svc := &stubService{answer: &models.Answer{
		Text:      "The sky is blue [1].",
		Retrieved: 2,
		Sources: []models.RerankedDocument{
			{Text: "The sky is blue.", Source: "sky.pdf", RelevanceScore: 0.9},
			{Text: "The grass is green.", Source: "sky.pdf", ChunkID: 1, RelevanceScore: 0.2},
		},
	}}
	m := sized(t, svc)

	m = submit(t, m, "What color is the sky?")

	assert.Equal(t, []string{"What color is the sky?"}, svc.asked)
	assert.False(t, m.busy)
	assert.Contains(t, m.status, "from 2 matches")
	assert.Contains(t, m.render(), "The sky is blue [1].")
	assert.Contains(t, m.render(), "[1] sky.pdf chunk 0")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)
	assert.Contains(t, m.render(), "The grass is green.")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 0, m.cursor)
}

func TestModel_NoContext(t *testing.T) {
	svc := &stubService{answer: &models.Answer{Text: "No relevant context found.", NoContext: true}}

	m := submit(t, sized(t, svc), "anything")

	assert.Contains(t, m.status, "Ingest a PDF first")
	assert.Contains(t, m.render(), "No relevant context found.")
}

func TestModel_Ingest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	svc := &stubService{}

	m := submit(t, sized(t, svc), "/ingest "+path)

	require.Len(t, svc.ingested, 1)
	assert.Equal(t, "rules.pdf", svc.ingested[0].Filename)
	assert.Equal(t, "Indexed rules.pdf: 3 chunks, 3 records in 0s.", m.status)
	assert.Empty(t, svc.asked)
}

func TestModel_Errors(t *testing.T) {
	svc := &stubService{err: errors.New("index not found")}

	m := submit(t, sized(t, svc), "question")
	assert.Equal(t, "Error: index not found", m.status)

	m = submit(t, m, "/ingest "+filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Contains(t, m.status, "Error:")
	assert.Empty(t, svc.ingested)
}

func TestModel_EnterIgnoredWhileBusyOrEmpty(t *testing.T) {
	m := sized(t, &stubService{})

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, next.(Model).busy)

	m.busy = true
	m.input.SetValue("question")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestModel_Quit(t *testing.T) {
	m := sized(t, &stubService{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
