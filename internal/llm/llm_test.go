package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("What color is the sky?", []string{"The sky is blue.", "The grass is green."})

	expected := "Use the context below to answer. If not in context, say you don't know.\n" +
		"Use inline citations like [1], [2].\n\n" +
		"Context:\n" +
		"[1] The sky is blue.\n" +
		"[2] The grass is green.\n" +
		"\nQuestion: What color is the sky?\n"

	assert.Equal(t, expected, prompt)
}

func TestBuildPrompt_NoContexts(t *testing.T) {
	prompt := BuildPrompt("anything?", nil)

	assert.Contains(t, prompt, "Context:\n\nQuestion: anything?")
	assert.NotContains(t, prompt, "[1] ")
}

func TestGeminiLLM_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-goog-api-key"))

		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 0.0, req.GenerationConfig.Temperature)
		if assert.Len(t, req.Contents, 1) && assert.Len(t, req.Contents[0].Parts, 1) {
			assert.Equal(t, "prompt text", req.Contents[0].Parts[0].Text)
		}

		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"The sky is "},{"text":"blue [1]."}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	g, err := NewGeminiLLM(GeminiConfig{APIKey: "key", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := g.Generate(context.Background(), "prompt text")

	require.NoError(t, err)
	assert.Equal(t, "The sky is blue [1].", text)
	assert.Equal(t, "gemini-2.5-flash", g.ModelName())
}

func TestGeminiLLM_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		msg    string
	}{
		{"quota", http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota exceeded"}}`, "quota exceeded"},
		{"blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, "SAFETY"},
		{"empty", http.StatusOK, `{"candidates":[]}`, "no candidates"},
		{"garbage", http.StatusInternalServerError, `oops`, "oops"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			g, err := NewGeminiLLM(GeminiConfig{APIKey: "key", BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = g.Generate(context.Background(), "p")

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}
