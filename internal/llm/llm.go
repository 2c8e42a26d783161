// Package llm builds grounded prompts and sends them to a chat model.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Generator produces a completion for a prompt. Implementations run with
// temperature 0.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

// BuildPrompt creates a prompt that numbers the contexts [1]..[n] in the
// order given and asks for inline citations against those numbers.
func BuildPrompt(question string, contexts []string) string {
	var promptBuilder strings.Builder

	promptBuilder.WriteString("Use the context below to answer. If not in context, say you don't know.\n")
	promptBuilder.WriteString("Use inline citations like [1], [2].\n\n")

	promptBuilder.WriteString("Context:\n")
	for i, text := range contexts {
		promptBuilder.WriteString(fmt.Sprintf("[%d] %s\n", i+1, text))
	}

	promptBuilder.WriteString("\nQuestion: " + question + "\n")

	return promptBuilder.String()
}
