package orchestrator

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/store"
)

// DefaultPersona is used when no persona is configured.
const DefaultPersona = "assistant"

// personas maps a persona name to its system prompt.
var personas = map[string]string{
	"assistant": `You are a helpful assistant that answers questions about the user's documents.
Answer from the context excerpts when they are relevant and name the source you used.
If the excerpts do not contain the answer, say that you do not know rather than guessing.
Keep answers short and plain.`,

	"srd": `You are a rules helper for a tabletop role-playing game.
Answer strictly from the rules excerpts provided and cite the source of every rule you rely on.
When the excerpts do not cover the question, say so and suggest what the player could look up.
Do not invent rules, numbers or spell effects.`,

	"rogerian": `You are a Rogerian psychotherapist in the manner of ELIZA.
Reflect what the person says back to them as gentle open questions.
Stay warm and non-directive, keep replies to two or three sentences and never diagnose or give medical advice.`,
}

// Personas returns the known persona names in sorted order.
func Personas() []string {
	names := make([]string, 0, len(personas))
	for name := range personas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SystemPrompt returns the system prompt of persona.
func SystemPrompt(persona string) (string, error) {
	if persona == "" {
		persona = DefaultPersona
	}
	p, ok := personas[persona]
	if !ok {
		return "", fmt.Errorf("orchestrator: unknown persona %q (known: %s)", persona, strings.Join(Personas(), ", "))
	}
	return p, nil
}

// questionTemplate renders retrieved context and the question into the final
// user message.
var questionTemplate = template.Must(template.New("question").Parse(
	`Use the following context to answer the question.

Context:
{{- range .Context}}
[{{.Chunk.Source}} #{{.Chunk.Seq}}]
{{.Chunk.Text}}
{{- else}}
(no matching documents)
{{- end}}

Question: {{.Question}}`))

// Prompt is the input of a single generation.
type Prompt struct {
	// System is the persona system prompt.
	System string
	// Context holds the retrieved chunks, best first.
	Context []rag.Result
	// History is the conversation window, oldest first.
	History []store.Turn
	// Question is the user message.
	Question string
	// Retrieval reports whether retrieval ran. Without it the question is
	// sent as is.
	Retrieval bool
}

// Messages assembles p into chat messages: system prompt, history, then the
// templated question. The output depends only on p.
func (p Prompt) Messages() ([]*schema.Message, error) {
	question, err := p.render()
	if err != nil {
		return nil, err
	}
	msgs := make([]*schema.Message, 0, len(p.History)+2)
	msgs = append(msgs, schema.SystemMessage(p.System))
	msgs = append(msgs, historyMessages(p.History)...)
	msgs = append(msgs, schema.UserMessage(question))
	return msgs, nil
}

func (p Prompt) render() (string, error) {
	if !p.Retrieval {
		return p.Question, nil
	}
	var buf bytes.Buffer
	if err := questionTemplate.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("orchestrator: render prompt: %w", err)
	}
	return buf.String(), nil
}

func historyMessages(turns []store.Turn) []*schema.Message {
	out := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case store.RoleUser:
			out = append(out, schema.UserMessage(t.Content))
		case store.RoleAssistant:
			out = append(out, schema.AssistantMessage(t.Content, nil))
		}
	}
	return out
}
