package scorer

import (
	"context"

	"google.golang.org/genai"

	"github.com/sells-group/prospect-cli/pkg/anthropic"
	"github.com/sells-group/prospect-cli/pkg/gemini"
)

const gradeToolName = "record_grade"

var gradeProperties = map[string]any{
	"score": map[string]any{
		"type": "string",
		"enum": []string{"A", "B", "C", "D"},
	},
	"score_label":   map[string]any{"type": "string", "description": "Courte qualification"},
	"resume":        map[string]any{"type": "string", "description": "Activité en une phrase"},
	"analyse":       map[string]any{"type": "string", "description": "Analyse M&A en 2 à 3 phrases"},
	"justification": map[string]any{"type": "string", "description": "Critères déterminants"},
}

var gradeRequired = []string{"score", "score_label", "resume", "analyse", "justification"}

// AnthropicCompleter forces a record_grade tool call so the answer arrives
// as structured input. Plain text is kept as a fallback.
type AnthropicCompleter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicCompleter creates an AnthropicCompleter.
func NewAnthropicCompleter(client anthropic.Client, model string, maxTokens int64) *AnthropicCompleter {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicCompleter{client: client, model: model, maxTokens: maxTokens}
}

// Name implements Completer.
func (c *AnthropicCompleter) Name() string { return "anthropic" }

// Complete implements Completer.
func (c *AnthropicCompleter) Complete(ctx context.Context, p Prompt) (Completion, error) {
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.SystemBlock{
			{Text: p.System, CacheControl: &anthropic.CacheControl{TTL: "5m"}},
		},
		Messages: []anthropic.Message{{Role: "user", Content: p.User}},
		Tools: []anthropic.Tool{{
			Name:        gradeToolName,
			Description: "Enregistre la qualification de l'entreprise.",
			Properties:  gradeProperties,
			Required:    gradeRequired,
		}},
		ToolChoice: gradeToolName,
	})
	if err != nil {
		return Completion{}, err
	}
	resp.Usage.LogCost(c.model, "score")

	if in, ok := resp.ToolInput(gradeToolName); ok {
		return Completion{Structured: in}, nil
	}
	return Completion{Text: resp.Text()}, nil
}

// GeminiCompleter asks for application/json output bound to a schema.
type GeminiCompleter struct {
	client    gemini.Client
	model     string
	maxTokens int32
}

// NewGeminiCompleter creates a GeminiCompleter.
func NewGeminiCompleter(client gemini.Client, model string, maxTokens int32) *GeminiCompleter {
	if model == "" {
		model = gemini.DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &GeminiCompleter{client: client, model: model, maxTokens: maxTokens}
}

// Name implements Completer.
func (c *GeminiCompleter) Name() string { return "gemini" }

// Complete implements Completer.
func (c *GeminiCompleter) Complete(ctx context.Context, p Prompt) (Completion, error) {
	resp, err := c.client.GenerateJSON(ctx, gemini.Request{
		Model:           c.model,
		System:          p.System,
		Prompt:          p.User,
		Schema:          gradeSchema(),
		MaxOutputTokens: c.maxTokens,
	})
	if err != nil {
		return Completion{}, err
	}
	return Completion{Text: resp.Text}, nil
}

func gradeSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"score":         {Type: genai.TypeString, Enum: []string{"A", "B", "C", "D"}},
			"score_label":   str("Courte qualification"),
			"resume":        str("Activité en une phrase"),
			"analyse":       str("Analyse M&A en 2 à 3 phrases"),
			"justification": str("Critères déterminants"),
		},
		Required: gradeRequired,
	}
}
