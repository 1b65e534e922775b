package selfcode

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicGenerator is an optional CodeGenerator backed by the Anthropic
// Messages API. The core pipeline only ever sees it through the
// CodeGenerator interface.
type AnthropicGenerator struct {
	client *sdk.Client
	model  string
}

// NewAnthropicGenerator builds a CodeGenerator from an API key and model
// identifier (e.g. string(sdk.ModelClaudeSonnet4_5_20250929)).
func NewAnthropicGenerator(apiKey, model string) *AnthropicGenerator {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicGenerator{client: &client, model: model}
}

// Generate asks the model for a self-contained function for spec.Description
// and extracts the delimited code block from the response.
func (g *AnthropicGenerator) Generate(ctx context.Context, spec Spec) (string, float64, error) {
	lang := spec.Language
	if lang == "" {
		lang = "python"
	}

	prompt := fmt.Sprintf(`Generate a %s function that accomplishes this goal.

Goal: %s
Context: %s

Requirements:
- Self-contained, stdlib only
- Handle errors gracefully

Respond in EXACTLY this format (no markdown fences):

CODE_START
<your function code here>
CODE_END`, lang, spec.Description, spec.Context)

	msg, err := g.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(g.model),
		MaxTokens: 2048,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", 0, fmt.Errorf("selfcode: anthropic generate: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	code := extractBlock(text.String(), "CODE_START", "CODE_END")
	if code == "" {
		return "", 0, fmt.Errorf("selfcode: anthropic generate: no code block in response")
	}
	return code, 0.8, nil
}

func extractBlock(text, startMarker, endMarker string) string {
	startIdx := strings.Index(text, startMarker)
	if startIdx < 0 {
		return ""
	}
	startIdx += len(startMarker)
	endIdx := strings.Index(text[startIdx:], endMarker)
	if endIdx < 0 {
		return ""
	}
	return strings.TrimSpace(text[startIdx : startIdx+endIdx])
}
