package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiCapability implements Capability using Gemini structured output.
type GeminiCapability struct {
	client *genai.Client
	model  string
}

// NewGeminiCapability creates a Gemini-backed classification capability.
func NewGeminiCapability(ctx context.Context, apiKey string, modelName string) (*GeminiCapability, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiCapability{client: client, model: modelName}, nil
}

type geminiDecision struct {
	CategoryID string  `json:"category_id"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Decide asks the model to pick exactly one of the configured categories
// and parses the structured JSON reply. Any transport or decode failure is
// an invocation failure; policy handling of a weak answer happens in the
// classifier, not here.
func (g *GeminiCapability) Decide(ctx context.Context, content string, choices []Choice) (CapabilityResult, error) {
	prompt := buildDecisionPrompt(content, choices)

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return CapabilityResult{}, err
	}

	text := cleanJSONOutput(resp.Text())
	if text == "" {
		return CapabilityResult{}, fmt.Errorf("empty model response")
	}

	var decision geminiDecision
	if err := json.Unmarshal([]byte(text), &decision); err != nil {
		return CapabilityResult{}, fmt.Errorf("failed to parse model response: %w", err)
	}
	return CapabilityResult{
		CategoryID: decision.CategoryID,
		Confidence: decision.Confidence,
		Rationale:  decision.Rationale,
	}, nil
}

func buildDecisionPrompt(content string, choices []Choice) string {
	var sb strings.Builder
	sb.WriteString("You are a document classifier for a legal drafting system.\n")
	sb.WriteString("Assign the document below to exactly one of the listed categories.\n")
	sb.WriteString("Never invent a category outside the list.\n\nCategories:\n")
	for _, c := range choices {
		fmt.Fprintf(&sb, "- id: %s, name: %s", c.ID, c.Name)
		if len(c.LogicalTypes) > 0 {
			fmt.Fprintf(&sb, ", covers: %s", strings.Join(c.LogicalTypes, ", "))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nRespond with JSON: {\"category_id\": string, \"confidence\": number between 0 and 1, \"rationale\": string}\n")
	sb.WriteString("\nDocument:\n")
	sb.WriteString(content)
	return sb.String()
}

func cleanJSONOutput(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}
