package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

type vertex struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	name     string
	maxChars int
	logger   *slog.Logger
}

func newVertex(ctx context.Context, cfg *Config, logger *slog.Logger) (*vertex, error) {
	client, err := genai.NewClient(ctx, cfg.Vertex.Project, cfg.Vertex.Region)
	if err != nil {
		return nil, fmt.Errorf("create vertex client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
		Temperature:      genai.Ptr(float32(cfg.TemperatureValue())),
	}

	return &vertex{
		client:   client,
		model:    model,
		name:     cfg.Model,
		maxChars: cfg.MaxTextChars,
		logger:   logger,
	}, nil
}

func responseSchema() *genai.Schema {
	list := &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary":          {Type: genai.TypeString},
			"key_topics":       list,
			"sentiment":        {Type: genai.TypeString, Enum: Sentiments},
			"actionable_items": list,
		},
		Required: []string{"summary", "key_topics", "sentiment", "actionable_items"},
	}
}

func (v *vertex) Analyze(ctx context.Context, text string) (Result, error) {
	resp, err := v.model.GenerateContent(ctx, genai.Text(BuildPrompt(text, v.maxChars)))
	if err != nil {
		return Result{}, fmt.Errorf("vertex generate content: %w", err)
	}

	content := responseText(resp)
	result, err := Normalize(content)
	if err != nil {
		return Result{}, err
	}

	v.logger.Debug("analysis completed", "model", v.name, "topics", len(result.Topics))
	return result, nil
}

func (v *vertex) Close() error {
	return v.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}
