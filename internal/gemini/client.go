package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/indioreservas/indiobot/internal/chat"
)

// DefaultModel tracks the latest flash-tier model; pinned versions rot as
// Google retires them.
const DefaultModel = "gemini-flash-latest"

// Config holds the settings for the Gemini client.
type Config struct {
	APIKey       string
	Model        string
	SystemPrompt string
}

// Validate reports whether the configuration can produce a working client.
// A placeholder key left over from a template .env file counts as missing.
func (c Config) Validate() error {
	if c.APIKey == "" || c.APIKey == "YOUR_API_KEY" {
		return fmt.Errorf("gemini api key is not configured")
	}
	return nil
}

// Client calls the Gemini API. It implements chat.ModelClient.
type Client struct {
	client       *genai.Client
	model        string
	systemPrompt string
}

var _ chat.ModelClient = (*Client)(nil)

// NewClient creates a Gemini client from the given configuration.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{
		client:       client,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
	}, nil
}

// Generate sends one message with the caller-supplied history and returns
// the model's raw text output. Non-text parts in the response are ignored.
func (c *Client) Generate(ctx context.Context, history []chat.Turn, message string) (string, error) {
	config := &genai.GenerateContentConfig{}
	if c.systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(c.systemPrompt, genai.RoleUser)
	}

	session, err := c.client.Chats.Create(ctx, c.model, config, toContents(history))
	if err != nil {
		return "", fmt.Errorf("failed to start chat session: %w", err)
	}

	resp, err := session.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return textFromResponse(resp), nil
}

// ModelInfo describes one available model, for diagnostics.
type ModelInfo struct {
	Name        string
	DisplayName string
	Description string
}

// ListModels returns the models that support content generation.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var models []ModelInfo
	for model, err := range c.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("failed to list models: %w", err)
		}
		if !supportsGeneration(model) {
			continue
		}
		models = append(models, ModelInfo{
			Name:        model.Name,
			DisplayName: model.DisplayName,
			Description: model.Description,
		})
	}
	return models, nil
}

func supportsGeneration(model *genai.Model) bool {
	for _, action := range model.SupportedActions {
		if action == "generateContent" {
			return true
		}
	}
	return false
}

// toContents converts caller-supplied history turns to genai contents.
// Anything that is not a model turn is attributed to the user.
func toContents(history []chat.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		var role genai.Role = genai.RoleUser
		if turn.Role == chat.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	return contents
}

// textFromResponse extracts the text content of a response, skipping any
// non-text parts the model may interleave.
func textFromResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
