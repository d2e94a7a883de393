package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/taskmill/mill/internal/models"
)

// Client wraps the Anthropic API for task categorization. It is only
// consulted when label mappings fail to resolve a category.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

const categorizeSystem = `You classify software issues into exactly one category.
Answer with a single word, one of: bug, feature, refactor, docs, test, chore.
No punctuation, no explanation.`

// Categorize asks the model for the category of an issue. The body is
// truncated so a pathological issue cannot blow the prompt budget.
func (c *Client) Categorize(title, body string) (models.Category, error) {
	if len(body) > 2000 {
		body = body[:2000]
	}
	user := fmt.Sprintf("Title: %s\n\nBody:\n%s", title, body)

	msg, err := c.api.Messages.New(context.Background(), anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 8,
		System: []anthropic.TextBlockParam{
			{Text: categorizeSystem},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	return ParseCategory(text)
}

// ParseCategory normalizes a model answer into a known category.
func ParseCategory(text string) (models.Category, error) {
	answer := strings.ToLower(strings.TrimSpace(text))
	answer = strings.Trim(answer, ".\"'` ")
	if !models.ValidCategory(answer) {
		return "", fmt.Errorf("unrecognized category answer %q", text)
	}
	return models.Category(answer), nil
}
