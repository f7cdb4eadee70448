package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultChatModel is used when no model is configured.
const DefaultChatModel = openai.GPT4oMini

// ChatClassifier asks a chat model for the label directly.
type ChatClassifier struct {
	client *openai.Client
	model  string
	prompt string
	logger *zap.Logger
}

// NewChatClassifier creates a chat-based classifier. An empty model selects
// DefaultChatModel.
func NewChatClassifier(client *openai.Client, model string, logger *zap.Logger) *ChatClassifier {
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatClassifier{
		client: client,
		model:  model,
		prompt: buildClassifyPrompt(),
		logger: logger,
	}
}

func buildClassifyPrompt() string {
	return fmt.Sprintf(`You are an expert software engineer specializing in bug triaging and classification.
Your task is to classify bug reports into one of the following categories based on their content:
%s
When classifying, consider the main issue described in the bug report.
Respond with only the exact label name from the list above.
If the bug does not clearly fit into any category, classify it as 'Other'.
Do not provide any explanations or additional text, only return the label.`,
		strings.Join(LabelNames(), ", "))
}

// Method identifies this strategy in the output.
func (c *ChatClassifier) Method() string { return "llm" }

// Classify returns the taxonomy label for one bug text. Model answers that
// are not an exact label are salvaged by substring match, then fall back to
// LabelOther.
func (c *ChatClassifier) Classify(ctx context.Context, text string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("classification completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("classification returned no choices")
	}

	raw := strings.Trim(strings.TrimSpace(resp.Choices[0].Message.Content), `"'`)
	label := NormalizeLabel(raw)
	if label != raw {
		c.logger.Debug("salvaged non-exact label", zap.String("raw", raw), zap.String("label", label))
	}
	return label, nil
}
