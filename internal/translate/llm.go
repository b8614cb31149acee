package translate

import (
	"context"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// LLMBackend translates via a non-streaming OpenAI chat-completion
// prompt.
type LLMBackend struct {
	client oai.Client
	model  string
}

// NewLLMBackend constructs a client against apiKey, using model for every
// translation request.
func NewLLMBackend(apiKey, model string) (*LLMBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("translate/llm: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("translate/llm: model must not be empty")
	}
	client := oai.NewClient(option.WithAPIKey(apiKey))
	return &LLMBackend{client: client, model: model}, nil
}

func (b *LLMBackend) Name() string { return "llm" }

func (b *LLMBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	prompt := fmt.Sprintf(
		"Translate the following text from %s to %s. Reply with only the translated text, no quotes or commentary.\n\n%s",
		sourceLang, targetLang, text,
	)

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(b.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.UserMessage(prompt),
		},
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("translate/llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("translate/llm: empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}
