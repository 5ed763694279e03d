package devagent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/lucident-ai/adkchat"
)

// EchoResponder repeats the user's message back word by word. Useful for
// exercising the streaming path without any model credentials.
type EchoResponder struct{}

// Respond implements Responder.
func (EchoResponder) Respond(ctx context.Context, history []adkchat.ChatMessage, emit func(string) error) error {
	text := ""
	if len(history) > 0 {
		text = history[len(history)-1].Content
	}
	if err := emit("You said: "); err != nil {
		return err
	}
	for i, word := range strings.Fields(text) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i > 0 {
			word = " " + word
		}
		if err := emit(word); err != nil {
			return err
		}
	}
	return nil
}

// AnthropicResponder generates replies with the Anthropic Messages API.
type AnthropicResponder struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	system    string
}

// NewAnthropicResponder creates a responder using credentials from the
// environment. An empty model selects Claude Sonnet.
func NewAnthropicResponder(model, system string) *AnthropicResponder {
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_0)
	}
	return &AnthropicResponder{
		client:    anthropic.NewClient(),
		model:     anthropic.Model(model),
		maxTokens: 4096,
		system:    system,
	}
}

// Respond implements Responder.
func (r *AnthropicResponder) Respond(ctx context.Context, history []adkchat.ChatMessage, emit func(string) error) error {
	messages := make([]anthropic.MessageParam, 0, len(history))
	for _, msg := range history {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case adkchat.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case adkchat.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	if len(messages) == 0 {
		return errors.New("no sendable messages in history")
	}

	params := anthropic.MessageNewParams{
		Model:     r.model,
		MaxTokens: r.maxTokens,
		Messages:  messages,
	}
	if r.system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: r.system},
		}
	}

	stream := r.client.Messages.NewStreaming(ctx, params)
	for stream.Next() {
		event := stream.Current()
		switch e := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := e.Delta.AsAny().(anthropic.TextDelta); ok {
				if err := emit(delta.Text); err != nil {
					return err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic stream: %w", err)
	}
	return nil
}

// OpenAIResponder generates replies with the OpenAI chat completions API.
type OpenAIResponder struct {
	client *openai.Client
	model  string
	system string
}

// NewOpenAIResponder creates a responder using the given API key. An empty
// model selects GPT-4o.
func NewOpenAIResponder(apiKey, model, system string) *OpenAIResponder {
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIResponder{
		client: openai.NewClient(apiKey),
		model:  model,
		system: system,
	}
}

// Respond implements Responder.
func (r *OpenAIResponder) Respond(ctx context.Context, history []adkchat.ChatMessage, emit func(string) error) error {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if r.system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: r.system,
		})
	}
	for _, msg := range history {
		if msg.Content == "" {
			continue
		}
		role := openai.ChatMessageRoleUser
		if msg.Role == adkchat.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	stream, err := r.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return fmt.Errorf("openai stream: %w", err)
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("openai stream: %w", err)
		}
		if len(response.Choices) == 0 {
			continue
		}
		if delta := response.Choices[0].Delta.Content; delta != "" {
			if err := emit(delta); err != nil {
				return err
			}
		}
	}
}
