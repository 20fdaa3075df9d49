package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/helplinehq/supportchat/backend/internal/model/chat"
	"github.com/helplinehq/supportchat/backend/internal/store"
)

const supportSystemPrompt = `You are a friendly support assistant for a product help desk.
Answer concisely, stay on topic, and ask one clarifying question when the
request is ambiguous. If the user asks for a human agent, acknowledge and
say an agent will follow up in this conversation.`

// How many prior turns are replayed to the model per request.
const historyWindow = 20

// LLMResponder generates replies with a chat model composed into an
// eino chain. Recent session history is reconciled from the durable
// stores and replayed so the model keeps conversational context.
type LLMResponder struct {
	chain   compose.Runnable[map[string]any, *schema.Message]
	history *store.Fanout
	logger  zerolog.Logger
}

// NewLLMResponder compiles the prompt/model chain.
func NewLLMResponder(ctx context.Context, chatModel model.ChatModel, history *store.Fanout, logger zerolog.Logger) (*LLMResponder, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chat chain: %w", err)
	}

	return &LLMResponder{chain: runnable, history: history, logger: logger}, nil
}

// Reply invokes the chain with the reconciled recent history.
func (r *LLMResponder) Reply(ctx context.Context, sessionID, content string) (string, error) {
	input := map[string]any{
		"system":  supportSystemPrompt,
		"history": historyMessages(r.history.Reconcile(ctx, sessionID, historyWindow)),
		"query":   content,
	}

	response, err := r.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("run chat chain: %w", err)
	}

	r.logger.Debug().
		Str("session_id", sessionID).
		Int("length", len(response.Content)).
		Msg("generated model reply")
	return response.Content, nil
}

func historyMessages(msgs []chat.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Sender {
		case chat.SenderBot:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}
