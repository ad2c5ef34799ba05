package call

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"coldcall/app/config"

	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/tools"
)

const (
	maxReplyDuration = 30 * time.Second
	maxToolRounds    = 3
	maxThreadLength  = 40
)

// ReplyVars are the template variables a stage prompt may consume.
type ReplyVars struct {
	LeadName       string
	Company        string
	Industry       string
	History        string
	Utterance      string
	AvailableSlots string
	SelectedSlot   string
}

// ResponseGenerator produces the agent's next line. The thread identified by
// sessionID keeps conversational continuity across turns.
type ResponseGenerator interface {
	Generate(ctx context.Context, sessionID string, stage Stage, vars ReplyVars) (string, error)
}

type ReplyAgent struct {
	client    *openai.Client
	model     string
	knowledge tools.Tool

	mu      sync.Mutex
	threads map[string][]openai.ChatCompletionMessage
}

func NewReplyAgent(cfg config.ModelConfig) *ReplyAgent {
	return &ReplyAgent{
		client:    createClient(cfg),
		model:     cfg.Model,
		knowledge: newKnowledgeBaseTool(),
		threads:   make(map[string][]openai.ChatCompletionMessage),
	}
}

func (a *ReplyAgent) Generate(ctx context.Context, sessionID string, stage Stage, vars ReplyVars) (string, error) {
	template, ok := stagePrompts[stage]
	if !ok {
		return "", fmt.Errorf("no prompt template for stage %s", stage)
	}

	prompt, err := template.Format(map[string]any{
		"leadName":       vars.LeadName,
		"company":        vars.Company,
		"industry":       orDefault(vars.Industry, "טכנולוגיה"),
		"history":        orDefault(vars.History, emptyHistoryText),
		"utterance":      vars.Utterance,
		"availableSlots": orDefault(vars.AvailableSlots, noSlotsText),
		"selectedSlot":   orDefault(vars.SelectedSlot, noSelectedSlotText),
	})
	if err != nil {
		return "", fmt.Errorf("failed to format stage prompt: %w", err)
	}

	// The calendar tool is scoped per call: it answers with what was offered
	// to this lead, nothing else.
	callTools := []tools.Tool{a.knowledge, newCalendarTool(vars.AvailableSlots)}

	a.mu.Lock()
	messages := append(a.threads[sessionID], openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, maxReplyDuration)
	defer cancel()

	var reply string

	for round := 0; ; round++ {
		aiResponse, err := a.client.CreateChatCompletion(
			ctx,
			openai.ChatCompletionRequest{
				Model:               a.model,
				Messages:            messages,
				MaxCompletionTokens: 500,
				Temperature:         0.3,
				Tools:               openaiTools(callTools),
			},
		)
		if err != nil {
			return "", fmt.Errorf("failed to create chat completion: %w", err)
		}

		if len(aiResponse.Choices) == 0 {
			return "", fmt.Errorf("no chat completion found")
		}

		message := aiResponse.Choices[0].Message
		messages = append(messages, message)

		if len(message.ToolCalls) == 0 || round >= maxToolRounds {
			reply = message.Content
			break
		}

		for _, toolCall := range message.ToolCalls {
			output, err := runTool(ctx, callTools, toolCall.Function.Name, toolCall.Function.Arguments)
			if err != nil {
				output = "tool error: " + err.Error()
			}

			slog.Info("Tool invoked",
				"tool", toolCall.Function.Name,
				"args", toolCall.Function.Arguments,
			)

			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: toolCall.ID,
				Content:    output,
			})
		}
	}

	messages = trimThread(messages)

	a.mu.Lock()
	a.threads[sessionID] = messages
	a.mu.Unlock()

	return reply, nil
}

// trimThread caps the thread, cutting only at a user message: a cut between an
// assistant tool_calls message and its tool replies leaves a thread the API
// rejects on the next turn.
func trimThread(messages []openai.ChatCompletionMessage) []openai.ChatCompletionMessage {
	if len(messages) <= maxThreadLength {
		return messages
	}

	start := len(messages) - maxThreadLength
	for start < len(messages) && messages[start].Role != openai.ChatMessageRoleUser {
		start++
	}

	return messages[start:]
}

func runTool(ctx context.Context, ts []tools.Tool, name, arguments string) (string, error) {
	for _, t := range ts {
		if t.Name() == name {
			return t.Call(ctx, arguments)
		}
	}

	return "", fmt.Errorf("unknown tool %q", name)
}

// Forget drops the thread for a finished session.
func (a *ReplyAgent) Forget(sessionID string) {
	a.mu.Lock()
	delete(a.threads, sessionID)
	a.mu.Unlock()
}
