package call

import (
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestTrimThread(t *testing.T) {
	turn := func(withTools bool) []openai.ChatCompletionMessage {
		msgs := []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "prompt"},
		}
		if withTools {
			msgs = append(msgs,
				openai.ChatCompletionMessage{
					Role:      openai.ChatMessageRoleAssistant,
					ToolCalls: []openai.ToolCall{{ID: "call_1"}},
				},
				openai.ChatCompletionMessage{Role: openai.ChatMessageRoleTool, ToolCallID: "call_1", Content: "output"},
			)
		}
		return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "reply"})
	}

	var thread []openai.ChatCompletionMessage
	for i := 0; i < 15; i++ {
		thread = append(thread, turn(true)...)
	}

	trimmed := trimThread(thread)

	if len(trimmed) > maxThreadLength {
		t.Fatalf("trimmed length = %d, want at most %d", len(trimmed), maxThreadLength)
	}
	if trimmed[0].Role != openai.ChatMessageRoleUser {
		t.Errorf("trimmed thread starts with %s, want a user message", trimmed[0].Role)
	}

	// A tool reply must always be preceded by its assistant tool_calls message.
	for i, msg := range trimmed {
		if msg.Role != openai.ChatMessageRoleTool {
			continue
		}
		if i == 0 || len(trimmed[i-1].ToolCalls) == 0 && trimmed[i-1].Role != openai.ChatMessageRoleTool {
			t.Fatalf("orphaned tool message at index %d", i)
		}
	}
}

func TestTrimThread_ShortThreadUntouched(t *testing.T) {
	thread := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "prompt"},
		{Role: openai.ChatMessageRoleAssistant, Content: "reply"},
	}

	trimmed := trimThread(thread)
	if len(trimmed) != 2 {
		t.Errorf("trimmed length = %d, want 2", len(trimmed))
	}
}
