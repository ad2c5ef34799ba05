package call

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"coldcall/app/config"

	"github.com/sashabaranov/go-openai"
)

const maxClassifyDuration = 15 * time.Second

// IntentClassifier turns one utterance into a categorical intent.
// Implementations must not fail: anything unreadable degrades to UNCLEAR.
type IntentClassifier interface {
	Classify(ctx context.Context, utterance string, stage Stage, historyText string) Intent
}

type intentResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type LLMIntentClassifier struct {
	client *openai.Client
	model  string
}

func NewLLMIntentClassifier(cfg config.ModelConfig) *LLMIntentClassifier {
	return &LLMIntentClassifier{
		client: createClient(cfg),
		model:  cfg.Model,
	}
}

// Classify is fail-open: a timeout or malformed completion yields UNCLEAR and
// the turn proceeds, it never surfaces an error into a live conversation.
func (c *LLMIntentClassifier) Classify(ctx context.Context, utterance string, stage Stage, historyText string) Intent {
	templateValues := map[string]string{
		"stage":         string(stage),
		"stage_context": stageContext(stage),
		"history":       orDefault(historyText, emptyHistoryText),
		"utterance":     utterance,
	}

	prompt := intentPromptTemplate
	for key, value := range templateValues {
		prompt = strings.ReplaceAll(prompt, "{"+key+"}", value)
	}

	ctx, cancel := context.WithTimeout(ctx, maxClassifyDuration)
	defer cancel()

	aiResponse, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxCompletionTokens: 300,
			Temperature:         0,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		slog.Warn("Intent classification failed", "error", err)
		return IntentUnclear
	}

	if len(aiResponse.Choices) == 0 {
		slog.Warn("Intent classification returned no choices")
		return IntentUnclear
	}

	var response intentResponse
	if err = json.Unmarshal([]byte(renderJSONBlock(aiResponse.Choices[0].Message.Content)), &response); err != nil {
		slog.Warn("Intent classification returned malformed JSON", "error", err)
		return IntentUnclear
	}

	intent := ParseIntent(response.Intent)
	if intent == IntentRegret && stage != StageEnd {
		// Regret only exists as a last-second reversal at END.
		intent = IntentUnclear
	}

	slog.Info("Classified intent",
		"intent", intent,
		"confidence", response.Confidence,
		"reasoning", response.Reasoning,
	)

	return intent
}
