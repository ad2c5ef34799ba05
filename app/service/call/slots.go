package call

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"coldcall/app/config"

	"github.com/elliotchance/pie/v2"
	"github.com/sashabaranov/go-openai"
)

const (
	maxExtractDuration = 15 * time.Second
	minSlotConfidence  = 0.6
)

// SlotExtractor resolves which offered slot, if any, the lead committed to.
// A nil result means "no specific choice this turn" and is never an error.
type SlotExtractor interface {
	Extract(ctx context.Context, utterance string, slots []TimeSlot) *TimeSlot
}

// MatchSlot is the deterministic selection policy. Match strength, strongest
// first: date+time, full display text, day name+time, day name alone (only if
// that day has exactly one slot), time alone (only if exactly one slot has
// that time). Anything ambiguous resolves to nil rather than guessing.
func MatchSlot(utterance string, slots []TimeSlot) *TimeSlot {
	if len(slots) == 0 {
		return nil
	}

	text := strings.ToLower(utterance)

	for i, slot := range slots {
		if containsDate(text, slot.Date) && containsTime(text, slot.Time) {
			return &slots[i]
		}

		if strings.Contains(text, strings.ToLower(slot.DisplayText)) {
			return &slots[i]
		}

		if strings.Contains(text, strings.ToLower(slot.DayName)) && containsTime(text, slot.Time) {
			return &slots[i]
		}
	}

	for i, slot := range slots {
		if !strings.Contains(text, strings.ToLower(slot.DayName)) {
			continue
		}

		sameDay := pie.Filter(slots, func(s TimeSlot) bool {
			return s.DayName == slot.DayName
		})
		if len(sameDay) == 1 {
			return &slots[i]
		}
	}

	for i, slot := range slots {
		if !containsTime(text, slot.Time) {
			continue
		}

		sameTime := pie.Filter(slots, func(s TimeSlot) bool {
			return s.Time == slot.Time
		})
		if len(sameTime) == 1 {
			return &slots[i]
		}
	}

	return nil
}

// containsTime accepts the literal HH:MM as well as a bare hour reference
// ("ב-10" for a 10:00 slot), but a bare hour followed by different minutes
// ("10:30") does not count.
func containsTime(text, slotTime string) bool {
	if strings.Contains(text, slotTime) {
		return true
	}

	parts := strings.SplitN(slotTime, ":", 2)
	if len(parts) != 2 {
		return false
	}

	hour := strings.TrimPrefix(parts[0], "0")
	pattern := fmt.Sprintf(`(^|\D)%s(:%s)?([^\d:]|$)`, regexp.QuoteMeta(hour), regexp.QuoteMeta(parts[1]))

	matched, err := regexp.MatchString(pattern, text)
	return err == nil && matched
}

// containsDate matches D/M style references for a YYYY-MM-DD slot date. The
// match is anchored on both sides so "2/6" cannot fire on a mention of "12/6".
func containsDate(text, slotDate string) bool {
	parts := strings.Split(slotDate, "-")
	if len(parts) != 3 {
		return false
	}

	day := strings.TrimPrefix(parts[2], "0")
	month := strings.TrimPrefix(parts[1], "0")

	pattern := fmt.Sprintf(`(^|\D)(%s/%s|%s/%s)(\D|$)`,
		regexp.QuoteMeta(day), regexp.QuoteMeta(month),
		regexp.QuoteMeta(parts[2]), regexp.QuoteMeta(parts[1]))

	matched, err := regexp.MatchString(pattern, text)
	return err == nil && matched
}

type slotResponse struct {
	Index      int     `json:"index"` // 1-based, -1 for no selection
	Confidence float64 `json:"confidence"`
}

type LLMSlotExtractor struct {
	client *openai.Client
	model  string
}

func NewLLMSlotExtractor(cfg config.ModelConfig) *LLMSlotExtractor {
	return &LLMSlotExtractor{
		client: createClient(cfg),
		model:  cfg.Model,
	}
}

// Extract asks the model for a machine-checkable slot index. An out-of-range
// index or a low-confidence answer counts as no selection. If the call itself
// fails, the deterministic matcher serves as the backstop.
func (e *LLMSlotExtractor) Extract(ctx context.Context, utterance string, slots []TimeSlot) *TimeSlot {
	if len(slots) == 0 {
		return nil
	}

	templateValues := map[string]string{
		"slots":     formatSlots(slots),
		"utterance": utterance,
	}

	prompt := slotPromptTemplate
	for key, value := range templateValues {
		prompt = strings.ReplaceAll(prompt, "{"+key+"}", value)
	}

	ctx, cancel := context.WithTimeout(ctx, maxExtractDuration)
	defer cancel()

	aiResponse, err := e.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: e.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxCompletionTokens: 100,
			Temperature:         0,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		slog.Warn("Slot extraction failed, falling back to text matching", "error", err)
		return MatchSlot(utterance, slots)
	}

	if len(aiResponse.Choices) == 0 {
		return MatchSlot(utterance, slots)
	}

	var response slotResponse
	if err = json.Unmarshal([]byte(renderJSONBlock(aiResponse.Choices[0].Message.Content)), &response); err != nil {
		slog.Warn("Slot extraction returned malformed JSON, falling back to text matching", "error", err)
		return MatchSlot(utterance, slots)
	}

	if response.Index < 1 || response.Index > len(slots) {
		return nil
	}

	if response.Confidence < minSlotConfidence {
		slog.Debug("Slot extraction below confidence threshold",
			"index", response.Index,
			"confidence", response.Confidence,
		)
		return nil
	}

	return &slots[response.Index-1]
}
