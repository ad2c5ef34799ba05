package call

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"coldcall/app/config"

	"github.com/sashabaranov/go-openai"
)

const (
	noSlotsText        = "לא זמין"
	noSelectedSlotText = "לא נקבעה פגישה"
	emptyHistoryText   = "תחילת שיחה"
)

func createClient(cfg config.ModelConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.Token)

	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: 30 * time.Second,
	}

	return openai.NewClientWithConfig(clientConfig)
}

// renderJSONBlock strips the code fences some models wrap JSON output in.
func renderJSONBlock(raw string) string {
	result := strings.Trim(raw, "`")
	result = strings.TrimSpace(result)
	result = strings.TrimPrefix(result, "json")

	return strings.TrimSpace(result)
}

func formatSlots(slots []TimeSlot) string {
	if len(slots) == 0 {
		return noSlotsText
	}

	var builder strings.Builder

	for i, slot := range slots {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(fmt.Sprintf("%d. %s", i+1, slot.DisplayText))
	}

	return builder.String()
}

func formatSelectedSlot(slot *TimeSlot) string {
	if slot == nil {
		return noSelectedSlotText
	}

	return slot.DisplayText
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}

	return s
}
