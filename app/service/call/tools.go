package call

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/tools"
)

type agentTool struct {
	name        string
	description string
	parameters  json.RawMessage
	call        func(ctx context.Context, input string) (string, error)
}

func (t *agentTool) Name() string {
	return t.name
}

func (t *agentTool) Description() string {
	return t.description
}

func (t *agentTool) Call(ctx context.Context, input string) (string, error) {
	return t.call(ctx, input)
}

// openaiTools adapts the tool set to chat-completion tool definitions.
func openaiTools(ts []tools.Tool) []openai.Tool {
	result := make([]openai.Tool, 0, len(ts))

	for _, t := range ts {
		at, ok := t.(*agentTool)
		if !ok {
			continue
		}

		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        at.name,
				Description: at.description,
				Parameters:  at.parameters,
			},
		})
	}

	return result
}

type knowledgeTopic struct {
	keywords []string
	answer   string
}

var productKnowledge = []knowledgeTopic{
	{
		keywords: []string{"pricing", "מחיר", "עולה", "תמחור", "עלות"},
		answer:   "Alta מציעה מחירים גמישים לפי גודל החברה. מתחילים מ-500 דולר לחודש לצוותים קטנים.",
	},
	{
		keywords: []string{"integration", "אינטגרציה", "חיבור", "crm", "salesforce", "hubspot"},
		answer:   "Alta משתלבת עם Salesforce, HubSpot, Pipedrive, Monday.com ועוד. ההתקנה לוקחת פחות משעה.",
	},
	{
		keywords: []string{"features", "פיצ'רים", "יכולות", "מה המערכת", "אוטומציה"},
		answer:   "אוטומציה של עדכוני CRM, סיווג וניקוד ליידים אוטומטי, מעקב ותזמון חכם, דוחות וניתוחים.",
	},
	{
		keywords: []string{"competitors", "מתחרים", "הבדל", "למה דווקא"},
		answer:   "בניגוד לפתרונות אחרים, Alta מותאמת לשוק הישראלי ומשתלבת עם תהליכים מקומיים.",
	},
	{
		keywords: []string{"setup", "התקנה", "הטמעה", "להתחיל"},
		answer:   "ההתקנה פשוטה: חיבור ל-CRM, הגדרת כללים בסיסיים, והמערכת מתחילה לעבוד. יש תמיכה מלאה בעברית.",
	},
}

func newKnowledgeBaseTool() tools.Tool {
	return &agentTool{
		name:        "knowledge_base",
		description: "קבל מידע על Alta - תמחור, אינטגרציות, פיצ'רים, והשוואה למתחרים",
		parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"question": {"type": "string", "description": "השאלה שצריך לענות עליה"}
			},
			"required": ["question"]
		}`),
		call: func(_ context.Context, input string) (string, error) {
			var args struct {
				Question string `json:"question"`
			}
			if err := json.Unmarshal([]byte(input), &args); err != nil {
				args.Question = input
			}

			question := strings.ToLower(args.Question)
			for _, topic := range productKnowledge {
				for _, keyword := range topic.keywords {
					if strings.Contains(question, keyword) {
						return topic.answer, nil
					}
				}
			}

			return "אין לי מידע ספציפי על זה כרגע. אשמח לקבוע פגישה עם המומחים שלנו שיוכלו לענות על כל שאלה.", nil
		},
	}
}

// newCalendarTool lets the reply model re-check what was offered to the
// current lead; it never books. Booking happens after the call, outside the
// conversation core.
func newCalendarTool(formattedSlots string) tools.Tool {
	return &agentTool{
		name:        "check_calendar",
		description: "בדוק אילו מועדי פגישה פנויים הוצעו ללקוח",
		parameters: json.RawMessage(`{
			"type": "object",
			"properties": {}
		}`),
		call: func(_ context.Context, _ string) (string, error) {
			if formattedSlots == "" || formattedSlots == noSlotsText {
				return "אין מועדים פנויים", nil
			}

			return formattedSlots, nil
		},
	}
}
