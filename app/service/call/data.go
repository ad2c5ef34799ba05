package call

import (
	"strings"
	"sync"
	"time"
)

// Stage is a discrete phase of the scripted call.
type Stage string

const (
	StageIntro       Stage = "INTRO"
	StagePitch       Stage = "PITCH"
	StageBookMeeting Stage = "BOOK_MEETING"
	StageEnd         Stage = "END"
	StageTerminate   Stage = "TERMINATE"
)

// Intent is the classified meaning of the lead's last utterance.
type Intent string

const (
	IntentPositive    Intent = "POSITIVE"
	IntentNegative    Intent = "NEGATIVE"
	IntentObjection   Intent = "OBJECTION"
	IntentAskMoreInfo Intent = "ASK_MORE_INFO"
	IntentUnclear     Intent = "UNCLEAR"
	// IntentRegret is a last-moment reversal, only meaningful at StageEnd.
	IntentRegret Intent = "REGRET"
)

// ParseIntent maps a model-produced label to an Intent, defaulting to UNCLEAR.
func ParseIntent(s string) Intent {
	switch Intent(strings.ToUpper(strings.TrimSpace(s))) {
	case IntentPositive:
		return IntentPositive
	case IntentNegative:
		return IntentNegative
	case IntentObjection:
		return IntentObjection
	case IntentAskMoreInfo:
		return IntentAskMoreInfo
	case IntentRegret:
		return IntentRegret
	default:
		return IntentUnclear
	}
}

type Lead struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Company  string `json:"company"`
	Industry string `json:"industry,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// TimeSlot is an offered meeting time. Immutable, compared by content.
type TimeSlot struct {
	Date        string `json:"date"`        // YYYY-MM-DD
	Time        string `json:"time"`        // HH:MM
	DayName     string `json:"dayName"`     // "יום שני"
	DisplayText string `json:"displayText"` // "מחר (18/12) בשעה 14:00"
}

type ConversationTurn struct {
	Agent     string    `json:"agent"`
	User      string    `json:"user"`
	Intent    Intent    `json:"intent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the mutable state of one conversation. It is owned by the
// orchestrator: at most one turn mutates it at a time.
type Session struct {
	mu sync.Mutex

	ID             string
	Lead           Lead
	Stage          Stage
	PreviousStage  Stage // zero until the first transition
	RepeatCount    int
	History        []ConversationTurn
	AvailableSlots []TimeSlot
	SelectedSlot   *TimeSlot
	StartTime      time.Time
}

// BeginTurn acquires the session's single-flight guard. It does not block:
// the telephony collaborator already serializes turns, so a concurrent
// caller is a contract violation and gets rejected instead of queued.
func (s *Session) BeginTurn() bool {
	return s.mu.TryLock()
}

func (s *Session) EndTurn() {
	s.mu.Unlock()
}

// HistoryText renders the conversation so far for prompt context.
func (s *Session) HistoryText() string {
	var builder strings.Builder

	for i, turn := range s.History {
		if i > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString("סוכן: " + turn.Agent + "\nלקוח: " + turn.User)
	}

	return builder.String()
}

type MeetingData struct {
	Date            string   `json:"date"`
	Time            string   `json:"time"`
	DurationMin     int      `json:"duration"`
	Attendees       []string `json:"attendees"`
	CalendarEventID string   `json:"calendarEventId,omitempty"`
	MeetingLink     string   `json:"meetingLink,omitempty"`
}

// TurnResult is the outcome of one processed turn.
type TurnResult struct {
	Response     string `json:"response"`
	Intent       Intent `json:"intent"`
	NextStage    Stage  `json:"nextStage"`
	StageChanged bool   `json:"stageChanged"`
}
