package call

import (
	_ "embed"

	"github.com/tmc/langchaingo/prompts"
)

//go:embed intent_prompt.txt
var intentPromptTemplate string

//go:embed slot_prompt.txt
var slotPromptTemplate string

//go:embed stage_intro.txt
var stageIntroTemplate string

//go:embed stage_pitch.txt
var stagePitchTemplate string

//go:embed stage_book_meeting.txt
var stageBookMeetingTemplate string

//go:embed stage_end.txt
var stageEndTemplate string

var stagePrompts = map[Stage]prompts.PromptTemplate{
	StageIntro: prompts.NewPromptTemplate(stageIntroTemplate,
		[]string{"leadName", "company", "industry", "history", "utterance"}),
	StagePitch: prompts.NewPromptTemplate(stagePitchTemplate,
		[]string{"leadName", "company", "industry", "history", "utterance"}),
	StageBookMeeting: prompts.NewPromptTemplate(stageBookMeetingTemplate,
		[]string{"leadName", "company", "industry", "history", "utterance", "availableSlots"}),
	StageEnd: prompts.NewPromptTemplate(stageEndTemplate,
		[]string{"leadName", "company", "history", "utterance", "selectedSlot"}),
}

// stageContext gives the classifier stage-specific disambiguation. It is a
// pure function of the stage; the END wording is what keeps a plain farewell
// from being read as regret.
func stageContext(stage Stage) string {
	switch stage {
	case StageIntro:
		return "הסוכן שאל אם יש ללקוח דקה לשמוע על המוצר."
	case StagePitch:
		return "הסוכן הציג את המוצר ושאל אם הלקוח מעוניין לקבוע פגישה."
	case StageBookMeeting:
		return "הסוכן מנסה לקבוע זמן פגישה עם הלקוח."
	case StageEnd:
		return "השיחה הסתיימה, הסוכן נפרד לשלום. אם הלקוח מגיב בפרידה ('תודה', 'ביי', 'אוקיי') = NEGATIVE. רק חרטה מפורשת ('רגע!', 'חכה!') = REGRET."
	default:
		return ""
	}
}
