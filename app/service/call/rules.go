package call

// Repeat-count ceilings per stage. Counted before the check: repeatCount < N
// permits staying one more turn.
const (
	maxIntroObjections = 1
	maxPitchQuestions  = 5
	maxPitchObjections = 1
	maxBookQuestions   = 3
	maxBookObjections  = 1
)

// NextStage decides the following stage for one turn. Pure and total: every
// stage/intent combination resolves to a stage, unknown ones fall through to
// a safe END so a live call can never hang on an unmapped input.
//
// hasSelectedSlot gates closing out of BOOK_MEETING: a positive answer
// without a concrete slot keeps asking instead of declaring success.
func NextStage(current Stage, intent Intent, repeatCount int, previous Stage, hasSelectedSlot bool) Stage {
	switch current {
	case StageIntro:
		return nextFromIntro(intent, repeatCount)
	case StagePitch:
		return nextFromPitch(intent, repeatCount)
	case StageBookMeeting:
		return nextFromBookMeeting(intent, repeatCount, hasSelectedSlot)
	case StageEnd:
		return nextFromEnd(intent, previous)
	case StageTerminate:
		// Absorbing: a closed session never reopens.
		return StageTerminate
	default:
		return StageEnd
	}
}

func nextFromIntro(intent Intent, repeatCount int) Stage {
	switch intent {
	case IntentPositive, IntentAskMoreInfo:
		return StagePitch
	case IntentObjection, IntentUnclear:
		if repeatCount < maxIntroObjections {
			return StageIntro
		}
		return StageEnd
	case IntentNegative:
		return StageEnd
	default:
		return StageEnd
	}
}

func nextFromPitch(intent Intent, repeatCount int) Stage {
	switch intent {
	case IntentPositive:
		return StageBookMeeting
	case IntentAskMoreInfo:
		if repeatCount < maxPitchQuestions {
			return StagePitch
		}
		return StageEnd
	case IntentObjection, IntentUnclear:
		if repeatCount < maxPitchObjections {
			return StagePitch
		}
		return StageEnd
	case IntentNegative:
		return StageEnd
	default:
		return StageEnd
	}
}

func nextFromBookMeeting(intent Intent, repeatCount int, hasSelectedSlot bool) Stage {
	switch intent {
	case IntentPositive:
		if hasSelectedSlot {
			return StageEnd
		}
		// Agreed in principle but no concrete time yet, keep offering.
		return StageBookMeeting
	case IntentAskMoreInfo, IntentUnclear:
		if repeatCount < maxBookQuestions {
			return StageBookMeeting
		}
		return StageEnd
	case IntentObjection:
		if repeatCount < maxBookObjections {
			return StageBookMeeting
		}
		return StageEnd
	case IntentNegative:
		return StageEnd
	default:
		return StageEnd
	}
}

func nextFromEnd(intent Intent, previous Stage) Stage {
	switch intent {
	case IntentAskMoreInfo:
		// Still has questions, walk back into the pitch.
		return StagePitch
	case IntentRegret:
		if previous == StageBookMeeting {
			return StageBookMeeting
		}
		return StagePitch
	default:
		return StageTerminate
	}
}
