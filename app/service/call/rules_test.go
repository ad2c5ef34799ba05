package call

import "testing"

func TestNextStage_Intro(t *testing.T) {
	tests := []struct {
		name   string
		intent Intent
		repeat int
		want   Stage
	}{
		{"positive moves to pitch", IntentPositive, 0, StagePitch},
		{"question moves to pitch", IntentAskMoreInfo, 0, StagePitch},
		{"first objection stays", IntentObjection, 0, StageIntro},
		{"second objection ends", IntentObjection, 1, StageEnd},
		{"first unclear stays", IntentUnclear, 0, StageIntro},
		{"second unclear ends", IntentUnclear, 1, StageEnd},
		{"negative ends immediately", IntentNegative, 0, StageEnd},
		{"regret is meaningless here", IntentRegret, 0, StageEnd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextStage(StageIntro, tt.intent, tt.repeat, "", false)
			if got != tt.want {
				t.Errorf("NextStage(INTRO, %s, %d) = %s, want %s", tt.intent, tt.repeat, got, tt.want)
			}
		})
	}
}

func TestNextStage_Pitch(t *testing.T) {
	tests := []struct {
		name   string
		intent Intent
		repeat int
		want   Stage
	}{
		{"positive moves to booking", IntentPositive, 0, StageBookMeeting},
		{"fourth question stays", IntentAskMoreInfo, 4, StagePitch},
		{"fifth question ends", IntentAskMoreInfo, 5, StageEnd},
		{"first objection stays", IntentObjection, 0, StagePitch},
		{"second objection ends", IntentObjection, 1, StageEnd},
		{"first unclear stays", IntentUnclear, 0, StagePitch},
		{"negative ends immediately", IntentNegative, 3, StageEnd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextStage(StagePitch, tt.intent, tt.repeat, "", false)
			if got != tt.want {
				t.Errorf("NextStage(PITCH, %s, %d) = %s, want %s", tt.intent, tt.repeat, got, tt.want)
			}
		})
	}
}

func TestNextStage_BookMeeting(t *testing.T) {
	tests := []struct {
		name    string
		intent  Intent
		repeat  int
		hasSlot bool
		want    Stage
	}{
		{"positive without slot keeps offering", IntentPositive, 0, false, StageBookMeeting},
		{"positive with slot closes", IntentPositive, 0, true, StageEnd},
		{"positive with slot closes regardless of repeats", IntentPositive, 4, true, StageEnd},
		{"third question stays", IntentAskMoreInfo, 2, false, StageBookMeeting},
		{"fourth question ends", IntentAskMoreInfo, 3, false, StageEnd},
		{"unclear shares the question ceiling", IntentUnclear, 2, false, StageBookMeeting},
		{"unclear past ceiling ends", IntentUnclear, 3, false, StageEnd},
		{"first objection stays", IntentObjection, 0, false, StageBookMeeting},
		{"second objection ends", IntentObjection, 1, false, StageEnd},
		{"negative ends immediately", IntentNegative, 0, true, StageEnd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextStage(StageBookMeeting, tt.intent, tt.repeat, "", tt.hasSlot)
			if got != tt.want {
				t.Errorf("NextStage(BOOK_MEETING, %s, %d, hasSlot=%v) = %s, want %s",
					tt.intent, tt.repeat, tt.hasSlot, got, tt.want)
			}
		})
	}
}

func TestNextStage_End(t *testing.T) {
	tests := []struct {
		name     string
		intent   Intent
		previous Stage
		want     Stage
	}{
		{"question walks back to pitch", IntentAskMoreInfo, StagePitch, StagePitch},
		{"regret returns to booking", IntentRegret, StageBookMeeting, StageBookMeeting},
		{"regret from pitch returns to pitch", IntentRegret, StagePitch, StagePitch},
		{"regret with no previous stage goes to pitch", IntentRegret, "", StagePitch},
		{"positive terminates", IntentPositive, StageBookMeeting, StageTerminate},
		{"negative terminates", IntentNegative, StagePitch, StageTerminate},
		{"objection terminates", IntentObjection, StagePitch, StageTerminate},
		{"unclear terminates", IntentUnclear, StagePitch, StageTerminate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextStage(StageEnd, tt.intent, 0, tt.previous, false)
			if got != tt.want {
				t.Errorf("NextStage(END, %s, prev=%s) = %s, want %s", tt.intent, tt.previous, got, tt.want)
			}
		})
	}
}

func TestNextStage_TerminateIsAbsorbing(t *testing.T) {
	for _, intent := range allIntents() {
		if got := NextStage(StageTerminate, intent, 0, StageEnd, true); got != StageTerminate {
			t.Errorf("NextStage(TERMINATE, %s) = %s, want TERMINATE", intent, got)
		}
	}
}

func TestNextStage_UnknownStageFallsBackToEnd(t *testing.T) {
	if got := NextStage(Stage("WARMUP"), IntentPositive, 0, "", false); got != StageEnd {
		t.Errorf("NextStage(unknown) = %s, want END", got)
	}
}

// Every input combination must resolve to a known stage: a live call can
// never be left without a decision.
func TestNextStage_Totality(t *testing.T) {
	known := map[Stage]bool{
		StageIntro:       true,
		StagePitch:       true,
		StageBookMeeting: true,
		StageEnd:         true,
		StageTerminate:   true,
	}

	stages := append(allStages(), Stage("BOGUS"))
	previous := append(allStages(), "")
	intents := append(allIntents(), Intent("GIBBERISH"))

	for _, stage := range stages {
		for _, intent := range intents {
			for repeat := 0; repeat <= 6; repeat++ {
				for _, prev := range previous {
					for _, hasSlot := range []bool{false, true} {
						got := NextStage(stage, intent, repeat, prev, hasSlot)
						if !known[got] {
							t.Fatalf("NextStage(%s, %s, %d, %s, %v) = %q, not a known stage",
								stage, intent, repeat, prev, hasSlot, got)
						}
					}
				}
			}
		}
	}
}

func allStages() []Stage {
	return []Stage{StageIntro, StagePitch, StageBookMeeting, StageEnd, StageTerminate}
}

func allIntents() []Intent {
	return []Intent{IntentPositive, IntentNegative, IntentObjection, IntentAskMoreInfo, IntentUnclear, IntentRegret}
}
