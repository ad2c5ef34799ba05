package call

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"coldcall/app/config"

	"github.com/samber/do"
	"github.com/samber/oops"
)

var (
	// ErrTurnInProgress means the caller violated the one-turn-per-session
	// contract; the offending turn is rejected, not queued.
	ErrTurnInProgress = errors.New("turn already in progress for this session")
	// ErrSessionClosed means the session reached TERMINATE earlier.
	ErrSessionClosed = errors.New("session is terminated")
)

// Service orchestrates one conversation turn: classify the utterance, resolve
// a slot choice when booking, decide the next stage, generate the reply.
type Service struct {
	cfg        *config.Config
	classifier IntentClassifier
	slots      SlotExtractor
	replier    ResponseGenerator
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Service{
		cfg:        cfg,
		classifier: NewLLMIntentClassifier(cfg.OpenAI.Classifier),
		slots:      NewLLMSlotExtractor(cfg.OpenAI.Classifier),
		replier:    NewReplyAgent(cfg.OpenAI.Reply),
	}, nil
}

// ProcessTurn runs one full turn. Ordering is load-bearing: slot extraction
// must land in session.SelectedSlot before the stage decision, because the
// BOOK_MEETING exit rule reads it for this turn's input. History is appended
// only once a reply exists: never on a TERMINATE short-circuit, never after
// a generation failure.
func (s *Service) ProcessTurn(ctx context.Context, sess *Session, utterance string) (*TurnResult, error) {
	if !sess.BeginTurn() {
		return nil, ErrTurnInProgress
	}
	defer sess.EndTurn()

	if sess.Stage == StageTerminate {
		return nil, ErrSessionClosed
	}

	start := time.Now()
	historyText := sess.HistoryText()

	intent := s.classifier.Classify(ctx, utterance, sess.Stage, historyText)

	if sess.Stage == StageBookMeeting {
		if slot := s.slots.Extract(ctx, utterance, sess.AvailableSlots); slot != nil {
			sess.SelectedSlot = slot
			slog.Info("Slot selected", "session", sess.ID, "slot", slot.DisplayText)
		}
	}

	current := sess.Stage
	next := NextStage(current, intent, sess.RepeatCount, sess.PreviousStage, sess.SelectedSlot != nil)
	stageChanged := next != current

	if stageChanged {
		sess.PreviousStage = current
		sess.RepeatCount = 0
		sess.Stage = next
	} else {
		sess.RepeatCount++
	}

	slog.Info("Stage transition",
		"session", sess.ID,
		"from", current,
		"to", next,
		"intent", intent,
		"repeat_count", sess.RepeatCount,
	)

	if next == StageTerminate {
		// The call is over, nothing left to say.
		return &TurnResult{
			Intent:       intent,
			NextStage:    next,
			StageChanged: stageChanged,
		}, nil
	}

	reply, err := s.replier.Generate(ctx, sess.ID, sess.Stage, s.buildReplyVars(sess, historyText, utterance))
	if err != nil {
		return nil, oops.With("session", sess.ID).Wrapf(err, "failed to generate reply")
	}

	sess.History = append(sess.History, ConversationTurn{
		Agent:     reply,
		User:      utterance,
		Intent:    intent,
		Timestamp: time.Now(),
	})

	slog.Debug("Processed turn",
		"session", sess.ID,
		"duration", time.Since(start),
	)

	return &TurnResult{
		Response:     reply,
		Intent:       intent,
		NextStage:    next,
		StageChanged: stageChanged,
	}, nil
}

// StartConversation produces the opening line and records it as the first
// history entry.
func (s *Service) StartConversation(ctx context.Context, sess *Session) (string, error) {
	if !sess.BeginTurn() {
		return "", ErrTurnInProgress
	}
	defer sess.EndTurn()

	if sess.Stage == StageTerminate {
		return "", ErrSessionClosed
	}

	reply, err := s.replier.Generate(ctx, sess.ID, StageIntro, s.buildReplyVars(sess, "", "[התחלת שיחה - הצג את עצמך]"))
	if err != nil {
		return "", oops.With("session", sess.ID).Wrapf(err, "failed to generate opening line")
	}

	sess.History = append(sess.History, ConversationTurn{
		Agent:     reply,
		User:      "[Call connected]",
		Timestamp: time.Now(),
	})

	return reply, nil
}

func (s *Service) buildReplyVars(sess *Session, historyText, utterance string) ReplyVars {
	vars := ReplyVars{
		LeadName:     sess.Lead.Name,
		Company:      sess.Lead.Company,
		Industry:     sess.Lead.Industry,
		History:      historyText,
		Utterance:    utterance,
		SelectedSlot: formatSelectedSlot(sess.SelectedSlot),
	}

	if sess.Stage == StageBookMeeting {
		vars.AvailableSlots = formatSlots(sess.AvailableSlots)
	}

	return vars
}

// Forget releases per-session generator state once a call is finished.
func (s *Service) Forget(sessionID string) {
	if agent, ok := s.replier.(*ReplyAgent); ok {
		agent.Forget(sessionID)
	}
}
