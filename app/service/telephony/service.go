package telephony

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"coldcall/app/client/calendar"
	"coldcall/app/client/twilio"
	"coldcall/app/client/voice"
	"coldcall/app/config"
	"coldcall/app/service/call"
	"coldcall/app/service/session"
	"coldcall/app/util/mylog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/do"
)

var _ do.Shutdownable = (*Service)(nil)

// Collaborator seams. The concrete clients satisfy these; handlers only see
// the operations they need.
type turnProcessor interface {
	StartConversation(ctx context.Context, sess *call.Session) (string, error)
	ProcessTurn(ctx context.Context, sess *call.Session, utterance string) (*call.TurnResult, error)
	Forget(sessionID string)
}

type calendarClient interface {
	GetAvailableSlots(daysAhead, count int) []call.TimeSlot
	BookMeeting(ctx context.Context, slot call.TimeSlot, attendees []string) (*calendar.Booking, error)
	SendInvite(ctx context.Context, recipient string, slot call.TimeSlot, meetingLink string) error
}

type voiceClient interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type callDialer interface {
	MakeOutboundCall(lead call.Lead, serverURL string) (string, error)
	Hangup(callSID string) error
}

// Service owns the HTTP surface: the call trigger API, the TwiML endpoint,
// the Twilio media-stream websocket and the text conversation tester.
type Service struct {
	cfg         *config.Config
	app         *fiber.App
	callSvc     turnProcessor
	sessions    *session.Service
	calendarCli calendarClient
	voiceCli    voiceClient
	twilioCli   callDialer
}

func New(di *do.Injector) (*Service, error) {
	s := &Service{
		cfg:         do.MustInvoke[*config.Config](di),
		callSvc:     do.MustInvoke[*call.Service](di),
		sessions:    do.MustInvoke[*session.Service](di),
		calendarCli: do.MustInvoke[*calendar.Service](di),
		voiceCli:    do.MustInvoke[*voice.Client](di),
		twilioCli:   do.MustInvoke[*twilio.Client](di),
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Post("/api/call", s.handleTriggerCall)
	app.Post("/twiml", s.handleTwiML)
	app.Post("/call-status", s.handleCallStatus)
	app.Get("/media-stream", websocket.New(s.handleMediaStream))

	app.Post("/api/text/start", s.handleTextStart)
	app.Post("/api/text/turn", s.handleTextTurn)

	s.app = app

	return s, nil
}

func (s *Service) Run(_ context.Context) error {
	return s.app.Listen(fmt.Sprintf(":%d", s.cfg.Server.Port))
}

func (s *Service) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Service) handleTriggerCall(c *fiber.Ctx) error {
	var lead call.Lead
	if err := c.BodyParser(&lead); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid lead payload")
	}
	if lead.Phone == "" || lead.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "lead name and phone are required")
	}

	// Slots are pre-fetched here, before the call, so no calendar latency
	// ever lands inside a live turn.
	slots := s.calendarCli.GetAvailableSlots(s.cfg.Calendar.DaysAhead, s.cfg.Calendar.SlotsCount)
	sess := s.sessions.Create(lead, slots)

	callSID, err := s.twilioCli.MakeOutboundCall(lead, s.cfg.Server.PublicURL)
	if err != nil {
		s.sessions.Remove(sess.ID)
		slog.Error("Failed to initiate call", "lead", lead.Name, "error", err)
		return fiber.NewError(fiber.StatusBadGateway, "failed to initiate call")
	}

	s.sessions.Bind(callSID, sess.ID)

	return c.JSON(fiber.Map{
		"success":   true,
		"callSid":   callSID,
		"sessionId": sess.ID,
	})
}

func (s *Service) handleTwiML(c *fiber.Ctx) error {
	callSID := c.FormValue("CallSid")

	sess, err := s.sessions.Resolve(callSID)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "unknown call")
	}

	streamURL := websocketURL(s.cfg.Server.PublicURL) + "/media-stream"

	twiml := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Connect>
    <Stream url="%s">
      <Parameter name="sessionId" value="%s"/>
    </Stream>
  </Connect>
</Response>`, streamURL, sess.ID)

	c.Set(fiber.HeaderContentType, "text/xml")

	return c.SendString(twiml)
}

func (s *Service) handleCallStatus(c *fiber.Ctx) error {
	slog.Info("Call status update",
		"call_sid", c.FormValue("CallSid"),
		"status", c.FormValue("CallStatus"),
	)

	return c.SendStatus(fiber.StatusOK)
}

func websocketURL(publicURL string) string {
	url := strings.TrimSuffix(publicURL, "/")
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")

	return "wss://" + url
}

// finishCall runs the post-conversation step: booking happens here, after
// the live exchange, never mid-turn.
func (s *Service) finishCall(ctx context.Context, sess *call.Session) {
	defer s.sessions.Remove(sess.ID)
	defer s.callSvc.Forget(sess.ID)

	outcome := "not_interested"
	if sess.SelectedSlot != nil {
		outcome = "meeting_booked"
	} else if sess.Stage != call.StageEnd && sess.Stage != call.StageTerminate {
		outcome = "follow_up"
	}

	if sess.SelectedSlot != nil {
		booking, err := s.calendarCli.BookMeeting(ctx, *sess.SelectedSlot, []string{sess.Lead.Phone})
		if err != nil {
			slog.Error("Failed to book meeting", "session", sess.ID, "error", err)
			outcome = "error"
		} else if err := s.calendarCli.SendInvite(ctx, sess.Lead.Phone, *sess.SelectedSlot, booking.MeetingLink); err != nil {
			slog.Error("Failed to send invite", "session", sess.ID, "error", err)
		}
	}

	args := []any{
		"session", sess.ID,
		"lead", sess.Lead.Name,
		"final_stage", sess.Stage,
		"outcome", outcome,
		"turns", len(sess.History),
		"duration", time.Since(sess.StartTime).Round(time.Second),
	}
	if outcome == "meeting_booked" {
		args = append(args, mylog.Notify())
	}

	slog.Info("Call finished", args...)
}
