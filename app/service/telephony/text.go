package telephony

import (
	"context"
	"errors"
	"log/slog"

	"coldcall/app/service/call"
	"coldcall/app/service/session"

	"github.com/gofiber/fiber/v2"
)

// Text-mode conversation tester: drives the full turn pipeline over HTTP
// without audio or telephony. Useful for exercising stage flow by hand.

type textTurnRequest struct {
	SessionID string `json:"sessionId"`
	Utterance string `json:"utterance"`
}

func (s *Service) handleTextStart(c *fiber.Ctx) error {
	var lead call.Lead
	if err := c.BodyParser(&lead); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid lead payload")
	}
	if lead.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "lead name is required")
	}

	slots := s.calendarCli.GetAvailableSlots(s.cfg.Calendar.DaysAhead, s.cfg.Calendar.SlotsCount)
	sess := s.sessions.Create(lead, slots)

	greeting, err := s.callSvc.StartConversation(c.Context(), sess)
	if err != nil {
		s.sessions.Remove(sess.ID)
		slog.Error("Failed to start text conversation", "error", err)
		return fiber.NewError(fiber.StatusBadGateway, "failed to start conversation")
	}

	return c.JSON(fiber.Map{
		"sessionId": sess.ID,
		"response":  greeting,
		"stage":     sess.Stage,
	})
}

func (s *Service) handleTextTurn(c *fiber.Ctx) error {
	var req textTurnRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid turn payload")
	}

	sess, err := s.sessions.Get(req.SessionID)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "unknown session")
	}

	result, err := s.callSvc.ProcessTurn(c.Context(), sess, req.Utterance)
	if err != nil {
		switch {
		case errors.Is(err, call.ErrTurnInProgress):
			return fiber.NewError(fiber.StatusConflict, "turn already in progress")
		case errors.Is(err, call.ErrSessionClosed), errors.Is(err, session.ErrNotFound):
			return fiber.NewError(fiber.StatusGone, "session is closed")
		default:
			slog.Error("Text turn failed", "session", sess.ID, "error", err)
			return fiber.NewError(fiber.StatusBadGateway, "failed to process turn")
		}
	}

	if result.NextStage == call.StageTerminate {
		s.finishCall(context.Background(), sess)
	}

	return c.JSON(result)
}
