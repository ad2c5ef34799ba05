package telephony

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"coldcall/app/client/calendar"
	"coldcall/app/config"
	"coldcall/app/service/call"
	"coldcall/app/service/session"
)

type fakeProcessor struct {
	result *call.TurnResult
	err    error
	turns  int
	forgot []string
}

func (f *fakeProcessor) StartConversation(_ context.Context, _ *call.Session) (string, error) {
	return "שלום", nil
}

func (f *fakeProcessor) ProcessTurn(_ context.Context, _ *call.Session, _ string) (*call.TurnResult, error) {
	f.turns++
	return f.result, f.err
}

func (f *fakeProcessor) Forget(sessionID string) {
	f.forgot = append(f.forgot, sessionID)
}

type fakeCalendar struct {
	bookings []call.TimeSlot
	invites  int
}

func (f *fakeCalendar) GetAvailableSlots(_, _ int) []call.TimeSlot {
	return nil
}

func (f *fakeCalendar) BookMeeting(_ context.Context, slot call.TimeSlot, _ []string) (*calendar.Booking, error) {
	f.bookings = append(f.bookings, slot)
	return &calendar.Booking{EventID: "evt_1", MeetingLink: "https://meet.google.com/abc-defg-hij"}, nil
}

func (f *fakeCalendar) SendInvite(_ context.Context, _ string, _ call.TimeSlot, _ string) error {
	f.invites++
	return nil
}

type fakeVoice struct {
	transcriptions int
	syntheses      int
}

func (f *fakeVoice) Transcribe(_ context.Context, _ []byte) (string, error) {
	f.transcriptions++
	return "", nil
}

func (f *fakeVoice) Synthesize(_ context.Context, _ string) ([]byte, error) {
	f.syntheses++
	return nil, nil
}

type fakeDialer struct {
	hangups []string
}

func (f *fakeDialer) MakeOutboundCall(_ call.Lead, _ string) (string, error) {
	return "CA123", nil
}

func (f *fakeDialer) Hangup(callSID string) error {
	f.hangups = append(f.hangups, callSID)
	return nil
}

type telephonyFakes struct {
	proc     *fakeProcessor
	calendar *fakeCalendar
	voice    *fakeVoice
	dialer   *fakeDialer
	sessions *session.Service
}

func newTestTelephony(t *testing.T) (*Service, *telephonyFakes) {
	t.Helper()

	sessions, err := session.New(nil)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}

	fakes := &telephonyFakes{
		proc:     &fakeProcessor{},
		calendar: &fakeCalendar{},
		voice:    &fakeVoice{},
		dialer:   &fakeDialer{},
		sessions: sessions,
	}

	svc := &Service{
		cfg:         &config.Config{},
		callSvc:     fakes.proc,
		sessions:    sessions,
		calendarCli: fakes.calendar,
		voiceCli:    fakes.voice,
		twilioCli:   fakes.dialer,
	}

	return svc, fakes
}

// captureHandler records log records so tests can assert on their attrs.
type captureHandler struct {
	mu      sync.Mutex
	records []map[string]bool
	msgs    []string
}

func (h *captureHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]bool)
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = true
		return true
	})

	h.mu.Lock()
	h.records = append(h.records, attrs)
	h.msgs = append(h.msgs, r.Message)
	h.mu.Unlock()

	return nil
}

func (h *captureHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(_ string) slog.Handler      { return h }

func (h *captureHandler) attrsOf(msg string) (map[string]bool, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, m := range h.msgs {
		if m == msg {
			return h.records[i], true
		}
	}

	return nil, false
}

func captureLogs(t *testing.T) *captureHandler {
	t.Helper()

	handler := &captureHandler{}
	old := slog.Default()
	slog.SetDefault(slog.New(handler))
	t.Cleanup(func() { slog.SetDefault(old) })

	return handler
}

func TestProcessUtterance_NoInputAfterTerminate(t *testing.T) {
	svc, fakes := newTestTelephony(t)

	ac := &activeCall{
		sess: &call.Session{ID: "s1", Stage: call.StageTerminate},
	}

	err := svc.processUtterance(context.Background(), ac, make([]byte, utteranceBytes))
	if !errors.Is(err, errCallDone) {
		t.Fatalf("err = %v, want errCallDone", err)
	}
	if fakes.voice.transcriptions != 0 {
		t.Errorf("transcriptions = %d, want 0 after TERMINATE", fakes.voice.transcriptions)
	}
	if fakes.proc.turns != 0 {
		t.Errorf("turns processed = %d, want 0 after TERMINATE", fakes.proc.turns)
	}
}

func TestFinishCall_BooksOnlyWithSelectedSlot(t *testing.T) {
	svc, fakes := newTestTelephony(t)
	captureLogs(t)

	sess := fakes.sessions.Create(call.Lead{Name: "דני", Phone: "+972501234567"}, nil)
	sess.Stage = call.StageEnd

	svc.finishCall(context.Background(), sess)

	if len(fakes.calendar.bookings) != 0 {
		t.Errorf("bookings = %d, want 0 without a selected slot", len(fakes.calendar.bookings))
	}
	if fakes.calendar.invites != 0 {
		t.Errorf("invites = %d, want 0 without a selected slot", fakes.calendar.invites)
	}
	if _, err := fakes.sessions.Get(sess.ID); !errors.Is(err, session.ErrNotFound) {
		t.Error("session still registered after finishCall")
	}
}

func TestFinishCall_BookedMeeting(t *testing.T) {
	svc, fakes := newTestTelephony(t)
	logs := captureLogs(t)

	sess := fakes.sessions.Create(call.Lead{Name: "דני", Phone: "+972501234567"}, nil)
	sess.Stage = call.StageEnd
	slot := call.TimeSlot{Date: "2024-06-03", Time: "10:00", DisplayText: "מחר (3/6) בשעה 10:00"}
	sess.SelectedSlot = &slot

	svc.finishCall(context.Background(), sess)

	if len(fakes.calendar.bookings) != 1 || fakes.calendar.bookings[0] != slot {
		t.Fatalf("bookings = %v, want the selected slot booked once", fakes.calendar.bookings)
	}
	if fakes.calendar.invites != 1 {
		t.Errorf("invites = %d, want 1", fakes.calendar.invites)
	}
	if len(fakes.proc.forgot) != 1 || fakes.proc.forgot[0] != sess.ID {
		t.Errorf("forgotten sessions = %v, want %q", fakes.proc.forgot, sess.ID)
	}

	attrs, ok := logs.attrsOf("Call finished")
	if !ok {
		t.Fatal("no call summary was logged")
	}
	if !attrs["telegram"] {
		t.Error("booked-meeting summary missing the telegram routing attr")
	}
}

func TestFinishCall_SummaryNotRoutedWithoutBooking(t *testing.T) {
	svc, fakes := newTestTelephony(t)
	logs := captureLogs(t)

	sess := fakes.sessions.Create(call.Lead{Name: "דני", Phone: "+972501234567"}, nil)
	sess.Stage = call.StageEnd

	svc.finishCall(context.Background(), sess)

	attrs, ok := logs.attrsOf("Call finished")
	if !ok {
		t.Fatal("no call summary was logged")
	}
	if attrs["telegram"] {
		t.Error("unbooked summary carries the telegram routing attr")
	}
}

func TestTeardownCall_HangsUp(t *testing.T) {
	svc, fakes := newTestTelephony(t)
	captureLogs(t)

	sess := fakes.sessions.Create(call.Lead{Name: "דני", Phone: "+972501234567"}, nil)
	sess.Stage = call.StageTerminate

	ac := &activeCall{sess: sess, callSID: "CA123"}

	svc.teardownCall(ac)

	if len(fakes.dialer.hangups) != 1 || fakes.dialer.hangups[0] != "CA123" {
		t.Errorf("hangups = %v, want [CA123]", fakes.dialer.hangups)
	}
	if _, err := fakes.sessions.Get(sess.ID); !errors.Is(err, session.ErrNotFound) {
		t.Error("session still registered after teardown")
	}
}

func TestTeardownCall_BeforeStreamStart(t *testing.T) {
	svc, fakes := newTestTelephony(t)
	captureLogs(t)

	// The stream can drop before a start event binds a session or call SID.
	svc.teardownCall(&activeCall{})

	if len(fakes.dialer.hangups) != 0 {
		t.Errorf("hangups = %v, want none without a call SID", fakes.dialer.hangups)
	}
}
