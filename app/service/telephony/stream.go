package telephony

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"coldcall/app/client/voice"
	"coldcall/app/service/call"
	"coldcall/app/util/hebrew"

	"github.com/gofiber/contrib/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	// ~3 seconds of 8 kHz μ-law before a turn is attempted
	utteranceBytes = 24000
	// Twilio frame size: 20ms at 8 kHz
	mediaChunkSize = 160
	turnQueueSize  = 4
)

var errCallDone = errors.New("call done")

type streamEvent struct {
	Event string `json:"event"`
	Start struct {
		StreamSID        string            `json:"streamSid"`
		CallSID          string            `json:"callSid"`
		CustomParameters map[string]string `json:"customParameters"`
	} `json:"start"`
	Media struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

type mediaMessage struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

// activeCall is the live state of one telephony leg. Recognized utterances
// go through a bounded queue consumed by a single goroutine, so at most one
// turn is ever in flight per call.
type activeCall struct {
	sess      *call.Session
	conn      *websocket.Conn
	writeMu   sync.Mutex
	streamSID string
	callSID   string

	speaking  atomic.Bool
	bufMu     sync.Mutex
	audioBuf  bytes.Buffer
	turnQueue chan []byte
}

func (s *Service) handleMediaStream(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ac := &activeCall{
		conn:      conn,
		turnQueue: make(chan []byte, turnQueueSize),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(ac.turnQueue)
		return s.readStream(ctx, ac)
	})

	g.Go(func() error {
		// Closing the socket is what unblocks ReadMessage; ctx cancellation
		// does not reach a blocked read.
		defer ac.conn.Close()
		return s.consumeTurns(ctx, ac)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errCallDone) && !errors.Is(err, context.Canceled) {
		slog.Error("Media stream failed", "error", err)
	}

	s.teardownCall(ac)
}

// teardownCall ends the Twilio leg and runs the post-call step. The lead must
// never be left on a silent line: once the stream loop exits for any reason,
// the call is hung up from our side.
func (s *Service) teardownCall(ac *activeCall) {
	if ac.callSID != "" {
		if err := s.twilioCli.Hangup(ac.callSID); err != nil {
			slog.Warn("Hangup failed", "call_sid", ac.callSID, "error", err)
		}
	}

	if ac.sess != nil {
		s.finishCall(context.Background(), ac.sess)
	}
}

func (s *Service) readStream(ctx context.Context, ac *activeCall) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, data, err := ac.conn.ReadMessage()
		if err != nil {
			return errCallDone
		}

		var event streamEvent
		if err := json.Unmarshal(data, &event); err != nil {
			slog.Warn("Unparseable stream event", "error", err)
			continue
		}

		switch event.Event {
		case "start":
			if err := s.onStreamStart(ctx, ac, &event); err != nil {
				return err
			}
		case "media":
			s.onMediaFrame(ac, event.Media.Payload)
		case "stop":
			return errCallDone
		}
	}
}

func (s *Service) onStreamStart(ctx context.Context, ac *activeCall, event *streamEvent) error {
	sessionID := event.Start.CustomParameters["sessionId"]

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return errors.New("stream started for unknown session")
	}

	ac.sess = sess
	ac.streamSID = event.Start.StreamSID
	ac.callSID = event.Start.CallSID
	s.sessions.Bind(event.Start.StreamSID, sess.ID)

	slog.Info("Call connected",
		"session", sess.ID,
		"lead", sess.Lead.Name,
		"stream_sid", ac.streamSID,
	)

	// Agent speaks first.
	ac.speaking.Store(true)

	greeting, err := s.callSvc.StartConversation(ctx, sess)
	if err != nil {
		return err
	}

	return s.sendSpeech(ctx, ac, greeting)
}

// onMediaFrame buffers caller audio. Frames are dropped while the agent is
// speaking to avoid transcribing our own echo.
func (s *Service) onMediaFrame(ac *activeCall, payload string) {
	if ac.sess == nil || ac.speaking.Load() {
		return
	}

	chunk, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return
	}

	ac.bufMu.Lock()
	ac.audioBuf.Write(chunk)

	if ac.audioBuf.Len() < utteranceBytes {
		ac.bufMu.Unlock()
		return
	}

	utterance := make([]byte, ac.audioBuf.Len())
	copy(utterance, ac.audioBuf.Bytes())
	ac.audioBuf.Reset()
	ac.bufMu.Unlock()

	select {
	case ac.turnQueue <- utterance:
	default:
		slog.Warn("Turn queue is full, dropping utterance", "session", ac.sess.ID)
	}
}

func (s *Service) consumeTurns(ctx context.Context, ac *activeCall) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case audio, ok := <-ac.turnQueue:
			if !ok {
				return errCallDone
			}

			if err := s.processUtterance(ctx, ac, audio); err != nil {
				return err
			}
		}
	}
}

func (s *Service) processUtterance(ctx context.Context, ac *activeCall, mulaw []byte) error {
	if ac.sess.Stage == call.StageTerminate {
		return errCallDone
	}

	// Gate the mic for the whole turn, not just the reply playback.
	ac.speaking.Store(true)

	wav, err := voice.MulawToWav(ctx, mulaw)
	if err != nil {
		slog.Error("Audio conversion failed", "session", ac.sess.ID, "error", err)
		ac.speaking.Store(false)
		return nil
	}

	text, err := s.voiceCli.Transcribe(ctx, wav)
	if err != nil {
		slog.Error("Transcription failed", "session", ac.sess.ID, "error", err)
		ac.speaking.Store(false)
		return nil
	}

	if strings.TrimSpace(text) == "" {
		ac.speaking.Store(false)
		return nil
	}

	slog.Info("Lead said", "session", ac.sess.ID, "text", text)

	result, err := s.callSvc.ProcessTurn(ctx, ac.sess, text)
	if err != nil {
		// A reply failure must not leave the line silent: end the call.
		slog.Error("Turn failed, ending call", "session", ac.sess.ID, "error", err)
		return errCallDone
	}

	if result.NextStage == call.StageTerminate {
		slog.Info("Call ending", "session", ac.sess.ID)
		return errCallDone
	}

	return s.sendSpeech(ctx, ac, result.Response)
}

// sendSpeech synthesizes the reply and streams it back as 20ms μ-law frames.
func (s *Service) sendSpeech(ctx context.Context, ac *activeCall, text string) error {
	ac.bufMu.Lock()
	ac.audioBuf.Reset()
	ac.bufMu.Unlock()

	mp3, err := s.voiceCli.Synthesize(ctx, hebrew.NumbersToHebrew(text))
	if err != nil {
		slog.Error("Speech synthesis failed, ending call", "session", ac.sess.ID, "error", err)
		return errCallDone
	}

	mulaw, err := voice.MP3ToMulaw(ctx, mp3)
	if err != nil {
		slog.Error("Audio conversion failed, ending call", "session", ac.sess.ID, "error", err)
		return errCallDone
	}

	for offset := 0; offset < len(mulaw); offset += mediaChunkSize {
		end := min(offset+mediaChunkSize, len(mulaw))

		msg := mediaMessage{
			Event:     "media",
			StreamSID: ac.streamSID,
		}
		msg.Media.Payload = base64.StdEncoding.EncodeToString(mulaw[offset:end])

		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}

		ac.writeMu.Lock()
		err = ac.conn.WriteMessage(websocket.TextMessage, data)
		ac.writeMu.Unlock()
		if err != nil {
			return errCallDone
		}
	}

	// Keep the mic gated until playback finishes on the far end.
	playback := time.Duration(len(mulaw)) * time.Second / 8000
	time.AfterFunc(playback+500*time.Millisecond, func() {
		ac.speaking.Store(false)
	})

	return nil
}
