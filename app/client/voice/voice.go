package voice

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"time"

	"coldcall/app/config"

	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/sashabaranov/go-openai"
)

const (
	ttsRetries     = 3
	ttsMaxBackoff  = 5 * time.Second
	ttsBaseBackoff = time.Second
)

type Client struct {
	cfg    *config.Config
	client *openai.Client
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Client{
		cfg:    cfg,
		client: openai.NewClient(cfg.OpenAI.Voice.Token),
	}, nil
}

// Transcribe converts a WAV buffer to text.
func (c *Client) Transcribe(ctx context.Context, wav []byte) (string, error) {
	response, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.cfg.OpenAI.Voice.STTModel,
		Reader:   bytes.NewReader(wav),
		FilePath: "audio.wav",
		Language: c.cfg.OpenAI.Voice.Language,
	})
	if err != nil {
		return "", oops.Wrapf(err, "transcription failed")
	}

	return response.Text, nil
}

// Synthesize renders text to MP3, retrying transient failures with backoff.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < ttsRetries; attempt++ {
		if attempt > 0 {
			delay := min(ttsBaseBackoff<<(attempt-1), ttsMaxBackoff)
			slog.Debug("Retrying speech synthesis", "attempt", attempt+1, "delay", delay)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		response, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
			Model: openai.SpeechModel(c.cfg.OpenAI.Voice.TTSModel),
			Input: text,
			Voice: openai.SpeechVoice(c.cfg.OpenAI.Voice.TTSVoice),
		})
		if err != nil {
			lastErr = err
			continue
		}

		audio, err := io.ReadAll(response)
		_ = response.Close()
		if err != nil {
			lastErr = err
			continue
		}

		return audio, nil
	}

	return nil, oops.Wrapf(lastErr, "speech synthesis failed after %d attempts", ttsRetries)
}
