package voice

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Transcodes between the 8 kHz μ-law frames Twilio streams and the formats
// the speech endpoints speak. One-shot pipe through ffmpeg.

func MulawToWav(ctx context.Context, mulaw []byte) ([]byte, error) {
	return runFFmpeg(ctx, mulaw,
		"-f", "mulaw",
		"-ar", "8000",
		"-ac", "1",
		"-i", "pipe:0",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-f", "wav",
		"pipe:1",
	)
}

func MP3ToMulaw(ctx context.Context, mp3 []byte) ([]byte, error) {
	return runFFmpeg(ctx, mp3,
		"-f", "mp3",
		"-i", "pipe:0",
		"-acodec", "pcm_mulaw",
		"-ar", "8000",
		"-ac", "1",
		"-f", "mulaw",
		"pipe:1",
	)
}

func runFFmpeg(ctx context.Context, input []byte, args ...string) ([]byte, error) {
	fullArgs := append([]string{"-loglevel", "error"}, args...)
	cmd := exec.CommandContext(ctx, "ffmpeg", fullArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, stderr.String())
	}

	return stdout.Bytes(), nil
}
