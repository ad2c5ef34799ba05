package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      Log      `yaml:"log"`
	Server   Server   `yaml:"server"`
	OpenAI   OpenAI   `yaml:"openai"`
	Twilio   Twilio   `yaml:"twilio"`
	Calendar Calendar `yaml:"calendar"`
}

type Server struct {
	// Port to listen on
	Port int `yaml:"port" example:"3000"`
	// Publicly reachable base URL of this server (twiml + status callbacks)
	PublicURL string `yaml:"public_url" example:"https://example.ngrok.io" validate:"required"`
}

type OpenAI struct {
	Classifier ModelConfig `yaml:"classifier" validate:"required"`
	Reply      ModelConfig `yaml:"reply" validate:"required"`
	Voice      Voice       `yaml:"voice"`
}

type ModelConfig struct {
	// OpenAI base url
	BaseURL string `yaml:"base_url" example:"https://api.openai.com/v1" validate:"required"`
	// OpenAI token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// OpenAI model
	Model string `yaml:"model" example:"gpt-4o-mini" validate:"required"`
}

type Voice struct {
	// OpenAI token used for speech endpoints
	Token string `yaml:"token" validate:"required"`
	// Transcription model
	STTModel string `yaml:"stt_model" example:"whisper-1"`
	// Speech synthesis model
	TTSModel string `yaml:"tts_model" example:"tts-1"`
	// Synthesis voice
	TTSVoice string `yaml:"tts_voice" example:"nova"`
	// Spoken language passed to the transcriber
	Language string `yaml:"language" example:"he"`
}

type Twilio struct {
	// Twilio account SID
	AccountSID string `yaml:"account_sid" example:"ACxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx" validate:"required"`
	// Twilio auth token
	AuthToken string `yaml:"auth_token" validate:"required"`
	// Outbound caller number
	PhoneNumber string `yaml:"phone_number" example:"+14155550100" validate:"required"`
}

type Calendar struct {
	// How many days ahead to offer slots for
	DaysAhead int `yaml:"days_ahead" example:"7"`
	// How many slots to offer
	SlotsCount int `yaml:"slots_count" example:"7"`
	// Meeting duration in minutes
	MeetingDurationMin int `yaml:"meeting_duration_min" example:"30"`
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

func Load() (*Config, error) {
	var result Config

	data, err := os.ReadFile("config.yaml")
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	if result.Server.Port == 0 {
		result.Server.Port = 3000
	}
	if result.OpenAI.Voice.STTModel == "" {
		result.OpenAI.Voice.STTModel = "whisper-1"
	}
	if result.OpenAI.Voice.TTSModel == "" {
		result.OpenAI.Voice.TTSModel = "tts-1"
	}
	if result.OpenAI.Voice.TTSVoice == "" {
		result.OpenAI.Voice.TTSVoice = "nova"
	}
	if result.OpenAI.Voice.Language == "" {
		result.OpenAI.Voice.Language = "he"
	}
	if result.Calendar.DaysAhead == 0 {
		result.Calendar.DaysAhead = 7
	}
	if result.Calendar.SlotsCount == 0 {
		result.Calendar.SlotsCount = 7
	}
	if result.Calendar.MeetingDurationMin == 0 {
		result.Calendar.MeetingDurationMin = 30
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}
