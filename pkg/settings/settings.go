package settings

import (
	"io"
	"strings"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// BreakerSettings tunes the safety gate race.
type BreakerSettings struct {
	Deadline time.Duration `yaml:"deadline" mapstructure:"deadline"`
	Grace    time.Duration `yaml:"grace" mapstructure:"grace"`
}

// OpenAISettings configures both the response generator and the crisis
// classifier. BaseURL is for proxies and compatible local servers.
type OpenAISettings struct {
	APIKey          string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL         string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Model           string `yaml:"model" mapstructure:"model"`
	ClassifierModel string `yaml:"classifier_model" mapstructure:"classifier_model"`
}

type LogSettings struct {
	Level string `yaml:"level" mapstructure:"level"`
}

type Settings struct {
	Breaker BreakerSettings `yaml:"breaker" mapstructure:"breaker"`
	OpenAI  OpenAISettings  `yaml:"openai" mapstructure:"openai"`
	Log     LogSettings     `yaml:"log" mapstructure:"log"`
}

func NewSettings() *Settings {
	return &Settings{
		Breaker: BreakerSettings{
			Deadline: 2000 * time.Millisecond,
			Grace:    500 * time.Millisecond,
		},
		OpenAI: OpenAISettings{
			Model:           "gpt-4o",
			ClassifierModel: "gpt-4o-mini",
		},
		Log: LogSettings{Level: "info"},
	}
}

// NewSettingsFromYAML decodes settings from a YAML stream, keeping defaults
// for anything the document omits.
func NewSettingsFromYAML(r io.Reader) (*Settings, error) {
	s := NewSettings()
	if err := yaml.NewDecoder(r).Decode(s); err != nil {
		return nil, errors.Wrap(err, "could not decode settings")
	}
	return s, s.Validate()
}

// NewSettingsFromViper reads settings from the given viper instance, layering
// config file and MINDWELL_ environment variables over the defaults.
func NewSettingsFromViper(v *viper.Viper) (*Settings, error) {
	s := NewSettings()

	v.SetEnvPrefix("MINDWELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("breaker.deadline", s.Breaker.Deadline)
	v.SetDefault("breaker.grace", s.Breaker.Grace)
	v.SetDefault("openai.model", s.OpenAI.Model)
	v.SetDefault("openai.classifier_model", s.OpenAI.ClassifierModel)
	v.SetDefault("log.level", s.Log.Level)

	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal settings")
	}
	return s, s.Validate()
}

func (s *Settings) Validate() error {
	if s.Breaker.Deadline <= 0 {
		return errors.New("breaker deadline must be positive")
	}
	if s.Breaker.Grace < 0 {
		return errors.New("breaker grace must not be negative")
	}
	if s.Breaker.Grace >= s.Breaker.Deadline {
		return errors.New("breaker grace must be shorter than the deadline")
	}
	if s.OpenAI.Model == "" || s.OpenAI.ClassifierModel == "" {
		return errors.New("openai model and classifier_model must be set")
	}
	return nil
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}
