// Package config loads vision-assistant configuration.
//
// Values come from (lowest to highest precedence) built-in defaults, an optional
// YAML/TOML/JSON config file, a .env file and the process environment.
// Environment keys use the VISION_ prefix with dots replaced by underscores,
// e.g. VISION_SPEECH_SAMPLE_RATE=22050.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "VISION"

// Known provider names.
var (
	CaptionProviders = []string{"huggingface", "openai", "gemini", "mock"}
	SpeechProviders  = []string{"mms", "openai", "elevenlabs", "google", "translate", "mock"}
)

// Config is the complete application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Caption CaptionConfig `mapstructure:"caption"`
	Speech  SpeechConfig  `mapstructure:"speech"`
	Image   ImageConfig   `mapstructure:"image"`
	Replay  ReplayConfig  `mapstructure:"replay"`
	Camera  CameraConfig  `mapstructure:"camera"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr        string        `mapstructure:"addr"`
	BodyLimitMB int           `mapstructure:"body_limit_mb"`
	Debug       bool          `mapstructure:"debug"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EndpointConfig is the connection info shared by all providers.
type EndpointConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
}

// CaptionConfig configures image-to-text providers.
// Providers are tried in order; the first success wins.
type CaptionConfig struct {
	Providers    []string       `mapstructure:"providers"`
	MaxNewTokens int            `mapstructure:"max_new_tokens"`
	Prompt       string         `mapstructure:"prompt"`
	Timeout      time.Duration  `mapstructure:"timeout"`
	HuggingFace  EndpointConfig `mapstructure:"huggingface"`
	OpenAI       EndpointConfig `mapstructure:"openai"`
	Gemini       EndpointConfig `mapstructure:"gemini"`
}

// VoiceConfig adds voice selection to an endpoint.
type VoiceConfig struct {
	EndpointConfig `mapstructure:",squash"`
	Voice          string `mapstructure:"voice"`
	Format         string `mapstructure:"format"`
}

// GoogleSpeechConfig configures Cloud Text-to-Speech.
type GoogleSpeechConfig struct {
	APIKey          string `mapstructure:"api_key"`
	CredentialsFile string `mapstructure:"credentials_file"`
	Language        string `mapstructure:"language"`
	Voice           string `mapstructure:"voice"`
}

// SpeechConfig configures text-to-speech providers.
type SpeechConfig struct {
	Providers  []string           `mapstructure:"providers"`
	SampleRate int                `mapstructure:"sample_rate"`
	Timeout    time.Duration      `mapstructure:"timeout"`
	MMS        EndpointConfig     `mapstructure:"mms"`
	OpenAI     VoiceConfig        `mapstructure:"openai"`
	ElevenLabs VoiceConfig        `mapstructure:"elevenlabs"`
	Google     GoogleSpeechConfig `mapstructure:"google"`
	Translate  TranslateConfig    `mapstructure:"translate"`
}

// TranslateConfig configures the keyless translate_tts voice.
type TranslateConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Language string `mapstructure:"language"`
}

// ImageConfig controls how captured photos are prepared for captioning.
type ImageConfig struct {
	MaxDimension int `mapstructure:"max_dimension"`
	Quality      int `mapstructure:"quality"`

	// MaxMegapixels rejects uploads whose declared size exceeds it.
	MaxMegapixels int `mapstructure:"max_megapixels"`
}

// MaxPixels returns the upload pixel limit.
func (c ImageConfig) MaxPixels() int {
	return c.MaxMegapixels * 1_000_000
}

// ReplayConfig sizes the in-memory replay buffer.
type ReplayConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// CameraConfig selects the local webcam used by the describe command.
type CameraConfig struct {
	Device       int `mapstructure:"device"`
	Width        int `mapstructure:"width"`
	Height       int `mapstructure:"height"`
	WarmupFrames int `mapstructure:"warmup_frames"`
	Quality      int `mapstructure:"quality"`
}

// Options controls where Load looks for configuration.
type Options struct {
	// ConfigFile is an optional config file path. Empty means defaults + env only.
	ConfigFile string

	// EnvFiles are dotenv files loaded into the environment first.
	// Empty means ".env" in the working directory, if present.
	EnvFiles []string
}

// Load reads configuration from defaults, the optional config file and the environment.
func Load(opts Options) (*Config, error) {
	if err := loadDotEnv(opts.EnvFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	bindKeyFallbacks(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", opts.ConfigFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading files or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults are static and always decode.
	_ = v.Unmarshal(&cfg)
	cfg.normalize()
	return &cfg
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if len(c.Caption.Providers) == 0 {
		errs = append(errs, errors.New("caption.providers must name at least one provider"))
	}
	for _, p := range c.Caption.Providers {
		if !slices.Contains(CaptionProviders, p) {
			errs = append(errs, fmt.Errorf("caption.providers: unknown provider %q", p))
		}
	}
	if len(c.Speech.Providers) == 0 {
		errs = append(errs, errors.New("speech.providers must name at least one provider"))
	}
	for _, p := range c.Speech.Providers {
		if !slices.Contains(SpeechProviders, p) {
			errs = append(errs, fmt.Errorf("speech.providers: unknown provider %q", p))
		}
	}
	if c.Caption.MaxNewTokens <= 0 {
		errs = append(errs, errors.New("caption.max_new_tokens must be positive"))
	}
	if c.Speech.SampleRate <= 0 {
		errs = append(errs, errors.New("speech.sample_rate must be positive"))
	}
	if c.Image.MaxDimension <= 0 {
		errs = append(errs, errors.New("image.max_dimension must be positive"))
	}
	if c.Image.Quality < 1 || c.Image.Quality > 100 {
		errs = append(errs, errors.New("image.quality must be between 1 and 100"))
	}
	if c.Image.MaxMegapixels <= 0 {
		errs = append(errs, errors.New("image.max_megapixels must be positive"))
	}
	if c.Replay.Capacity <= 0 {
		errs = append(errs, errors.New("replay.capacity must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// BodyLimit returns the request body limit in bytes.
func (s ServerConfig) BodyLimit() int {
	return s.BodyLimitMB * 1024 * 1024
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.body_limit_mb", 12)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.read_timeout", 2*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("caption.providers", []string{"huggingface"})
	v.SetDefault("caption.max_new_tokens", 80)
	v.SetDefault("caption.prompt", "Describe the objects and the scene in this photo in one sentence.")
	v.SetDefault("caption.timeout", 60*time.Second)
	v.SetDefault("caption.huggingface.base_url", "https://api-inference.huggingface.co")
	v.SetDefault("caption.huggingface.model", "Salesforce/blip-image-captioning-base")
	v.SetDefault("caption.huggingface.api_key", "")
	v.SetDefault("caption.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("caption.openai.model", "gpt-4o-mini")
	v.SetDefault("caption.openai.api_key", "")
	v.SetDefault("caption.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("caption.gemini.model", "gemini-2.0-flash")
	v.SetDefault("caption.gemini.api_key", "")

	v.SetDefault("speech.providers", []string{"mms"})
	v.SetDefault("speech.sample_rate", 16000)
	v.SetDefault("speech.timeout", 60*time.Second)
	v.SetDefault("speech.mms.base_url", "http://localhost:8008/synthesize")
	v.SetDefault("speech.mms.model", "facebook/mms-tts-eng")
	v.SetDefault("speech.mms.api_key", "")
	v.SetDefault("speech.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("speech.openai.model", "tts-1")
	v.SetDefault("speech.openai.api_key", "")
	v.SetDefault("speech.openai.voice", "shimmer")
	v.SetDefault("speech.openai.format", "pcm")
	v.SetDefault("speech.elevenlabs.base_url", "https://api.elevenlabs.io/v1")
	v.SetDefault("speech.elevenlabs.model", "eleven_turbo_v2_5")
	v.SetDefault("speech.elevenlabs.api_key", "")
	v.SetDefault("speech.elevenlabs.voice", "")
	v.SetDefault("speech.elevenlabs.format", "pcm_16000")
	v.SetDefault("speech.google.api_key", "")
	v.SetDefault("speech.google.credentials_file", "")
	v.SetDefault("speech.google.language", "en-US")
	v.SetDefault("speech.google.voice", "")
	v.SetDefault("speech.translate.base_url", "https://translate.google.com/translate_tts")
	v.SetDefault("speech.translate.language", "en")

	v.SetDefault("image.max_dimension", 1024)
	v.SetDefault("image.quality", 85)
	v.SetDefault("image.max_megapixels", 40)

	v.SetDefault("replay.capacity", 32)

	v.SetDefault("camera.device", 0)
	v.SetDefault("camera.width", 1280)
	v.SetDefault("camera.height", 720)
	v.SetDefault("camera.warmup_frames", 5)
	v.SetDefault("camera.quality", 90)
}

// bindKeyFallbacks lets provider keys come from their conventional variables.
func bindKeyFallbacks(v *viper.Viper) {
	_ = v.BindEnv("caption.huggingface.api_key", "VISION_CAPTION_HUGGINGFACE_API_KEY", "HF_TOKEN", "HUGGINGFACE_API_KEY")
	_ = v.BindEnv("caption.openai.api_key", "VISION_CAPTION_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("caption.gemini.api_key", "VISION_CAPTION_GEMINI_API_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("speech.mms.api_key", "VISION_SPEECH_MMS_API_KEY", "HF_TOKEN")
	_ = v.BindEnv("speech.openai.api_key", "VISION_SPEECH_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("speech.elevenlabs.api_key", "VISION_SPEECH_ELEVENLABS_API_KEY", "ELEVENLABS_API_KEY")
	_ = v.BindEnv("speech.elevenlabs.voice", "VISION_SPEECH_ELEVENLABS_VOICE", "ELEVENLABS_VOICE_ID")
	_ = v.BindEnv("speech.google.api_key", "VISION_SPEECH_GOOGLE_API_KEY", "GOOGLE_TTS_API_KEY")
	_ = v.BindEnv("speech.google.credentials_file", "VISION_SPEECH_GOOGLE_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS")
}

// normalize lower-cases and trims provider names.
func (c *Config) normalize() {
	c.Caption.Providers = normalizeNames(c.Caption.Providers)
	c.Speech.Providers = normalizeNames(c.Speech.Providers)
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
}

func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func loadDotEnv(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}
