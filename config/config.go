package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Youtube   YoutubeConfig   `mapstructure:"youtube"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Miniflux  MinifluxConfig  `mapstructure:"miniflux"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

type APIConfig struct {
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"corsOrigins"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type OpenAIConfig struct {
	APIKey             string `mapstructure:"apiKey"`
	ChatModel          string `mapstructure:"chatModel"`
	TranscriptionModel string `mapstructure:"transcriptionModel"`
}

type YoutubeConfig struct {
	APIKey          string `mapstructure:"apiKey"`
	YtDlpPath       string `mapstructure:"ytDlpPath"`
	CaptionLanguage string `mapstructure:"captionLanguage"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
	Issuer    string `mapstructure:"issuer"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LimitsConfig struct {
	IngestionsPerHour        int `mapstructure:"ingestionsPerHour"`
	QuestionsPerVideoPerHour int `mapstructure:"questionsPerVideoPerHour"`
}

type PipelineConfig struct {
	MergeWindow                 time.Duration `mapstructure:"mergeWindow"`
	MaxAudioBytes               int64         `mapstructure:"maxAudioBytes"`
	MaxConcurrentTranscriptions int64         `mapstructure:"maxConcurrentTranscriptions"`
	TranscriptionTimeout        time.Duration `mapstructure:"transcriptionTimeout"`
	TranscriptionsPerMinute     int           `mapstructure:"transcriptionsPerMinute"`
	GenerationTimeout           time.Duration `mapstructure:"generationTimeout"`
	LongVideoWarning            time.Duration `mapstructure:"longVideoWarning"`
	QueueSize                   int           `mapstructure:"queueSize"`
}

type MinifluxConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"apiKey"`
}

type SchedulerConfig struct {
	FeedCronSpec  string `mapstructure:"feedCronSpec"`
	SweepCronSpec string `mapstructure:"sweepCronSpec"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.corsOrigins", []string{"http://localhost:3000"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "tutorai")
	v.SetDefault("postgres.password", "tutorai")
	v.SetDefault("postgres.database", "tutorai")

	v.SetDefault("openai.apiKey", "")
	v.SetDefault("openai.chatModel", "gpt-4o-mini")
	v.SetDefault("openai.transcriptionModel", "whisper-1")

	v.SetDefault("youtube.apiKey", "")
	v.SetDefault("youtube.ytDlpPath", "yt-dlp")
	v.SetDefault("youtube.captionLanguage", "en")

	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.issuer", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("limits.ingestionsPerHour", 5)
	v.SetDefault("limits.questionsPerVideoPerHour", 30)

	v.SetDefault("pipeline.mergeWindow", "30s")
	v.SetDefault("pipeline.maxAudioBytes", 25*1024*1024)
	v.SetDefault("pipeline.maxConcurrentTranscriptions", 2)
	v.SetDefault("pipeline.transcriptionTimeout", "10m")
	v.SetDefault("pipeline.transcriptionsPerMinute", 20)
	v.SetDefault("pipeline.generationTimeout", "60s")
	v.SetDefault("pipeline.longVideoWarning", "3h")
	v.SetDefault("pipeline.queueSize", 32)

	v.SetDefault("miniflux.endpoint", "")
	v.SetDefault("miniflux.apiKey", "")

	v.SetDefault("scheduler.feedCronSpec", "0 */5 * * * *")
	v.SetDefault("scheduler.sweepCronSpec", "0 */15 * * * *")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configPath/configName.yaml if it exists. Every key can be
// overridden from the environment with dots replaced by underscores, e.g.
// OPENAI_APIKEY.
func Load(configPath, configName string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(configPath)
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not parse config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("openai.apiKey is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwtSecret is required"))
	}
	if c.API.Port <= 0 {
		errs = append(errs, fmt.Errorf("api.port %d is invalid", c.API.Port))
	}

	return errors.Join(errs...)
}

func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
