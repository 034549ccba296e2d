package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath = "config.yaml"

	defaultDatabaseDriver = "sqlite"
	defaultDatabasePath   = "./data/novacontent.db"

	defaultGenerationProvider = "gemini"
	defaultGeminiModel        = "gemini-flash-latest"
	defaultGroqModel          = "llama-3.3-70b-versatile"
	defaultTemperature        = 1.0
	defaultGenAttempts        = 10
	defaultGenBaseDelay       = 10 * time.Second
	defaultGenJitter          = 2 * time.Second
	defaultHintBuffer         = time.Second
	defaultDailyLimit         = 1500
	defaultTopic              = "a surprising fact"

	defaultQuotaBackend = "sql"

	defaultSpeechProvider  = "elevenlabs"
	defaultVoiceID         = "21m00Tcm4TlvDq8ikWAM"
	defaultSpeechModel     = "eleven_multilingual_v2"
	defaultSpeechAttempts  = 5
	defaultSpeechBaseDelay = 2 * time.Second
	defaultSpeechJitter    = time.Second
	defaultStability       = 0.5
	defaultSimilarity      = 0.75
	defaultFFProbe         = "ffprobe"

	defaultCacheDir    = "./public/voiceovers"
	defaultCachePrefix = "/voiceovers"

	defaultVisualsProvider = "placeholder"

	defaultQueueName    = "RenderQueue"
	defaultQueueAttempt = 3
	defaultQueueBackoff = 5 * time.Second
	defaultPollInterval = time.Second
	defaultStallTimeout = 30 * time.Minute

	defaultRenderEngine  = "remotion"
	defaultFFmpeg        = "ffmpeg"
	defaultRenderCommand = "npx"
	defaultComposition   = "NovaVideo"
	defaultOutputDir     = "./out"

	defaultStorageBackend = "local"
	defaultStoragePrefix  = "/videos"
	defaultGCSPrefix      = "renders"

	defaultPublisher     = "log"
	defaultPrivacyStatus = "private"
	defaultTokenPath     = "./youtube_token.json"

	defaultPort = 3000
)

var defaultRenderArgs = []string{"remotion", "render", "src/remotion/Root.tsx", "{composition}", "{output}", "--props={props}"}

type Config struct {
	GeminiAPIKey         string `yaml:"-"`
	GroqAPIKey           string `yaml:"-"`
	ElevenLabsAPIKey     string `yaml:"-"`
	DatabaseURL          string `yaml:"-"`
	RedisAddr            string `yaml:"-"`
	GCSBucket            string `yaml:"-"`
	YouTubeClientID      string `yaml:"-"`
	YouTubeClientSecret  string `yaml:"-"`
	YouTubeTokenPath     string `yaml:"-"`
	GoogleSearchAPIKey   string `yaml:"-"`
	GoogleSearchEngineID string `yaml:"-"`

	Database   DatabaseConfig   `yaml:"database"`
	Generation GenerationConfig `yaml:"generation"`
	Groq       GroqConfig       `yaml:"groq"`
	Quota      QuotaConfig      `yaml:"quota"`
	Speech     SpeechConfig     `yaml:"speech"`
	Cache      CacheConfig      `yaml:"cache"`
	Visuals    VisualsConfig    `yaml:"visuals"`
	Queue      QueueConfig      `yaml:"queue"`
	Render     RenderConfig     `yaml:"render"`
	Storage    StorageConfig    `yaml:"storage"`
	Publish    PublishConfig    `yaml:"publish"`
	Server     ServerConfig     `yaml:"server"`
	NicheFile  string           `yaml:"niche_file"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path"`
}

type GenerationConfig struct {
	Provider    string        `yaml:"provider"` // "gemini" or "groq"
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	Jitter      time.Duration `yaml:"jitter"`
	HintBuffer  time.Duration `yaml:"hint_buffer"`
	DailyLimit  int64         `yaml:"daily_limit"`
	Topic       string        `yaml:"fallback_topic"`
}

type GroqConfig struct {
	Model string `yaml:"model"`
}

type QuotaConfig struct {
	Backend string `yaml:"backend"` // "sql" or "redis"
}

type SpeechConfig struct {
	Provider    string        `yaml:"provider"` // "elevenlabs" or "stub"
	VoiceID     string        `yaml:"voice_id"`
	Model       string        `yaml:"model"`
	Stability   float64       `yaml:"stability"`
	Similarity  float64       `yaml:"similarity"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	Jitter      time.Duration `yaml:"jitter"`
	FFProbe     string        `yaml:"ffprobe"`
}

type CacheConfig struct {
	Dir       string `yaml:"dir"`
	URLPrefix string `yaml:"url_prefix"`
}

type VisualsConfig struct {
	Provider string `yaml:"provider"` // "placeholder" or "search"
}

type QueueConfig struct {
	Name         string        `yaml:"name"`
	Attempts     int           `yaml:"attempts"`
	Backoff      time.Duration `yaml:"backoff"`
	Concurrency  int           `yaml:"concurrency"`
	PollInterval time.Duration `yaml:"poll_interval"`
	StallTimeout time.Duration `yaml:"stall_timeout"`
}

type RenderConfig struct {
	Engine      string   `yaml:"engine"` // "remotion" or "ffmpeg"
	FFmpeg      string   `yaml:"ffmpeg"`
	Command     string   `yaml:"command"`
	Args        []string `yaml:"args"`
	WorkDir     string   `yaml:"work_dir"`
	Composition string   `yaml:"composition"`
	OutputDir   string   `yaml:"output_dir"`
}

type StorageConfig struct {
	Backend   string `yaml:"backend"` // "local" or "gcs"
	URLPrefix string `yaml:"url_prefix"`
	GCSPrefix string `yaml:"gcs_prefix"`
}

type PublishConfig struct {
	Platform    string   `yaml:"platform"` // "log" or "youtube"
	Privacy     string   `yaml:"privacy_status"`
	DefaultTags []string `yaml:"default_tags"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := &Config{}
	if err := loadYAMLConfig(cfg, Path()); err != nil {
		return nil, err
	}

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GroqAPIKey = os.Getenv("GROQ_API_KEY")
	cfg.ElevenLabsAPIKey = os.Getenv("ELEVENLABS_API_KEY")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.GCSBucket = os.Getenv("GCS_BUCKET")
	cfg.YouTubeClientID = os.Getenv("YOUTUBE_CLIENT_ID")
	cfg.YouTubeClientSecret = os.Getenv("YOUTUBE_CLIENT_SECRET")
	cfg.YouTubeTokenPath = getEnvOrDefault("YOUTUBE_TOKEN_PATH", defaultTokenPath)
	cfg.GoogleSearchAPIKey = os.Getenv("GOOGLE_SEARCH_API_KEY")
	cfg.GoogleSearchEngineID = os.Getenv("GOOGLE_SEARCH_ENGINE_ID")

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Server.Port = p
	}
	if cfg.DatabaseURL != "" && cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	applyDefaults(cfg)
	return cfg, nil
}

// Default returns a configuration with every default applied and no secrets.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Path is the config file Load reads.
func Path() string {
	return getEnvOrDefault("NOVA_CONFIG", defaultConfigPath)
}

// Save writes the non-secret part of cfg as YAML.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// loadYAMLConfig treats a missing file as empty and a malformed one as an
// error.
func loadYAMLConfig(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("No config file found, using defaults", "path", path)
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	applyDatabaseDefaults(cfg)
	applyGenerationDefaults(cfg)
	applySpeechDefaults(cfg)
	applyQueueDefaults(cfg)
	applyRenderDefaults(cfg)
	applyStorageDefaults(cfg)
	applyPublishDefaults(cfg)
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultPort
	}
}

func applyDatabaseDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = defaultDatabaseDriver
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = defaultDatabasePath
	}
	if cfg.Quota.Backend == "" {
		cfg.Quota.Backend = defaultQuotaBackend
	}
}

func applyGenerationDefaults(cfg *Config) {
	g := &cfg.Generation
	if g.Provider == "" {
		g.Provider = defaultGenerationProvider
	}
	if g.Model == "" {
		g.Model = defaultGeminiModel
	}
	if g.Temperature == 0 {
		g.Temperature = defaultTemperature
	}
	if g.MaxAttempts == 0 {
		g.MaxAttempts = defaultGenAttempts
	}
	if g.BaseDelay == 0 {
		g.BaseDelay = defaultGenBaseDelay
	}
	if g.Jitter == 0 {
		g.Jitter = defaultGenJitter
	}
	if g.HintBuffer == 0 {
		g.HintBuffer = defaultHintBuffer
	}
	if g.DailyLimit == 0 {
		g.DailyLimit = defaultDailyLimit
	}
	if g.Topic == "" {
		g.Topic = defaultTopic
	}
	if cfg.Groq.Model == "" {
		cfg.Groq.Model = defaultGroqModel
	}
}

func applySpeechDefaults(cfg *Config) {
	s := &cfg.Speech
	if s.Provider == "" {
		s.Provider = defaultSpeechProvider
	}
	if s.VoiceID == "" {
		s.VoiceID = defaultVoiceID
	}
	if s.Model == "" {
		s.Model = defaultSpeechModel
	}
	if s.Stability == 0 {
		s.Stability = defaultStability
	}
	if s.Similarity == 0 {
		s.Similarity = defaultSimilarity
	}
	if s.MaxAttempts == 0 {
		s.MaxAttempts = defaultSpeechAttempts
	}
	if s.BaseDelay == 0 {
		s.BaseDelay = defaultSpeechBaseDelay
	}
	if s.Jitter == 0 {
		s.Jitter = defaultSpeechJitter
	}
	if s.FFProbe == "" {
		s.FFProbe = defaultFFProbe
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = defaultCacheDir
	}
	if cfg.Cache.URLPrefix == "" {
		cfg.Cache.URLPrefix = defaultCachePrefix
	}
	if cfg.Visuals.Provider == "" {
		cfg.Visuals.Provider = defaultVisualsProvider
	}
}

func applyQueueDefaults(cfg *Config) {
	q := &cfg.Queue
	if q.Name == "" {
		q.Name = defaultQueueName
	}
	if q.Attempts == 0 {
		q.Attempts = defaultQueueAttempt
	}
	if q.Backoff == 0 {
		q.Backoff = defaultQueueBackoff
	}
	if q.PollInterval == 0 {
		q.PollInterval = defaultPollInterval
	}
	if q.StallTimeout == 0 {
		q.StallTimeout = defaultStallTimeout
	}
}

func applyRenderDefaults(cfg *Config) {
	r := &cfg.Render
	if r.Engine == "" {
		r.Engine = defaultRenderEngine
	}
	if r.FFmpeg == "" {
		r.FFmpeg = defaultFFmpeg
	}
	if r.Command == "" {
		r.Command = defaultRenderCommand
	}
	if len(r.Args) == 0 {
		r.Args = append([]string(nil), defaultRenderArgs...)
	}
	if r.Composition == "" {
		r.Composition = defaultComposition
	}
	if r.OutputDir == "" {
		r.OutputDir = defaultOutputDir
	}
}

func applyStorageDefaults(cfg *Config) {
	s := &cfg.Storage
	if s.Backend == "" {
		s.Backend = defaultStorageBackend
	}
	if s.URLPrefix == "" {
		s.URLPrefix = defaultStoragePrefix
	}
	if s.GCSPrefix == "" {
		s.GCSPrefix = defaultGCSPrefix
	}
}

func applyPublishDefaults(cfg *Config) {
	p := &cfg.Publish
	if p.Platform == "" {
		p.Platform = defaultPublisher
	}
	if p.Privacy == "" {
		p.Privacy = defaultPrivacyStatus
	}
	if len(p.DefaultTags) == 0 {
		p.DefaultTags = []string{"shorts", "facts"}
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
