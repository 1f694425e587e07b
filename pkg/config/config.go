package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env string

	Database DatabaseConfig
	OCR      OCRConfig
	Storage  StorageConfig
	Scan     ScanConfig
	Session  SessionConfig
	Status   StatusConfig
	Log      LogConfig
	CORS     CORSConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// OCRConfig configures the extraction service client.
type OCRConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Transport   string // "sdk" or "http"
	MaxAttempts int
	UseBackoff  bool
	BaseDelay   time.Duration
	CallTimeout time.Duration
}

// StorageConfig configures the remote object store and the background
// upload-retry worker.
type StorageConfig struct {
	Endpoint      string
	Folder        string
	Secret        string
	UploadTimeout time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// ScanConfig holds the pipeline thresholds and local working directory.
type ScanConfig struct {
	PagesDir        string
	KeepCollage     bool
	MinPageWidth    int
	MaxCollageBytes int64
	MaxCanvasWidth  int
	MaxCanvasHeight int
	MaxQuestions    int
	InputTimeout    time.Duration
	ConfirmTimeout  time.Duration
}

// SessionConfig locates the cached assessor credential.
type SessionConfig struct {
	CacheFile string
}

// StatusConfig gates the kiosk's local status/metrics server.
type StatusConfig struct {
	Enabled bool
	Port    int
}

type LogConfig struct {
	Level  string
	Format string
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.OCR = OCRConfig{
		BaseURL:     v.GetString("OCR_BASE_URL"),
		APIKey:      v.GetString("OCR_API_KEY"),
		Model:       v.GetString("OCR_MODEL"),
		Transport:   v.GetString("OCR_TRANSPORT"),
		MaxAttempts: v.GetInt("OCR_MAX_ATTEMPTS"),
		UseBackoff:  v.GetBool("OCR_USE_BACKOFF"),
		BaseDelay:   parseDuration(v.GetString("OCR_BASE_DELAY"), time.Second),
		CallTimeout: parseDuration(v.GetString("OCR_CALL_TIMEOUT"), 90*time.Second),
	}

	cfg.Storage = StorageConfig{
		Endpoint:      v.GetString("STORAGE_ENDPOINT"),
		Folder:        v.GetString("STORAGE_FOLDER"),
		Secret:        v.GetString("STORAGE_SECRET"),
		UploadTimeout: parseDuration(v.GetString("STORAGE_UPLOAD_TIMEOUT"), 60*time.Second),
		RetryAttempts: v.GetInt("STORAGE_RETRY_ATTEMPTS"),
		RetryDelay:    parseDuration(v.GetString("STORAGE_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Scan = ScanConfig{
		PagesDir:        v.GetString("SCAN_PAGES_DIR"),
		KeepCollage:     v.GetBool("SCAN_KEEP_COLLAGE"),
		MinPageWidth:    v.GetInt("SCAN_MIN_PAGE_WIDTH"),
		MaxCollageBytes: v.GetInt64("SCAN_MAX_COLLAGE_BYTES"),
		MaxCanvasWidth:  v.GetInt("SCAN_MAX_CANVAS_WIDTH"),
		MaxCanvasHeight: v.GetInt("SCAN_MAX_CANVAS_HEIGHT"),
		MaxQuestions:    v.GetInt("SCAN_MAX_QUESTIONS"),
		InputTimeout:    parseDuration(v.GetString("SCAN_INPUT_TIMEOUT"), 300*time.Second),
		ConfirmTimeout:  parseDuration(v.GetString("SCAN_CONFIRM_TIMEOUT"), 10*time.Second),
	}

	cfg.Session = SessionConfig{
		CacheFile: v.GetString("SESSION_CACHE_FILE"),
	}

	cfg.Status = StatusConfig{
		Enabled: v.GetBool("STATUS_ENABLED"),
		Port:    v.GetInt("STATUS_PORT"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sheetgrader")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 5)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)

	v.SetDefault("OCR_BASE_URL", "")
	v.SetDefault("OCR_API_KEY", "")
	v.SetDefault("OCR_MODEL", "gpt-4o-mini")
	v.SetDefault("OCR_TRANSPORT", "sdk")
	v.SetDefault("OCR_MAX_ATTEMPTS", 3)
	v.SetDefault("OCR_USE_BACKOFF", true)
	v.SetDefault("OCR_BASE_DELAY", "1s")
	v.SetDefault("OCR_CALL_TIMEOUT", "90s")

	v.SetDefault("STORAGE_ENDPOINT", "http://localhost:9000/upload")
	v.SetDefault("STORAGE_FOLDER", "answer-sheets")
	v.SetDefault("STORAGE_SECRET", "dev_storage_secret")
	v.SetDefault("STORAGE_UPLOAD_TIMEOUT", "60s")
	v.SetDefault("STORAGE_RETRY_ATTEMPTS", 3)
	v.SetDefault("STORAGE_RETRY_DELAY", "5s")

	v.SetDefault("SCAN_PAGES_DIR", "./pages")
	v.SetDefault("SCAN_KEEP_COLLAGE", false)
	v.SetDefault("SCAN_MIN_PAGE_WIDTH", 300)
	v.SetDefault("SCAN_MAX_COLLAGE_BYTES", 1_500_000)
	v.SetDefault("SCAN_MAX_CANVAS_WIDTH", 3072)
	v.SetDefault("SCAN_MAX_CANVAS_HEIGHT", 3072)
	v.SetDefault("SCAN_MAX_QUESTIONS", 99)
	v.SetDefault("SCAN_INPUT_TIMEOUT", "300s")
	v.SetDefault("SCAN_CONFIRM_TIMEOUT", "10s")

	v.SetDefault("SESSION_CACHE_FILE", "./session.json")

	v.SetDefault("STATUS_ENABLED", true)
	v.SetDefault("STATUS_PORT", 8080)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ALLOWED_ORIGINS", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
