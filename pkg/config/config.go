package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Storage    StorageConfig
	OCR        OCRConfig
	LLM        LLMConfig
	Extraction ExtractionConfig
	Logger     LoggerConfig
}

type AppConfig struct {
	Name string
	Env  string
}

type LoggerConfig struct {
	Level       string
	Development bool
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    int
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns DATABASE_URL when set, otherwise a keyword/value string built from the parts.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type JWTConfig struct {
	SecretKey  string
	Algorithm  string
	AccessExp  time.Duration
	RefreshExp time.Duration
}

type StorageConfig struct {
	Dir string
}

type OCRConfig struct {
	Lang string
}

type LLMConfig struct {
	Provider string
	Ollama   OllamaConfig
	GigaChat GigaChatConfig
}

const (
	ProviderOllama   = "ollama"
	ProviderGigaChat = "gigachat"
)

type OllamaConfig struct {
	URL     string
	Model   string
	Timeout time.Duration
}

type GigaChatConfig struct {
	APIKey             string
	Scope              string
	Model              string
	InsecureSkipVerify bool
}

type ExtractionConfig struct {
	DefaultCurrency string
	RatePerMinute   int
	RateBurst       int
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables work the same way
	for _, envFile := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	p := &parser{}

	readTimeout := p.int("SERVER_READ_TIMEOUT", 30)
	writeTimeout := p.int("SERVER_WRITE_TIMEOUT", 30)
	bodyLimitMB := p.int("SERVER_BODY_LIMIT_MB", 20)
	accessMinutes := p.int("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	refreshDays := p.int("REFRESH_TOKEN_EXPIRE_DAYS", 7)
	ollamaTimeout := p.int("OLLAMA_TIMEOUT_SECONDS", 120)
	ratePerMinute := p.int("EXTRACTION_RATE_PER_MINUTE", 30)
	rateBurst := p.int("EXTRACTION_RATE_BURST", 5)
	insecureSkipVerify := p.bool("GIGACHAT_INSECURE_SKIP_VERIFY", false)

	if p.err != nil {
		return nil, p.err
	}

	env := getEnv("APP_ENV", "local")
	provider := strings.ToLower(getEnv("LLM_PROVIDER", ProviderOllama))
	if provider != ProviderOllama && provider != ProviderGigaChat {
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", provider)
	}

	return &Config{
		App: AppConfig{
			Name: getEnv("APP_NAME", "Receipt Keeper API"),
			Env:  env,
		},
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
			BodyLimit:    bodyLimitMB * 1024 * 1024,
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "receipt_keeper"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("SECRET_KEY", "change-me"),
			Algorithm:  getEnv("JWT_ALGORITHM", "HS256"),
			AccessExp:  time.Duration(accessMinutes) * time.Minute,
			RefreshExp: time.Duration(refreshDays) * 24 * time.Hour,
		},
		Storage: StorageConfig{
			Dir: getEnv("STORAGE_DIR", "storage"),
		},
		OCR: OCRConfig{
			Lang: getEnv("OCR_LANG", "eng"),
		},
		LLM: LLMConfig{
			Provider: provider,
			Ollama: OllamaConfig{
				URL:     strings.TrimRight(getEnv("OLLAMA_URL", "http://localhost:11434"), "/"),
				Model:   getEnv("OLLAMA_MODEL", "llama3.1"),
				Timeout: time.Duration(ollamaTimeout) * time.Second,
			},
			GigaChat: GigaChatConfig{
				APIKey:             getEnv("GIGACHAT_API_KEY", ""),
				Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
				Model:              getEnv("GIGACHAT_MODEL", "GigaChat"),
				InsecureSkipVerify: insecureSkipVerify,
			},
		},
		Extraction: ExtractionConfig{
			DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "CAD")),
			RatePerMinute:   ratePerMinute,
			RateBurst:       rateBurst,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: env == "local",
		},
	}, nil
}

// parser keeps the first malformed value so Load can report it once.
type parser struct {
	err error
}

func (p *parser) int(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("invalid %s %q: %w", key, raw, err)
		}
		return defaultValue
	}
	return v
}

func (p *parser) bool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("invalid %s %q: %w", key, raw, err)
		}
		return defaultValue
	}
	return v
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
