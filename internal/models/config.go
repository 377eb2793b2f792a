package models

import "time"

// Config represents the service configuration, loaded from config.yaml with
// environment overrides applied in cmd/server.
type Config struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	OCR      OCRConfig      `yaml:"ocr"`
	Layout   LayoutConfig   `yaml:"layout"`
	AI       AIConfig       `yaml:"ai"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Registry RegistryConfig `yaml:"registry"`
	Storage  StorageConfig  `yaml:"storage"`
	Auth     AuthConfig     `yaml:"auth"`
}

// OCRConfig represents OCR-specific configuration.
type OCRConfig struct {
	Engine   string `yaml:"engine"`   // "tesseract"
	Language string `yaml:"language"` // OCR language (default: "eng")

	// MinTextLength is the shortest OCR output treated as usable text.
	// Anything shorter fails the tier instead of being pattern-matched.
	MinTextLength int `yaml:"min_text_length"`
}

// LayoutConfig points at the layout-understanding service. Optional; when the
// service is unreachable the LLM tier runs without layout hints.
type LayoutConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

// AIConfig represents AI provider configuration.
type AIConfig struct {
	OpenAI OpenAIConfig `yaml:"openai"`
	Gemini GeminiConfig `yaml:"gemini"`

	DefaultProvider string `yaml:"default_provider"` // "openai" or "gemini"
}

// OpenAIConfig for OpenAI/Azure OpenAI.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"` // For custom endpoints
	Model   string `yaml:"model"`              // Default: "gpt-4o-mini"
}

// GeminiConfig for Google Gemini (vision tier).
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // Default: "gemini-1.5-flash"
}

// PipelineConfig holds thresholds and toggles for the tier chain.
type PipelineConfig struct {
	PatternThreshold float64 `yaml:"pattern_threshold"` // default 0.60
	LayoutThreshold  float64 `yaml:"layout_threshold"`  // default 0.50

	// TierTimeout bounds every external call a tier makes; a timeout is a
	// tier failure (fall through), never a fatal error.
	TierTimeout Duration `yaml:"tier_timeout"` // default 60s

	UsePattern bool `yaml:"use_pattern"`
	UseLayout  bool `yaml:"use_layout"`
	UseOCRLLM  bool `yaml:"use_ocr_llm"`
	UseVision  bool `yaml:"use_vision"`
}

// RegistryConfig locates the persisted vendor registry file.
type RegistryConfig struct {
	Path string `yaml:"path"` // default "vendor_registry.json"
}

// StorageConfig points at the MinIO archive for uploaded source documents.
// Optional; an empty endpoint disables archiving.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"` // default "invoices"
	UseSSL    bool   `yaml:"use_ssl"`
}

// AuthConfig controls API authentication. Optional; an empty JWT secret
// leaves the API open (local / OCR-only deployments).
type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     Duration `yaml:"token_ttl"` // default 24h
	Username     string        `yaml:"username"`
	PasswordHash string        `yaml:"password_hash"` // bcrypt
}

// ApplyDefaults fills unset fields with the reference defaults.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.OCR.Engine == "" {
		c.OCR.Engine = "tesseract"
	}
	if c.OCR.Language == "" {
		c.OCR.Language = "eng"
	}
	if c.OCR.MinTextLength == 0 {
		c.OCR.MinTextLength = 50
	}
	if c.Layout.RequestTimeout == 0 {
		c.Layout.RequestTimeout = Duration(15 * time.Second)
	}
	if c.AI.DefaultProvider == "" {
		c.AI.DefaultProvider = "openai"
	}
	if c.AI.OpenAI.Model == "" {
		c.AI.OpenAI.Model = "gpt-4o-mini"
	}
	if c.AI.Gemini.Model == "" {
		c.AI.Gemini.Model = "gemini-1.5-flash"
	}
	if c.Pipeline.PatternThreshold == 0 {
		c.Pipeline.PatternThreshold = 0.60
	}
	if c.Pipeline.LayoutThreshold == 0 {
		c.Pipeline.LayoutThreshold = 0.50
	}
	if c.Pipeline.TierTimeout == 0 {
		c.Pipeline.TierTimeout = Duration(60 * time.Second)
	}
	if c.Registry.Path == "" {
		c.Registry.Path = "vendor_registry.json"
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = "invoices"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = Duration(24 * time.Hour)
	}
}
