package config

import "time"

// Config holds larder configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Server     ServerCfg     `mapstructure:"server" yaml:"server"`
	Extraction ExtractionCfg `mapstructure:"extraction" yaml:"extraction"`
	Extractor  ExtractorCfg  `mapstructure:"extractor" yaml:"extractor"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// ExtractionCfg configures the document extraction pipeline.
type ExtractionCfg struct {
	// MaxPages is the hard ceiling on document page count. Uploads above
	// this are rejected at submission before any work is scheduled.
	MaxPages int `mapstructure:"max_pages" yaml:"max_pages"`
	// MaxUploadMB is the hard ceiling on the encoded upload size.
	MaxUploadMB int `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	// RenderDPI is the resolution pages are rasterized at for the vision model.
	RenderDPI int `mapstructure:"render_dpi" yaml:"render_dpi"`
	// RenderFormat is the raster output format (png or jpeg).
	RenderFormat string `mapstructure:"render_format" yaml:"render_format"`
	// FanoutWorkers is the worker count for the document fan-out lane.
	// Rendering is memory-intensive, so one orchestrator at a time is the default.
	FanoutWorkers int `mapstructure:"fanout_workers" yaml:"fanout_workers"`
	// ExtractionWorkers is the worker count for the page extraction lane,
	// shared across all in-flight documents.
	ExtractionWorkers int `mapstructure:"extraction_workers" yaml:"extraction_workers"`
	// PageTimeout bounds a single page extraction task.
	PageTimeout time.Duration `mapstructure:"page_timeout" yaml:"page_timeout"`
	// DocumentTimeout bounds a whole-document fan-out task.
	DocumentTimeout time.Duration `mapstructure:"document_timeout" yaml:"document_timeout"`
}

// ExtractorCfg configures the vision-model page extractor.
type ExtractorCfg struct {
	Type      string  `mapstructure:"type" yaml:"type"`             // "openai" or "mock"
	Model     string  `mapstructure:"model" yaml:"model"`           // Vision model name
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"`       // Supports ${ENV_VAR} syntax
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Extraction: ExtractionCfg{
			MaxPages:          50,
			MaxUploadMB:       50,
			RenderDPI:         300,
			RenderFormat:      "png",
			FanoutWorkers:     1,
			ExtractionWorkers: 3,
			PageTimeout:       5 * time.Minute,
			DocumentTimeout:   45 * time.Minute,
		},
		Extractor: ExtractorCfg{
			Type:      "openai",
			Model:     "gpt-4o-mini",
			APIKey:    "${OPENAI_API_KEY}",
			RateLimit: 2.0,
		},
	}
}

// MaxUploadBytes returns the upload ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Extraction.MaxUploadMB) << 20
}
