package endpoints

import (
	"github.com/larderhq/larder/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// MaxUploadBytes bounds upload request bodies before any decoding.
	MaxUploadBytes int64
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Extraction job endpoints
		&SubmitExtractionEndpoint{MaxUploadBytes: cfg.MaxUploadBytes},
		&GetExtractionEndpoint{},
		&CancelExtractionEndpoint{},
	}
}
