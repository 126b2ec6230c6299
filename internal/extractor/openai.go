package extractor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"golang.org/x/time/rate"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o-mini"
)

const systemPrompt = `You are a recipe digitization assistant. You are shown one page
from a scanned cookbook or recipe collection. If the page contains a recipe, extract it
into the provided schema with found=true. If the page has no recipe (cover, table of
contents, photo spread, index), respond with found=false and an empty title. Keep
ingredient quantities and units exactly as printed.`

// OpenAIConfig holds configuration for the OpenAI page extractor.
type OpenAIConfig struct {
	APIKey     string
	Model      string        // Vision-capable chat model (default gpt-4o-mini)
	RateLimit  float64       // Requests per second (default 2)
	MaxRetries int           // Retry attempts for SDK transport
	Timeout    time.Duration // HTTP timeout
	BaseURL    string        // Optional (tests)
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAIExtractor implements PageExtractor using the official OpenAI SDK.
type OpenAIExtractor struct {
	model   string
	client  openai.Client
	limiter *rate.Limiter
}

var _ PageExtractor = (*OpenAIExtractor)(nil)

// NewOpenAIExtractor creates a new OpenAI page extractor.
func NewOpenAIExtractor(cfg OpenAIConfig) *OpenAIExtractor {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2.0
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIExtractor{
		model:   cfg.Model,
		client:  openai.NewClient(opts...),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}
}

// Name returns the extractor identifier.
func (e *OpenAIExtractor) Name() string {
	return OpenAIName
}

// ExtractFromImage sends the page image to the vision model and parses the
// structured response.
func (e *OpenAIExtractor) ExtractFromImage(ctx context.Context, image []byte, hints Hints) (*Extraction, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("image is required")
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)

	userPrompt := "Extract the recipe from this page."
	if hints.Locale != "" || hints.Region != "" {
		userPrompt = fmt.Sprintf(
			"Extract the recipe from this page. The document locale is %q (region %q); keep measurements in the conventions of that locale.",
			hints.Locale, hints.Region,
		)
	}

	var schemaAny map[string]any
	if err := json.Unmarshal([]byte(extractionSchema), &schemaAny); err != nil {
		return nil, fmt.Errorf("failed to decode extraction schema: %w", err)
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(userPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "recipe_extraction",
					Description: openai.String("Structured recipe data for one page"),
					Schema:      schemaAny,
					Strict:      openai.Bool(true),
				},
			},
		},
	}

	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("vision model call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("vision model returned no choices")
	}

	return parseModelOutput([]byte(resp.Choices[0].Message.Content))
}
