// Package gemini provides AI stock analysis through the Gemini API.
package gemini

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dmarques/stockfolio/internal/domain"
)

// systemPrompt defines the analyst role and the scoring bands. The response
// shape itself is enforced by the structured-output schema below.
const systemPrompt = `You are a financial analyst AI that provides stock recommendations based on technical analysis.
Analyze the provided stock data and technical indicators to generate a recommendation score
between 0 and 100, where:
- 0-33: Sell recommendation
- 34-66: Hold recommendation
- 67-100: Buy recommendation

Base your analysis on technical indicators, price trends, and volume patterns.
Be objective and data-driven. Do not provide financial advice.`

// Factor is one contributing element of an analysis.
type Factor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Impact      string `json:"impact"` // positive, neutral or negative
}

// StockAnalysis is the validated structured result of an AI analysis.
type StockAnalysis struct {
	Score     int      `json:"score"`
	Reasoning string   `json:"reasoning"`
	Factors   []Factor `json:"factors"`
}

// responseSchema constrains the completion to the exact analysis shape.
var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"score":     {Type: genai.TypeInteger},
		"reasoning": {Type: genai.TypeString},
		"factors": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":        {Type: genai.TypeString},
					"description": {Type: genai.TypeString},
					"impact": {
						Type: genai.TypeString,
						Enum: []string{"positive", "neutral", "negative"},
					},
				},
				Required: []string{"name", "description", "impact"},
			},
		},
	},
	Required: []string{"score", "reasoning", "factors"},
}

// Client wraps the Gemini API for stock analysis.
type Client struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, apiKey, model string, log zerolog.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, domain.Wrap(domain.KindRecommendationUnavailable, err, "failed to create Gemini client")
	}

	return &Client{
		client: client,
		model:  model,
		log:    log.With().Str("client", "gemini").Logger(),
	}, nil
}

// Analyze sends the prompt to the model and returns the validated structured
// analysis. Malformed or schema-violating output is rejected, never passed
// through.
func (c *Client) Analyze(ctx context.Context, prompt string) (*StockAnalysis, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema,
		Temperature:       genai.Ptr[float32](0.7),
	})
	if err != nil {
		return nil, domain.Wrap(domain.KindRecommendationUnavailable, err, "AI analysis request failed")
	}

	text := resp.Text()
	if text == "" {
		return nil, domain.E(domain.KindRecommendationUnavailable, "AI returned an empty completion")
	}

	var analysis StockAnalysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		c.log.Error().Err(err).Str("completion", text).Msg("Failed to parse AI completion")
		return nil, domain.Wrap(domain.KindRecommendationUnavailable, err, "AI returned malformed JSON")
	}

	if err := validate(&analysis); err != nil {
		c.log.Error().Err(err).Msg("AI completion failed validation")
		return nil, err
	}

	c.log.Info().Int("score", analysis.Score).Msg("Analysis completed")
	return &analysis, nil
}

// validate enforces the analysis contract: score in [0,100], non-empty
// reasoning, 1-5 factors with valid impacts.
func validate(a *StockAnalysis) error {
	if a.Score < 0 || a.Score > 100 {
		return domain.E(domain.KindRecommendationUnavailable, "AI score %d out of range [0,100]", a.Score)
	}
	if a.Reasoning == "" {
		return domain.E(domain.KindRecommendationUnavailable, "AI returned empty reasoning")
	}
	if len(a.Factors) < 1 || len(a.Factors) > 5 {
		return domain.E(domain.KindRecommendationUnavailable, "AI returned %d factors, expected 1-5", len(a.Factors))
	}
	for _, f := range a.Factors {
		if f.Name == "" || f.Description == "" {
			return domain.E(domain.KindRecommendationUnavailable, "AI returned a factor with missing fields")
		}
		switch f.Impact {
		case "positive", "neutral", "negative":
		default:
			return domain.E(domain.KindRecommendationUnavailable, "AI returned invalid factor impact %q", f.Impact)
		}
	}
	return nil
}
