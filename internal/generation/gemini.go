package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

const (
	DefaultGeminiModel       = "gemini-flash-latest"
	DefaultGeminiTemperature = 1.0
)

var sceneSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"text":              {Type: genai.TypeString, Description: "The spoken text or voiceover for this scene."},
		"visualPrompt":      {Type: genai.TypeString, Description: "A detailed prompt for an image generation model to create the visual for this scene."},
		"durationInSeconds": {Type: genai.TypeNumber, Description: "The duration of this scene in seconds."},
	},
	Required: []string{"text", "visualPrompt"},
}

var scriptSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":        {Type: genai.TypeString, Description: "A catchy, viral-style title for the video."},
		"hook":         {Type: genai.TypeString, Description: "A short hook that captures attention in the first 3 seconds."},
		"body":         {Type: genai.TypeString, Description: "The main content of the script, delivered after the hook."},
		"callToAction": {Type: genai.TypeString, Description: "A call to action at the end of the video."},
		"scenes":       {Type: genai.TypeArray, Items: sceneSchema, Description: "The scenes that make up the video."},
	},
	Required: []string{"title", "hook", "body", "callToAction", "scenes"},
}

var _ Generator = (*GeminiGenerator)(nil)

type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string, temperature float32) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiGenerator{client: client, model: model, temperature: temperature}, nil
}

func (g *GeminiGenerator) Name() string {
	return "gemini"
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemInstruction}},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema:   scriptSchema,
		Temperature:      genai.Ptr(g.temperature),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), config)
	if err != nil {
		if isGeminiRateLimit(err) {
			return "", &RateLimitError{Err: err}
		}
		return "", fmt.Errorf("generate: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response")
	}

	text := resp.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", fmt.Errorf("empty response")
	}
	return text, nil
}

func isGeminiRateLimit(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code == http.StatusTooManyRequests
	}
	return false
}
