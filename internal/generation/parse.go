package generation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"novacontent/internal/model"
)

var fencePattern = regexp.MustCompile("```json\\n?|\\n?```")

type rawScene struct {
	Text              string   `json:"text"`
	VisualPrompt      string   `json:"visualPrompt"`
	DurationInSeconds *float64 `json:"durationInSeconds"`
}

type rawScript struct {
	Title        *string    `json:"title"`
	Hook         *string    `json:"hook"`
	Body         *string    `json:"body"`
	CallToAction *string    `json:"callToAction"`
	Scenes       []rawScene `json:"scenes"`
}

// missing names the first required text field absent from the response.
// Empty strings count as present.
func (r rawScript) missing() string {
	fields := []struct {
		name  string
		value *string
	}{
		{"title", r.Title},
		{"hook", r.Hook},
		{"body", r.Body},
		{"callToAction", r.CallToAction},
	}
	for _, f := range fields {
		if f.value == nil {
			return f.name
		}
	}
	return ""
}

func StripFences(s string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(s, ""))
}

// ParseScript decodes a generation response, drops scenes without text or a
// visual prompt, and validates what is left. The four text fields must be
// present but may be empty.
func ParseScript(text string) (*model.Script, error) {
	var raw rawScript
	if err := json.Unmarshal([]byte(StripFences(text)), &raw); err != nil {
		return nil, fmt.Errorf("parse script json: %w", err)
	}

	if name := raw.missing(); name != "" {
		return nil, fmt.Errorf("invalid script: missing %s", name)
	}

	script := &model.Script{
		Title:        *raw.Title,
		Hook:         *raw.Hook,
		Body:         *raw.Body,
		CallToAction: *raw.CallToAction,
	}
	if raw.Scenes != nil {
		script.Scenes = make([]model.Scene, 0, len(raw.Scenes))
	}
	for _, s := range raw.Scenes {
		if strings.TrimSpace(s.Text) == "" || strings.TrimSpace(s.VisualPrompt) == "" {
			continue
		}
		duration := model.DefaultSceneDuration
		if s.DurationInSeconds != nil {
			duration = *s.DurationInSeconds
		}
		script.Scenes = append(script.Scenes, model.Scene{
			Text:              s.Text,
			VisualPrompt:      s.VisualPrompt,
			DurationInSeconds: duration,
		})
	}

	if err := script.Validate(); err != nil {
		return nil, err
	}
	return script, nil
}
