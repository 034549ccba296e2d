package model

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const DefaultSceneDuration = 5.0

type Scene struct {
	Text              string  `json:"text" validate:"required"`
	VisualPrompt      string  `json:"visualPrompt" validate:"required"`
	DurationInSeconds float64 `json:"durationInSeconds" validate:"gt=0"`
}

// Script text fields may be empty. Presence is checked when the generation
// response is decoded.
type Script struct {
	Title        string  `json:"title"`
	Hook         string  `json:"hook"`
	Body         string  `json:"body"`
	CallToAction string  `json:"callToAction"`
	Scenes       []Scene `json:"scenes" validate:"required,min=1,dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (s *Script) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid script: %w", err)
	}
	return nil
}

// Description is the text stored on the production record: hook then body.
func (s *Script) Description() string {
	return strings.TrimSpace(s.Hook + "\n\n" + s.Body)
}
