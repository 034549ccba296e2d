package model

import (
	"strings"
	"time"
)

type Niche struct {
	ID             int64     `json:"id" yaml:"-"`
	Name           string    `json:"name" yaml:"name" validate:"required"`
	Tone           string    `json:"tone" yaml:"tone" validate:"required"`
	TargetAudience string    `json:"targetAudience" yaml:"target_audience" validate:"required"`
	VisualStyle    string    `json:"visualStyle" yaml:"visual_style" validate:"required"`
	PromptTemplate string    `json:"promptTemplate" yaml:"prompt_template" validate:"required"`
	CreatedAt      time.Time `json:"createdAt" yaml:"-"`
}

func (n *Niche) Validate() error {
	return validate.Struct(n)
}

// RenderPrompt fills the template placeholders. Unknown placeholders are
// left as they are.
func (n *Niche) RenderPrompt(topic string) string {
	r := strings.NewReplacer(
		"{tone}", n.Tone,
		"{targetAudience}", n.TargetAudience,
		"{visualStyle}", n.VisualStyle,
		"{topic}", topic,
	)
	return r.Replace(n.PromptTemplate)
}
