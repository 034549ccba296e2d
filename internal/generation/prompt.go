package generation

import (
	"fmt"
	"strings"

	"novacontent/internal/model"
)

const DefaultTopic = "a surprising fact"

const outputExample = `{
  "title": "My Video",
  "hook": "Check this out!",
  "body": "This is the body.",
  "callToAction": "Follow me.",
  "scenes": [
    { "text": "Scene 1 text", "visualPrompt": "Image of scene 1", "durationInSeconds": 5 }
  ]
}`

func SystemInstruction(n model.Niche) string {
	var b strings.Builder
	b.WriteString("You are a viral video scriptwriter. Your task is to generate a complete script for a short-form video.\n")
	fmt.Fprintf(&b, "- Your persona and tone must be: %s\n", n.Tone)
	fmt.Fprintf(&b, "- The target audience is: %s\n", n.TargetAudience)
	fmt.Fprintf(&b, "- The visual style is: %s\n", n.VisualStyle)
	b.WriteString("- You must strictly follow the JSON schema provided.\n")
	b.WriteString("- The 'visualPrompt' in each scene should be a detailed instruction for an AI image generator.\n\n")
	b.WriteString("Example Output Format:\n")
	b.WriteString(outputExample)
	return b.String()
}

// UserPrompt asks for a script about topic and appends the niche's own
// template when it has one.
func UserPrompt(n model.Niche, topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = DefaultTopic
	}

	prompt := fmt.Sprintf("Generate a viral video script about %s.", topic)
	if tmpl := strings.TrimSpace(n.RenderPrompt(topic)); tmpl != "" {
		prompt += "\n\n" + tmpl
	}
	return prompt
}
