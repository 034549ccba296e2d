package render

import (
	"fmt"
	"strings"

	"novacontent/internal/model"
)

type Caption struct {
	Word      string
	StartTime float64
	EndTime   float64
}

type CaptionStyle struct {
	FontName     string
	FontSize     int
	PrimaryColor string
	OutlineColor string
	OutlineSize  int
	Bold         bool
}

func DefaultCaptionStyle() CaptionStyle {
	return CaptionStyle{FontName: "Arial", FontSize: 72, OutlineSize: 4, Bold: true}
}

// Captions spreads each scene's words evenly over the scene's duration,
// offset by the end of the previous scene.
func Captions(m *model.Manifest) []Caption {
	var (
		out    []Caption
		offset float64
	)
	for _, s := range m.Scenes {
		words := strings.Fields(s.Text)
		if len(words) > 0 && s.DurationInSeconds > 0 {
			perWord := s.DurationInSeconds / float64(len(words))
			for i, w := range words {
				start := offset + float64(i)*perWord
				out = append(out, Caption{Word: w, StartTime: start, EndTime: start + perWord})
			}
		}
		offset += s.DurationInSeconds
	}
	return out
}

// ToASS renders captions as an Advanced SubStation Alpha script sized for a
// width x height frame.
func ToASS(captions []Caption, style CaptionStyle, width, height int) string {
	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&sb, "PlayResX: %d\nPlayResY: %d\n\n", width, height)

	bold := 0
	if style.Bold {
		bold = -1
	}
	primary := toASSColor(style.PrimaryColor, "&H00FFFFFF")
	outline := toASSColor(style.OutlineColor, "&H00000000")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&sb, "Style: Default,%s,%d,%s,%s,%s,&H80000000,%d,0,0,0,100,100,0,0,1,%d,2,5,10,10,50,1\n\n",
		style.FontName, style.FontSize, primary, primary, outline, bold, style.OutlineSize)

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, c := range captions {
		fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n", formatASSTime(c.StartTime), formatASSTime(c.EndTime), c.Word)
	}
	return sb.String()
}

// toASSColor converts #RRGGBB to ASS's &H00BBGGRR.
func toASSColor(color, fallback string) string {
	if strings.HasPrefix(color, "&H") {
		return color
	}
	color = strings.TrimPrefix(color, "#")
	if len(color) != 6 {
		return fallback
	}
	return fmt.Sprintf("&H00%s%s%s", strings.ToUpper(color[4:6]), strings.ToUpper(color[2:4]), strings.ToUpper(color[0:2]))
}

func formatASSTime(seconds float64) string {
	whole := int(seconds)
	centis := int((seconds - float64(whole)) * 100)
	return fmt.Sprintf("%d:%02d:%02d.%02d", whole/3600, (whole%3600)/60, whole%60, centis)
}
