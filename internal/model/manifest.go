package model

type ResolvedScene struct {
	Text              string  `json:"text"`
	AssetURL          string  `json:"assetUrl"`
	AudioURL          string  `json:"audioUrl"`
	DurationInSeconds float64 `json:"durationInSeconds"`
}

// Manifest is the render-ready description of a production. Scene order is
// the script's scene order.
type Manifest struct {
	Title  string          `json:"title"`
	Scenes []ResolvedScene `json:"scenes"`
}

func (m *Manifest) TotalDuration() float64 {
	var total float64
	for _, s := range m.Scenes {
		total += s.DurationInSeconds
	}
	return total
}

// Offsets returns the start time of every scene on a sequential timeline.
func (m *Manifest) Offsets() []float64 {
	offsets := make([]float64, len(m.Scenes))
	var at float64
	for i, s := range m.Scenes {
		offsets[i] = at
		at += s.DurationInSeconds
	}
	return offsets
}
