package model

// RenderJob is the immutable payload of a queued render. It carries the
// niche so the worker never has to look it up again.
type RenderJob struct {
	ProductionID      int64  `json:"videoId"`
	Niche             Niche  `json:"nicheConfig"`
	OutputDestination string `json:"outputDestination"`
}
