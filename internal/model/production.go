package model

import "time"

type Status string

const (
	StatusScripting Status = "scripting"
	StatusRendering Status = "rendering"
	StatusPublished Status = "published"
	StatusError     Status = "error"
)

var transitions = map[Status][]Status{
	StatusScripting: {StatusRendering, StatusError},
	StatusRendering: {StatusPublished, StatusError},
}

func (s Status) Valid() bool {
	switch s {
	case StatusScripting, StatusRendering, StatusPublished, StatusError:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusError
}

func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Production is one video under production. Manifest is set only while
// rendering or published, VideoURL only once published.
type Production struct {
	ID          int64      `json:"id"`
	NicheID     int64      `json:"nicheId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Status      Status     `json:"status"`
	Script      *Script    `json:"script,omitempty"`
	Manifest    *Manifest  `json:"renderManifest,omitempty"`
	VideoURL    string     `json:"videoUrl,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// Consistent checks the field invariants tied to Status.
func (p *Production) Consistent() bool {
	if p.Manifest != nil && p.Status != StatusRendering && p.Status != StatusPublished {
		return false
	}
	if p.VideoURL != "" && p.Status != StatusPublished {
		return false
	}
	return true
}
