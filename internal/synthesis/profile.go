// Package synthesis keeps the user profile current by folding extracted
// facts into it in the background.
package synthesis

import (
	"strings"
	"time"
)

// UserProfile is the compact, long-lived description of the user.
type UserProfile struct {
	Version   int           `yaml:"version" json:"version"`
	UpdatedAt time.Time     `yaml:"updated_at" json:"updated_at"`
	Summary   string        `yaml:"-" json:"summary"`
	Facts     []ProfileFact `yaml:"facts" json:"facts"`
}

// ProfileFact is a fact the profile still carries verbatim.
type ProfileFact struct {
	ID           string    `yaml:"id" json:"id"`
	Text         string    `yaml:"text" json:"text"`
	SourceTurnID string    `yaml:"source_turn_id,omitempty" json:"source_turn_id,omitempty"`
	AddedAt      time.Time `yaml:"added_at" json:"added_at"`
}

// Empty reports whether the profile carries nothing.
func (p UserProfile) Empty() bool {
	return strings.TrimSpace(p.Summary) == "" && len(p.Facts) == 0
}

// Text renders the profile for prompt hydration: the summary followed by
// one line per fact.
func (p UserProfile) Text() string {
	var sb strings.Builder
	if s := strings.TrimSpace(p.Summary); s != "" {
		sb.WriteString(s)
	}
	for _, f := range p.Facts {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("- ")
		sb.WriteString(f.Text)
	}
	return sb.String()
}

func (p UserProfile) clone() UserProfile {
	out := p
	out.Facts = append([]ProfileFact(nil), p.Facts...)
	return out
}
