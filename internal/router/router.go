package router

import "strings"

// Tier identifies which model class handles a message.
type Tier string

const (
	TierFast    Tier = "fast"
	TierCapable Tier = "capable"
)

// DefaultWordThreshold is the word count at which a message graduates to the
// capable tier. This is a routing policy knob, not a contract: short messages
// are assumed cheap to answer well, long ones worth the expensive model.
const DefaultWordThreshold = 25

// Selector maps message text to a model tier by whitespace word count.
// Messages with strictly fewer than WordThreshold words select Fast;
// everything else selects Capable.
type Selector struct {
	WordThreshold int
	Fast          string
	Capable       string
}

// Select returns the tier for the given message text.
func (s *Selector) Select(text string) Tier {
	threshold := s.WordThreshold
	if threshold <= 0 {
		threshold = DefaultWordThreshold
	}
	if len(strings.Fields(text)) < threshold {
		return TierFast
	}
	return TierCapable
}

// Model returns the configured model name for a tier.
func (s *Selector) Model(tier Tier) string {
	if tier == TierCapable {
		return s.Capable
	}
	return s.Fast
}
