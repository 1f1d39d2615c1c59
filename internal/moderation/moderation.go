// Package moderation holds the placeholder content check run on every new listing.
package moderation

import (
	"fmt"
	"strings"
)

// BannedTerms are matched as lower-case substrings, in order
var BannedTerms = []string{"racista", "ofensivo", "golpe", "fraude"}

// Verdict is the outcome of a moderation check
type Verdict struct {
	Approved bool
	Feedback string
	Term     string // first banned term found, empty when approved
}

// Check inspects the title and description together. It never fails.
func Check(title, description string) Verdict {
	text := strings.ToLower(title + " " + description)
	for _, term := range BannedTerms {
		if strings.Contains(text, term) {
			return Verdict{
				Approved: false,
				Term:     term,
				Feedback: fmt.Sprintf("Content rejected: contains inappropriate language (%q).", term),
			}
		}
	}
	return Verdict{Approved: true}
}
