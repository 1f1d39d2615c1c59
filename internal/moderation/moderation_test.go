package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		description string
		approved    bool
		term        string
	}{
		{"clean listing", "iPhone 14", "Like new, 128GB", true, ""},
		{"banned word in description", "iPhone 14", "não é fraude", false, "fraude"},
		{"case insensitive", "GOLPE de sorte", "bicicleta", false, "golpe"},
		{"substring match", "Sofá", "tecido antifraudes", false, "fraude"},
		{"first term in list order wins", "fraude", "ofensivo", false, "ofensivo"},
		{"empty text", "", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Check(tt.title, tt.description)
			assert.Equal(t, tt.approved, v.Approved)
			assert.Equal(t, tt.term, v.Term)
			if tt.approved {
				assert.Empty(t, v.Feedback)
			}
		})
	}
}

func TestCheckFeedbackNamesTerm(t *testing.T) {
	v := Check("iPhone 14", "não é fraude")
	assert.Equal(t, `Content rejected: contains inappropriate language ("fraude").`, v.Feedback)
}
