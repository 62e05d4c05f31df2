package registration

import (
	"io"
	"strings"
	"unicode"
)

// Receipt is the payment proof attached to a draft before submit.
type Receipt struct {
	FileName    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// the only receipt types the form accepts
var AllowedReceiptTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"application/pdf": {},
}

func (r *Receipt) TypeAllowed() bool {
	if r == nil {
		return false
	}
	_, ok := AllowedReceiptTypes[strings.ToLower(strings.TrimSpace(r.ContentType))]
	return ok
}

type Participant struct {
	FullName string `json:"fullName"`
}

// Draft is the client-side form state for one registration session. It is
// mutated field by field while the user types and reset on success.
type Draft struct {
	TeamName             string        `json:"teamName" validate:"required,min=2,max=100"`
	CollegeName          string        `json:"collegeName" validate:"required,min=2"`
	AffiliatedUniversity string        `json:"affiliatedUniversity" validate:"required,min=2"`
	LeaderName           string        `json:"leaderName" validate:"required,min=2"`
	LeaderEmail          string        `json:"leaderEmail" validate:"required,email"`
	LeaderPhone          string        `json:"leaderPhone" validate:"required"`
	AlternateContact     string        `json:"alternateContact" validate:"required"`
	TeamSize             int           `json:"teamSize"`
	Participants         []Participant `json:"participants"`
	VegetarianCount      int           `json:"vegetarianCount"`
	ProjectIdea          string        `json:"projectIdea"`

	Receipt *Receipt `json:"-"`
}

// SetTeamSize keeps the participant list in sync with the selected team size.
// Shrinking truncates from the tail, growing appends fresh empty entries, and
// entries whose index survives the resize keep whatever was typed into them.
// Calling it twice with the same size is a no-op.
func (d *Draft) SetTeamSize(flow Flow, size int) {
	d.TeamSize = size

	want := flow.ParticipantCount(size)

	switch {
	case want < len(d.Participants):
		d.Participants = d.Participants[:want]
	case want > len(d.Participants):
		for len(d.Participants) < want {
			d.Participants = append(d.Participants, Participant{})
		}
	}
}

// digitCount ignores separators people type into phone fields.
func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
