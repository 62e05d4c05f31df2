package registration

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// the backend enforces uniqueness over leader email / phone / team name
	ErrAlreadyRegistered = errors.New("registration already exists")
	// terminal closed state once the team quota is reached
	ErrRegistrationClosed = errors.New("registration is closed")
	ErrNotFound           = errors.New("registration not found")
)

// maximum denormalized member columns across both flows
const MaxMemberSlots = 5

// Record is the persisted shape of a successful submission: the draft
// flattened with member names in fixed slots, plus the stored receipt URL.
// Created exactly once per pipeline run, never mutated afterwards.
type Record struct {
	ID                   string    `json:"id"`
	Flow                 string    `json:"flow"`
	TeamName             string    `json:"teamName"`
	CollegeName          string    `json:"collegeName"`
	AffiliatedUniversity string    `json:"affiliatedUniversity"`
	LeaderName           string    `json:"leaderName"`
	LeaderEmail          string    `json:"leaderEmail"`
	LeaderPhone          string    `json:"leaderPhone"`
	AlternateContact     string    `json:"alternateContact"`
	TeamSize             int       `json:"teamSize"`
	Members              [MaxMemberSlots]string `json:"members"`
	VegetarianCount      int       `json:"vegetarianCount"`
	ProjectIdea          string    `json:"projectIdea,omitempty"`
	ReceiptURL           string    `json:"receiptUrl,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
}

// NewRecordFromDraft flattens a validated draft into its persisted row shape.

func NewRecordFromDraft(flow Flow, d *Draft, receiptURL string) Record {
	rec := Record{
		ID:                   uuid.NewString(),
		Flow:                 flow.Name,
		TeamName:             d.TeamName,
		CollegeName:          d.CollegeName,
		AffiliatedUniversity: d.AffiliatedUniversity,
		LeaderName:           d.LeaderName,
		LeaderEmail:          d.LeaderEmail,
		LeaderPhone:          d.LeaderPhone,
		AlternateContact:     d.AlternateContact,
		TeamSize:             d.TeamSize,
		VegetarianCount:      d.VegetarianCount,
		ProjectIdea:          d.ProjectIdea,
		ReceiptURL:           receiptURL,
		CreatedAt:            time.Now().UTC(),
	}

	for i, p := range d.Participants {
		if i >= MaxMemberSlots {
			break
		}
		rec.Members[i] = p.FullName
	}

	return rec
}

// Summary carries the submitted details to the confirmation view as transient
// navigation state, so the client never has to re-fetch what it just sent.
type Summary struct {
	TeamName             string `json:"teamName"`
	CollegeName          string `json:"collegeName"`
	AffiliatedUniversity string `json:"affiliatedUniversity"`
	LeaderName           string `json:"leaderName"`
	LeaderEmail          string `json:"leaderEmail"`
	LeaderPhone          string `json:"leaderPhone"`
	TeamSize             int    `json:"teamSize"`
}

func (r Record) Summary() Summary {
	return Summary{
		TeamName:             r.TeamName,
		CollegeName:          r.CollegeName,
		AffiliatedUniversity: r.AffiliatedUniversity,
		LeaderName:           r.LeaderName,
		LeaderEmail:          r.LeaderEmail,
		LeaderPhone:          r.LeaderPhone,
		TeamSize:             r.TeamSize,
	}
}
