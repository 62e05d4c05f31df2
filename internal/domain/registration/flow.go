package registration

import "errors"

// A Flow describes one registration form variant. The hackathon flow keeps the
// leader out of the participant list; the general flow puts the leader in slot 0.
type Flow struct {
	Name               string
	MinTeamSize        int
	MaxTeamSize        int
	LeaderInList       bool
	CapacityLimit      int // 0 means unlimited
	RequireProjectIdea bool
	RequireReceipt     bool
}

var ErrUnknownFlow = errors.New("unknown registration flow")

func HackathonFlow(capacityLimit int) Flow {
	return Flow{
		Name:               "hackathon",
		MinTeamSize:        2,
		MaxTeamSize:        4,
		LeaderInList:       false,
		CapacityLimit:      capacityLimit,
		RequireProjectIdea: true,
		RequireReceipt:     true,
	}
}

func GeneralFlow() Flow {
	return Flow{
		Name:         "general",
		MinTeamSize:  1,
		MaxTeamSize:  5,
		LeaderInList: true,
	}
}

// ParticipantCount is the list length implied by a chosen team size.

func (f Flow) ParticipantCount(teamSize int) int {
	if f.LeaderInList {
		return teamSize
	}

	n := teamSize - 1

	if n < 0 {
		n = 0
	}

	return n
}
