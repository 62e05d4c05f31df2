package notifications

import "context"

// SendConfirmationInput mirrors the JSON body the external email function
// expects. Field names on the wire are snake_case per its contract.
type SendConfirmationInput struct {
	TeamName    string `json:"team_name"`
	LeaderName  string `json:"leader_name"`
	LeaderEmail string `json:"leader_email"`
	TeamSize    int    `json:"team_size"`
}

type Notifier interface {
	SendConfirmation(ctx context.Context, input SendConfirmationInput) error
}
