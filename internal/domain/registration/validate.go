package registration

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// one struct-level validator instance shared by every form session
var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldErrors maps a json field name to one human readable message.
type FieldErrors map[string]string

func (fe FieldErrors) Valid() bool { return len(fe) == 0 }

// Validate checks a draft against the flow's rules. It is synchronous and
// pure: no network, no mutation, never panics on bad input. Every invalid
// field gets exactly one message.
func (d *Draft) Validate(flow Flow) FieldErrors {
	out := FieldErrors{}

	err := validate.Struct(d)

	if err != nil {
		var verrs validator.ValidationErrors

		if ok := asValidationErrors(err, &verrs); ok {
			for _, fe := range verrs {
				name := jsonFieldName(fe.Field())
				if _, seen := out[name]; !seen {
					out[name] = validationMessage(fe.Tag(), fe.Param())
				}
			}
		} else {
			out["_"] = "invalid form data"
		}
	}

	// cross-field rules the tag syntax cannot express

	if _, seen := out["leaderPhone"]; !seen && digitCount(d.LeaderPhone) < 10 {
		out["leaderPhone"] = "must contain at least 10 digits"
	}

	if _, seen := out["alternateContact"]; !seen {
		switch {
		case digitCount(d.AlternateContact) < 10:
			out["alternateContact"] = "must contain at least 10 digits"
		case strings.TrimSpace(d.AlternateContact) == strings.TrimSpace(d.LeaderPhone):
			out["alternateContact"] = "must belong to a team member other than the leader"
		}
	}

	if d.TeamSize < flow.MinTeamSize || d.TeamSize > flow.MaxTeamSize {
		out["teamSize"] = "team size must be between " + strconv.Itoa(flow.MinTeamSize) + " and " + strconv.Itoa(flow.MaxTeamSize)
	} else if len(d.Participants) != flow.ParticipantCount(d.TeamSize) {
		out["participants"] = "participant list does not match the selected team size"
	} else {
		for i, p := range d.Participants {
			if flow.LeaderInList && i == 0 {
				// slot 0 is the leader in the general flow
				continue
			}
			if strings.TrimSpace(p.FullName) == "" {
				out["participants"] = "every team member needs a name"
				break
			}
		}
	}

	if d.VegetarianCount < 0 || d.VegetarianCount > d.TeamSize {
		out["vegetarianCount"] = "vegetarian count cannot exceed the team size"
	}

	if flow.RequireProjectIdea && len(strings.TrimSpace(d.ProjectIdea)) < 10 {
		out["projectIdea"] = "please describe your idea in at least 10 characters"
	}

	if flow.RequireReceipt {
		if d.Receipt == nil {
			out["paymentReceipt"] = "payment receipt is required"
		} else if !d.Receipt.TypeAllowed() {
			out["paymentReceipt"] = "receipt must be a JPEG, PNG or PDF"
		}
	}

	return out
}

func asValidationErrors(err error, out *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*out = verrs
	}
	return ok
}

// struct field -> json name; the draft uses lowerCamel json tags throughout,
// so lowering the first rune is enough.
func jsonFieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param + " characters"
	case "max":
		return "must be at most " + param + " characters"
	default:
		if param != "" {
			return "failed " + rule + " validation (" + param + ")"
		}
		return "failed " + rule + " validation"
	}
}
