package registration

import (
	"strings"
	"testing"
)

func validHackathonDraft() *Draft {
	d := &Draft{
		TeamName:             "Acers",
		CollegeName:          "City Engineering College",
		AffiliatedUniversity: "State Technical University",
		LeaderName:           "Asha Rao",
		LeaderEmail:          "a@x.com",
		LeaderPhone:          "9800000000",
		AlternateContact:     "9811111111",
		VegetarianCount:      1,
		ProjectIdea:          "An app that matches mentors to students based on skill graphs",
		Receipt: &Receipt{
			FileName:    "receipt.pdf",
			ContentType: "application/pdf",
			Size:        1024,
			Data:        strings.NewReader("%PDF-1.4"),
		},
	}
	d.SetTeamSize(HackathonFlow(25), 2)
	d.Participants[0].FullName = "B"
	return d
}

func TestSetTeamSizeKeepsListInSync(t *testing.T) {
	tests := []struct {
		name    string
		flow    Flow
		sizes   []int
		wantLen int
	}{
		{"hackathon grow", HackathonFlow(25), []int{2, 4}, 3},
		{"hackathon shrink", HackathonFlow(25), []int{4, 2}, 1},
		{"hackathon grow shrink grow", HackathonFlow(25), []int{2, 4, 3, 4}, 3},
		{"general counts the leader", GeneralFlow(), []int{1, 5, 3}, 3},
		{"same size twice is a no-op", HackathonFlow(25), []int{3, 3}, 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var d Draft
			for _, n := range tc.sizes {
				d.SetTeamSize(tc.flow, n)

				if got := len(d.Participants); got != tc.flow.ParticipantCount(n) {
					t.Fatalf("after SetTeamSize(%d): got %d participants, want %d", n, got, tc.flow.ParticipantCount(n))
				}
			}

			if len(d.Participants) != tc.wantLen {
				t.Fatalf("final list length = %d, want %d", len(d.Participants), tc.wantLen)
			}
		})
	}
}

func TestSetTeamSizePreservesSurvivingEntries(t *testing.T) {
	flow := HackathonFlow(25)

	var d Draft
	d.SetTeamSize(flow, 4)
	d.Participants[0].FullName = "first"
	d.Participants[1].FullName = "second"
	d.Participants[2].FullName = "third"

	// shrink: surviving index keeps its in-progress edit
	d.SetTeamSize(flow, 3)

	if d.Participants[0].FullName != "first" || d.Participants[1].FullName != "second" {
		t.Fatalf("surviving entries were not preserved: %+v", d.Participants)
	}
}

func TestSetTeamSizeDoesNotResurrectDiscardedEntries(t *testing.T) {
	flow := HackathonFlow(25)

	var d Draft
	d.SetTeamSize(flow, 4)
	d.Participants[2].FullName = "discarded"

	d.SetTeamSize(flow, 2)
	d.SetTeamSize(flow, 4)

	if d.Participants[2].FullName != "" {
		t.Fatalf("discarded entry content reappeared: %q", d.Participants[2].FullName)
	}
}

func TestValidateAcceptsCompleteDraft(t *testing.T) {
	d := validHackathonDraft()

	errs := d.Validate(HackathonFlow(25))

	if !errs.Valid() {
		t.Fatalf("expected valid draft, got field errors: %v", errs)
	}
}

func TestValidateFieldRules(t *testing.T) {
	flow := HackathonFlow(25)

	tests := []struct {
		name      string
		mutate    func(*Draft)
		wantField string
	}{
		{
			name:      "team name too short",
			mutate:    func(d *Draft) { d.TeamName = "A" },
			wantField: "teamName",
		},
		{
			name:      "bad leader email",
			mutate:    func(d *Draft) { d.LeaderEmail = "not-an-email" },
			wantField: "leaderEmail",
		},
		{
			name:      "leader phone too few digits",
			mutate:    func(d *Draft) { d.LeaderPhone = "98000" },
			wantField: "leaderPhone",
		},
		{
			name:      "alternate contact equals leader phone",
			mutate:    func(d *Draft) { d.AlternateContact = d.LeaderPhone },
			wantField: "alternateContact",
		},
		{
			name:      "vegetarian count above team size",
			mutate:    func(d *Draft) { d.VegetarianCount = 3 },
			wantField: "vegetarianCount",
		},
		{
			name:      "team size out of range",
			mutate:    func(d *Draft) { d.TeamSize = 7 },
			wantField: "teamSize",
		},
		{
			name:      "blank participant name",
			mutate:    func(d *Draft) { d.Participants[0].FullName = "  " },
			wantField: "participants",
		},
		{
			name:      "project idea too short",
			mutate:    func(d *Draft) { d.ProjectIdea = "an app" },
			wantField: "projectIdea",
		},
		{
			name:      "missing receipt",
			mutate:    func(d *Draft) { d.Receipt = nil },
			wantField: "paymentReceipt",
		},
		{
			name:      "receipt with disallowed type",
			mutate:    func(d *Draft) { d.Receipt.ContentType = "image/gif" },
			wantField: "paymentReceipt",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := validHackathonDraft()
			tc.mutate(d)

			errs := d.Validate(flow)

			if errs.Valid() {
				t.Fatalf("expected field error on %q, draft passed validation", tc.wantField)
			}

			if _, ok := errs[tc.wantField]; !ok {
				t.Fatalf("expected message for %q, got %v", tc.wantField, errs)
			}
		})
	}
}

func TestValidateGeneralFlowSkipsHackathonOnlyRules(t *testing.T) {
	flow := GeneralFlow()

	d := validHackathonDraft()
	d.ProjectIdea = ""
	d.Receipt = nil
	d.SetTeamSize(flow, 1)
	d.Participants[0].FullName = d.LeaderName
	d.VegetarianCount = 1

	errs := d.Validate(flow)

	if !errs.Valid() {
		t.Fatalf("general flow draft should validate without idea/receipt, got %v", errs)
	}
}
