package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rehabfit/backend/internal/store"
)

func TestConversationalContext_FullProfile(t *testing.T) {
	user := &store.User{
		Name:              "Alex",
		InjuryType:        "ACL tear",
		InjuryDescription: "Torn during football",
		FitnessGoal:       "run a 5k",
	}

	got := ConversationalContext(user, "Pain dropped from 7 to 3 over two weeks\n")

	assert.Contains(t, got, "You are assisting Alex.")
	assert.Contains(t, got, "They have a ACL tear injury.")
	assert.Contains(t, got, "Injury details: Torn during football.")
	assert.Contains(t, got, "Their fitness goal is run a 5k.")
	assert.Contains(t, got, "Previous conversation context:\nPain dropped from 7 to 3 over two weeks")
}

func TestConversationalContext_OmitsEmptyFields(t *testing.T) {
	user := &store.User{Name: "Alex"}

	got := ConversationalContext(user, "")

	assert.Contains(t, got, "You are assisting Alex.")
	assert.NotContains(t, got, "injury")
	assert.NotContains(t, got, "Injury details")
	assert.NotContains(t, got, "fitness goal")
}

func TestConversationalContext_NilUser(t *testing.T) {
	got := ConversationalContext(nil, "retrieved text")
	assert.Equal(t, "retrieved text", got)
}

func TestProfileFactsBlock(t *testing.T) {
	user := &store.User{Name: "Alex", InjuryType: "ACL tear", FitnessGoal: "run a 5k"}

	got := ProfileFactsBlock(user)

	assert.True(t, strings.HasPrefix(got, "User Profile:\n"))
	assert.Contains(t, got, "Name: Alex\n")
	assert.Contains(t, got, "Injury Type: ACL tear\n")
	assert.Contains(t, got, "Fitness Goal: run a 5k\n")

	assert.Empty(t, ProfileFactsBlock(nil))
	assert.NotContains(t, ProfileFactsBlock(&store.User{Name: "Alex"}), "Injury Type")
}

func TestProgressSummary(t *testing.T) {
	assert.Equal(t, "No progress yet.\n", ProgressSummary(nil))

	entries := []store.Progress{
		{Date: "2026-08-01", PainLevel: 7, Mobility: 40, Strength: 30},
		{Date: "2026-08-15", PainLevel: 3, Mobility: 60, Strength: 45},
	}
	got := ProgressSummary(entries)
	assert.Equal(t,
		"Date: 2026-08-01, Pain: 7, Mobility: 40, Strength: 30\n"+
			"Date: 2026-08-15, Pain: 3, Mobility: 60, Strength: 45\n",
		got)
}

func TestDashboardPrompt(t *testing.T) {
	user := &store.User{Name: "Alex", InjuryType: "ACL tear", FitnessGoal: "run a 5k"}
	entries := []store.Progress{{Date: "2026-08-01", PainLevel: 7, Mobility: 40, Strength: 30}}

	got := DashboardPrompt(user, entries, "Recommended videos for: knee pain\n")

	assert.Contains(t, got, "respond ONLY with a JSON object")
	assert.Contains(t, got, "Name: Alex, Injury Type: ACL tear, Fitness Goal: run a 5k")
	assert.Contains(t, got, "Date: 2026-08-01, Pain: 7, Mobility: 40, Strength: 30")
	assert.Contains(t, got, "Previous Recommendations:\nRecommended videos for: knee pain")
	assert.Contains(t, got, "Return ONLY valid JSON.")
}

func TestDashboardPrompt_NoData(t *testing.T) {
	got := DashboardPrompt(nil, nil, "")
	assert.Contains(t, got, "No progress yet.")
	assert.Contains(t, got, "If there is no user data, return a generic JSON object")
}
