package core

import (
	"fmt"
	"strings"

	"github.com/rehabfit/backend/internal/store"
)

// Prompt context assembly. Both builders are pure functions over the
// profile snapshot, the progress log and the retrieved vector-store text;
// the result is built fresh per request and never persisted. Optional
// profile fields are omitted entirely rather than rendered blank, which
// keeps the model from fixating on empty fields.

// ConversationalContext renders the second-person profile block used by
// the user-facing chat modes, followed by the retrieved conversation
// context.
func ConversationalContext(user *store.User, retrieved string) string {
	var sb strings.Builder
	if user != nil {
		sb.WriteString("You are assisting ")
		sb.WriteString(user.Name)
		sb.WriteString(".\n")
		if user.InjuryType != "" {
			sb.WriteString("They have a ")
			sb.WriteString(user.InjuryType)
			sb.WriteString(" injury.\n")
		}
		if user.InjuryDescription != "" {
			sb.WriteString("Injury details: ")
			sb.WriteString(user.InjuryDescription)
			sb.WriteString(".\n")
		}
		if user.FitnessGoal != "" {
			sb.WriteString("Their fitness goal is ")
			sb.WriteString(user.FitnessGoal)
			sb.WriteString(".\n")
		}
		sb.WriteString("\nPrevious conversation context:\n")
	}
	sb.WriteString(retrieved)
	return sb.String()
}

// ProfileFactsBlock renders the third-person factual block used by the
// buffered chat flow.
func ProfileFactsBlock(user *store.User) string {
	if user == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("User Profile:\n")
	sb.WriteString("Name: " + user.Name + "\n")
	if user.InjuryType != "" {
		sb.WriteString("Injury Type: " + user.InjuryType + "\n")
	}
	if user.FitnessGoal != "" {
		sb.WriteString("Fitness Goal: " + user.FitnessGoal + "\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

// ProgressSummary serializes the progress log one entry per line for the
// dashboard prompt.
func ProgressSummary(entries []store.Progress) string {
	if len(entries) == 0 {
		return "No progress yet.\n"
	}
	var sb strings.Builder
	for _, p := range entries {
		sb.WriteString(fmt.Sprintf("Date: %s, Pain: %d, Mobility: %d, Strength: %d\n",
			p.Date, p.PainLevel, p.Mobility, p.Strength))
	}
	return sb.String()
}

// DashboardPrompt composes the analytical summarization prompt. The model
// is instructed to reply with JSON only; the caller still parses the
// reply defensively.
func DashboardPrompt(user *store.User, entries []store.Progress, retrieved string) string {
	var sb strings.Builder
	sb.WriteString("You are a rehab assistant. Given the following user profile, progress logs, and previous recommendations, respond ONLY with a JSON object with these keys:\n")
	sb.WriteString("- estimatedRecovery: string\n")
	sb.WriteString("- dietPlan: array of strings\n")
	sb.WriteString("- llmSummary: array of strings (summarize recent progress and give actionable advice)\n")
	sb.WriteString("- videos: array of objects with 'title' (string) for recommended exercise video topics\n")
	sb.WriteString("User Profile:\n")
	if user != nil {
		sb.WriteString("Name: " + user.Name)
		if user.InjuryType != "" {
			sb.WriteString(", Injury Type: " + user.InjuryType)
		}
		if user.FitnessGoal != "" {
			sb.WriteString(", Fitness Goal: " + user.FitnessGoal)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Progress Logs:\n")
	sb.WriteString(ProgressSummary(entries))
	sb.WriteString("Previous Recommendations:\n")
	sb.WriteString(retrieved)
	sb.WriteString("\n")
	sb.WriteString("Example:\n")
	sb.WriteString(`{ "estimatedRecovery": "4 weeks", "dietPlan": ["Eat more protein", "Stay hydrated"], "llmSummary": ["Mobility improved this week. Keep stretching!", "Try to reduce pain with ice therapy."], "videos": [{"title": "ankle rehab exercises"}, {"title": "mobility stretches"}] }` + "\n")
	sb.WriteString("If there is no user data, return a generic JSON object with default advice. Return ONLY valid JSON. Do not include any explanation or extra text.")
	return sb.String()
}
