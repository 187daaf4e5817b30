package domain

import (
	"context"
	"time"
)

// ActivityIntent is the interpreter's reading of an organizer's free-text request.
type ActivityIntent struct {
	Title         string     `json:"title"`
	ActivityType  string     `json:"activity_type"`
	SuggestedDate *time.Time `json:"suggested_date"`
	Location      string     `json:"location"`
	Keywords      []string   `json:"keywords"`
}

// IntentInterpreter turns free text into an ActivityIntent (remote service port).
type IntentInterpreter interface {
	Interpret(ctx context.Context, text string) (*ActivityIntent, error)
}
