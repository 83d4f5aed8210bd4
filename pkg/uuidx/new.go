// Package uuidx generates the time ordered ids used for flow runs, agent
// turns and broker subscriptions.
package uuidx

import "github.com/google/uuid"

// New returns a version 7 UUID. It panics when the random source fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

func NewString() string {
	return New().String()
}
