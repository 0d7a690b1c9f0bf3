package model

import "time"

// EmbedLog is an append-only observability record of one embedding
// attempt, successful or not.
type EmbedLog struct {
	Ts          time.Time
	Provider    string
	Sector      Sector
	InputTokens int
	Dim         int
	OK          bool
}
