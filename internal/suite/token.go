package suite

import "github.com/google/uuid"

// TokenGenerator produces the run token stamped on every result a suite
// run emits. Exports group and sort by this token.
type TokenGenerator interface {
	Generate() string
}

// UUIDTokenGenerator issues time-ordered UUIDv7 tokens, so tokens from
// successive runs sort chronologically.
type UUIDTokenGenerator struct{}

// Generate returns a fresh UUIDv7 string.
func (UUIDTokenGenerator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
