package testutil

// FixedTokenGenerator returns the same run token every time.
//
// This enables deterministic suite execution and golden snapshot comparison:
// the same run with the same FixedTokenGenerator produces byte-identical
// exports.
//
// Thread-safety: FixedTokenGenerator is stateless and safe for concurrent use.
type FixedTokenGenerator struct {
	token string
}

// NewFixedTokenGenerator creates a generator that always returns token.
// An empty token defaults to "test-run-default".
func NewFixedTokenGenerator(token string) *FixedTokenGenerator {
	if token == "" {
		token = "test-run-default"
	}
	return &FixedTokenGenerator{token: token}
}

// Generate returns the fixed run token.
//
// Implements suite.TokenGenerator.
func (g *FixedTokenGenerator) Generate() string {
	return g.token
}
