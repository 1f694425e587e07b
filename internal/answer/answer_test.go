package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeChoices(t *testing.T) {
	assert.Equal(t, "A", Normalize("a"))
	assert.Equal(t, "D", Normalize("d"))
	assert.Equal(t, "B", Normalize(" b "))
	assert.Equal(t, "TRUE", Normalize("true"))
	assert.Equal(t, "FALSE", Normalize("False"))
}

func TestNormalizeLeavesEnumerationAlone(t *testing.T) {
	assert.Equal(t, "Photosynthesis", Normalize("Photosynthesis"))
	assert.Equal(t, "mitochondria", Normalize("mitochondria"))
	assert.Equal(t, "H2O", Normalize("H2O"))
}

func TestNormalizeKeepsSentinelsLowercase(t *testing.T) {
	for _, s := range []string{Unreadable, MissingAnswer, MissingQuestion, Essay, MissingID} {
		assert.Equal(t, s, Normalize(s))
	}
	// sentinels arriving uppercased from a noisy extraction are folded back
	assert.Equal(t, Unreadable, Normalize("UNREADABLE"))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"a", "TRUE", "false", "Photosynthesis", Essay, " c "}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestIsSentinel(t *testing.T) {
	assert.True(t, IsSentinel(Essay))
	assert.False(t, IsSentinel("A"))
	assert.False(t, IsSentinel(""))
}
