package vin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"lowercase with O misreads", "1hgbh41jxmo1o9186", "1HGBH41JXM0109186"},
		{"I and Q become digits", "iq", "10"},
		{"strips punctuation and spaces", " 1HG-BH41 J8MN.109186 ", "1HGBH41J8MN109186"},
		{"truncates to 17", "1HGBH41J8MN109186EXTRA", "1HGBH41J8MN109186"},
		{"drops non-latin", "1HGéBH", "1HGBH"},
		{"only junk", "#$%^&*", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"1hgbh41jxmo1o9186",
		"VIN: 1HGBH41J8MN109186 REG#223",
		"oooooooooooooooooooooo",
		"q-i-o",
		"1HGBH41J8MN109186EXTRA",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
		assert.LessOrEqual(t, len(once), Length)
		assert.True(t, IsPlausiblePrefix(once), "normalized %q should be a plausible prefix", once)
	}
}
