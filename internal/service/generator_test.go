package service

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeneratorGenerate(t *testing.T) {
	t.Run("generates code of the configured length", func(t *testing.T) {
		gen := NewGenerator(DefaultAlphabet, 12)
		code := gen.Generate()

		pattern := regexp.MustCompile(`^[A-Z2-9]{12}$`)
		assert.True(t, pattern.MatchString(code), "code should be 12 uppercase chars, got: %s", code)
	})

	t.Run("respects a custom length", func(t *testing.T) {
		gen := NewGenerator(DefaultAlphabet, 6)
		assert.Len(t, gen.Generate(), 6)
	})

	t.Run("uses only allowed characters", func(t *testing.T) {
		gen := NewGenerator(DefaultAlphabet, 12)
		code := gen.Generate()

		for _, c := range code {
			found := false
			for _, allowed := range DefaultAlphabet {
				if c == allowed {
					found = true
					break
				}
			}
			assert.True(t, found, "character '%c' should be in allowed set", c)
		}
	})

	t.Run("generates unique codes", func(t *testing.T) {
		gen := NewGenerator(DefaultAlphabet, 12)
		codes := make(map[string]bool)
		for i := 0; i < 100; i++ {
			code := gen.Generate()
			assert.False(t, codes[code], "duplicate code generated: %s", code)
			codes[code] = true
		}
	})

	t.Run("excludes ambiguous characters", func(t *testing.T) {
		gen := NewGenerator(DefaultAlphabet, 12)
		for i := 0; i < 100; i++ {
			code := gen.Generate()
			assert.NotContains(t, code, "O")
			assert.NotContains(t, code, "I")
			assert.NotContains(t, code, "0")
			assert.NotContains(t, code, "1")
		}
	})

	t.Run("zero values fall back to defaults", func(t *testing.T) {
		gen := NewGenerator("", 0)
		assert.Equal(t, DefaultPinLength, gen.Length())
		assert.Len(t, gen.Generate(), DefaultPinLength)
	})
}

func TestDefaultAlphabet(t *testing.T) {
	t.Run("contains no ambiguous characters", func(t *testing.T) {
		assert.NotContains(t, DefaultAlphabet, "O")
		assert.NotContains(t, DefaultAlphabet, "I")
		assert.NotContains(t, DefaultAlphabet, "0")
		assert.NotContains(t, DefaultAlphabet, "1")
	})

	t.Run("contains expected character count", func(t *testing.T) {
		// 26 letters - O, I = 24 letters
		// 10 digits - 0, 1 = 8 digits
		// Total = 32 characters
		assert.Len(t, DefaultAlphabet, 32)
	})
}
