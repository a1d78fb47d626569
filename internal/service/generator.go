package service

import (
	"crypto/rand"
	"math/big"
)

// DefaultAlphabet drops visually ambiguous characters (0/O, 1/I) so codes
// survive being read aloud or retyped.
const DefaultAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const DefaultPinLength = 12

// Generator produces random PIN codes from a fixed alphabet. Each character
// is drawn independently from crypto/rand; predictability here would be a
// direct authorization bypass.
type Generator struct {
	alphabet string
	length   int
}

func NewGenerator(alphabet string, length int) *Generator {
	if alphabet == "" {
		alphabet = DefaultAlphabet
	}
	if length <= 0 {
		length = DefaultPinLength
	}
	return &Generator{alphabet: alphabet, length: length}
}

func (g *Generator) Generate() string {
	chars := []byte(g.alphabet)
	max := big.NewInt(int64(len(chars)))

	code := make([]byte, g.length)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken;
			// issuing a guessable code is worse than crashing.
			panic(err)
		}
		code[i] = chars[n.Int64()]
	}

	return string(code)
}

func (g *Generator) Length() int {
	return g.length
}
