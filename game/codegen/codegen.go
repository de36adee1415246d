// Package codegen generates short, human-typeable game codes.
//
// Codes are drawn from an alphabet without look-alike glyphs (no 0/O, 1/I)
// so players can read them off a shared screen and type them back. The
// generator is not required to be collision-free; the catalog retries until
// it finds a free code.
package codegen

import (
	"crypto/rand"
	"math/big"
	"sync"
)

// Alphabet is the set of characters codes are drawn from.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultLength is the number of characters in a generated code.
const DefaultLength = 4

// Generator produces candidate game codes.
type Generator func() string

// New returns a Generator producing codes of the given length.
// A non-positive length falls back to DefaultLength.
func New(length int) Generator {
	if length <= 0 {
		length = DefaultLength
	}
	return func() string {
		return generate(length)
	}
}

func generate(length int) string {
	max := big.NewInt(int64(len(Alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand never fails on supported platforms
			panic(err)
		}
		out[i] = Alphabet[n.Int64()]
	}
	return string(out)
}

// Sequence returns a Generator that yields codes in order and then repeats
// the last one. Useful for deterministic collision tests.
func Sequence(codes ...string) Generator {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		if len(codes) == 0 {
			return ""
		}
		code := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return code
	}
}
