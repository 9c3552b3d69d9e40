package utils

import (
	"github.com/twmb/murmur3"
)

// HashSequence hashes strings in order. Each string is followed by a zero
// byte so that ["ab", "c"] and ["a", "bc"] hash differently.
func HashSequence(ss []string) uint64 {
	hash := murmur3.New64()
	for _, s := range ss {
		if _, err := hash.Write([]byte(s)); err != nil {
			panic(err)
		}
		if _, err := hash.Write([]byte{0}); err != nil {
			panic(err)
		}
	}
	return hash.Sum64()
}
