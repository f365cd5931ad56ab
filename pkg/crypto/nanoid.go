package crypto

import (
	"crypto/rand"
	"errors"
	"math"
)

const (
	defaultAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
	defaultIDSize   = 22 // 132 bits
	minAlphabetSize = 8
	maxAlphabetSize = 255
)

var (
	ErrTooManyInputAlphabet = errors.New("must only provide 1 set of alphabet")
	ErrAlphabetTooLong      = errors.New("alphabet must contain no more than 255 characters")
	ErrAlphabetTooShort     = errors.New("alphabet must contain at least 8 characters")
	ErrAlphabetNotASCII     = errors.New("alphabet must contain only ASCII characters")
)

// NanoIDGenerator produces URL-safe random ids. Safe for concurrent use.
type NanoIDGenerator struct {
	alphabet string
	mask     byte
}

var defaultNanoID = &NanoIDGenerator{alphabet: defaultAlphabet, mask: maskFor(len(defaultAlphabet))}

// NewID returns a 22 character id from the default alphabet.
func NewID() (string, error) {
	return defaultNanoID.Generate()
}

// maskFor returns the smallest 2^n-1 covering every alphabet index.
func maskFor(alphabetLen int) byte {
	mask := 1
	for mask < alphabetLen-1 {
		mask = mask<<1 | 1
	}
	return byte(mask)
}

func NewNanoID(a ...string) (*NanoIDGenerator, error) {
	if len(a) > 1 {
		return nil, ErrTooManyInputAlphabet
	}

	alphabet := defaultAlphabet
	if len(a) == 1 && a[0] != "" {
		alphabet = a[0]
	}

	// Generate indexes by byte, so multi-byte runes are rejected
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] > 127 {
			return nil, ErrAlphabetNotASCII
		}
	}

	switch {
	case len(alphabet) > maxAlphabetSize:
		return nil, ErrAlphabetTooLong
	case len(alphabet) < minAlphabetSize:
		return nil, ErrAlphabetTooShort
	}

	return &NanoIDGenerator{alphabet: alphabet, mask: maskFor(len(alphabet))}, nil
}

// Generate returns an id of the given length, or 22 characters by default.
func (n *NanoIDGenerator) Generate(length ...int) (string, error) {
	size := defaultIDSize
	if len(length) > 0 && length[0] > 0 {
		size = length[0]
	}

	// Masked bytes outside the alphabet are discarded, so over-read.
	step := int(math.Ceil(1.6 * float64(int(n.mask)*size) / float64(len(n.alphabet))))
	if step < 1 {
		step = 1
	}

	id := make([]byte, 0, size)
	buf := make([]byte, step)

	for len(id) < size {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			idx := int(b & n.mask)
			if idx >= len(n.alphabet) {
				continue
			}
			id = append(id, n.alphabet[idx])
			if len(id) == size {
				break
			}
		}
	}

	return string(id), nil
}
