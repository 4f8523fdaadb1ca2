package keys

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

// Alphabet excludes visually ambiguous glyphs (0/O, 1/I).
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	groupLen   = 4
	groupCount = 3
)

var keyPattern = regexp.MustCompile(fmt.Sprintf(`^[%[1]s]{4}-[%[1]s]{4}-[%[1]s]{4}$`, Alphabet))

// NewKeyString returns a fresh random key in XXXX-XXXX-XXXX form.
// Collision probability at 32^12 space is negligible; generation does not
// check the store for a pre-existing identical key.
func NewKeyString() (string, error) {
	raw := make([]byte, groupLen*groupCount)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	var b strings.Builder
	for i, c := range raw {
		if i > 0 && i%groupLen == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(Alphabet[int(c)%len(Alphabet)])
	}
	return b.String(), nil
}

// Normalize uppercases user input and validates the 4-4-4 format against the
// exact alphabet, so the excluded glyphs are rejected too.
func Normalize(input string) (string, error) {
	k := strings.ToUpper(strings.TrimSpace(input))
	if !keyPattern.MatchString(k) {
		return "", fmt.Errorf("%w: malformed key %q", ErrInvalidInput, input)
	}
	return k, nil
}
