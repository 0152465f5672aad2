package shortcode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
)

// Alphabet is the base62 alphabet used for both random generation and
// numeric encoding. Digit ordering matters for Encode/Decode round-trips.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const (
	// MinCodeLength and MaxCodeLength bound custom short codes.
	MinCodeLength = 3
	MaxCodeLength = 20
)

var (
	ErrInvalidFormat = errors.New("invalid short code format")

	codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Generate returns a random code of the given length drawn uniformly from
// the base62 alphabet using crypto/rand.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = 6
	}

	// Rejection sampling: 248 is the largest multiple of 62 below 256, so
	// bytes at or above it are redrawn to keep the alphabet draw uniform.
	const limit = 248

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}

// Validate checks that a custom short code is 3-20 characters of
// [A-Za-z0-9_-]. It returns ErrInvalidFormat otherwise.
func Validate(code string) error {
	if len(code) < MinCodeLength || len(code) > MaxCodeLength {
		return ErrInvalidFormat
	}
	if !codePattern.MatchString(code) {
		return ErrInvalidFormat
	}
	return nil
}

// Encode converts a non-negative integer to its base62 representation.
// Provided as a building block for counter-based code schemes; the
// production allocation path uses Generate instead.
func Encode(num uint64) string {
	if num == 0 {
		return string(Alphabet[0])
	}

	var buf [11]byte // 62^11 > MaxUint64
	i := len(buf)
	for num > 0 {
		i--
		buf[i] = Alphabet[num%62]
		num /= 62
	}
	return string(buf[i:])
}

// Decode converts a base62 string produced by Encode back to its integer
// value.
func Decode(s string) (uint64, error) {
	if s == "" {
		return 0, ErrInvalidFormat
	}

	var num uint64
	for i := 0; i < len(s); i++ {
		idx := indexOf(s[i])
		if idx < 0 {
			return 0, fmt.Errorf("%w: invalid character %q", ErrInvalidFormat, s[i])
		}
		num = num*62 + uint64(idx)
	}
	return num, nil
}

func indexOf(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 36
	default:
		return -1
	}
}
