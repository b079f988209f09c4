package password

import (
	"errors"
	"unicode"
)

// DefaultMaxPasswordBytes caps input to the KDF.
const DefaultMaxPasswordBytes = 1024

// DefaultMinPasswordBytes is the shortest accepted password.
const DefaultMinPasswordBytes = 10

var (
	// ErrTooShort is returned for passwords below the minimum length.
	ErrTooShort = errors.New("password too short")
	// ErrTooLong is returned for passwords above the maximum length.
	ErrTooLong = errors.New("password too long")
	// ErrTooWeak is returned when a password lacks the required character mix.
	ErrTooWeak = errors.New("password must mix letters with digits or symbols")
)

// Policy is the acceptance rule applied before hashing. Lengths are in
// bytes of the raw input; no Unicode normalization is performed.
type Policy struct {
	MinBytes     int
	MaxBytes     int
	RequireMixed bool
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MinBytes:     DefaultMinPasswordBytes,
		MaxBytes:     DefaultMaxPasswordBytes,
		RequireMixed: true,
	}
}

func (p Policy) normalized() Policy {
	if p.MinBytes <= 0 {
		p.MinBytes = DefaultMinPasswordBytes
	}
	if p.MaxBytes <= 0 {
		p.MaxBytes = DefaultMaxPasswordBytes
	}
	return p
}

// Check returns nil when pw satisfies p, or one of [ErrTooShort],
// [ErrTooLong], [ErrTooWeak].
func (p Policy) Check(pw string) error {
	p = p.normalized()
	if len(pw) < p.MinBytes {
		return ErrTooShort
	}
	if len(pw) > p.MaxBytes {
		return ErrTooLong
	}
	if !p.RequireMixed {
		return nil
	}

	var letter, other bool
	for _, r := range pw {
		if unicode.IsLetter(r) {
			letter = true
		} else if !unicode.IsSpace(r) {
			other = true
		}
		if letter && other {
			return nil
		}
	}
	return ErrTooWeak
}

// IsPolicyError reports whether err is a policy rejection.
func IsPolicyError(err error) bool {
	return errors.Is(err, ErrTooShort) || errors.Is(err, ErrTooLong) || errors.Is(err, ErrTooWeak)
}
