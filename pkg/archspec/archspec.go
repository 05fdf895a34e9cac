// SPDX-License-Identifier: MPL-2.0

package archspec

import (
	"errors"
	"fmt"
	"strings"
)

// ListSeparator joins architecture tokens when exporting them to native
// build tooling (GPU_ARCHS="gfx90a;gfx942").
const ListSeparator = ";"

// tokenPrefix is the common prefix of all AMD GPU architecture tokens.
const tokenPrefix = "gfx"

// ErrInvalidToken is the sentinel error wrapped by InvalidTokenError.
var ErrInvalidToken = errors.New("invalid architecture token")

type (
	// Token represents a single GPU architecture target such as "gfx90a".
	// A valid token is the "gfx" prefix followed by a lowercase hexadecimal
	// generation identifier (e.g. "90a", "942", "1100").
	Token string

	// InvalidTokenError is returned when a Token value does not name a GPU
	// architecture. It wraps ErrInvalidToken for errors.Is() compatibility.
	InvalidTokenError struct {
		Value Token
	}

	// List is an ordered set of architecture tokens. Order is preserved
	// because the build tooling compiles targets in the declared order.
	List []Token
)

// String returns the string representation of the Token.
func (t Token) String() string { return string(t) }

// IsValid returns whether the Token names a plausible GPU architecture,
// and a list of validation errors if it does not.
func (t Token) IsValid() (bool, []error) {
	s := string(t)
	if !strings.HasPrefix(s, tokenPrefix) {
		return false, []error{&InvalidTokenError{Value: t}}
	}
	gen := s[len(tokenPrefix):]
	if len(gen) < 3 || len(gen) > 4 {
		return false, []error{&InvalidTokenError{Value: t}}
	}
	for _, c := range gen {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false, []error{&InvalidTokenError{Value: t}}
		}
	}
	return true, nil
}

// Validate is the single-error convenience form of IsValid.
func (t Token) Validate() error {
	if valid, errs := t.IsValid(); !valid {
		return errs[0]
	}
	return nil
}

// Error implements the error interface for InvalidTokenError.
func (e *InvalidTokenError) Error() string {
	return fmt.Sprintf("invalid architecture token %q: want \"gfx\" followed by a 3-4 digit lowercase hex identifier", e.Value)
}

// Unwrap returns ErrInvalidToken for errors.Is() compatibility.
func (e *InvalidTokenError) Unwrap() error { return ErrInvalidToken }

// Join renders the list in the GPU_ARCHS wire format ("gfx90a;gfx942").
func (l List) Join() string {
	parts := make([]string, len(l))
	for i, t := range l {
		parts[i] = string(t)
	}
	return strings.Join(parts, ListSeparator)
}

// Strings returns the tokens as a plain string slice.
func (l List) Strings() []string {
	parts := make([]string, len(l))
	for i, t := range l {
		parts[i] = string(t)
	}
	return parts
}

// IsValid validates every token in the list, collecting all errors.
func (l List) IsValid() (bool, []error) {
	var errs []error
	for _, t := range l {
		if valid, fieldErrs := t.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if len(errs) > 0 {
		return false, errs
	}
	return true, nil
}

// ParseList splits a separator-joined token string ("gfx90a;gfx942") into a
// List. Empty segments are dropped; tokens are not validated (call IsValid).
func ParseList(s string) List {
	var l List
	for _, part := range strings.Split(s, ListSeparator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		l = append(l, Token(part))
	}
	return l
}
