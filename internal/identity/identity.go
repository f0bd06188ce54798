// Package identity canonicalizes transport-supplied sender identifiers into
// digits-only phone identities. The canonical form is used both as the key
// for warning records and for authorization checks against the operator
// whitelist.
package identity

// Digits strips every non-digit character from s. Returns the empty string
// if s contains no digits.
func Digits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			out = append(out, c)
		}
	}
	return string(out)
}

// Resolver derives canonical identities from raw transport sender IDs such as
// "6591234567@c.us". An 8-digit result is assumed to be a local number and is
// prefixed with the configured default country code.
type Resolver struct {
	countryCode string
}

// NewResolver creates a Resolver with the given default country-code digits.
func NewResolver(countryCode string) *Resolver {
	return &Resolver{countryCode: Digits(countryCode)}
}

// Resolve returns the canonical digits-only identity for a raw sender ID, or
// the empty string if no identity can be derived (no digits in the input).
func (r *Resolver) Resolve(rawID string) string {
	digits := Digits(rawID)
	if digits == "" {
		return ""
	}
	if len(digits) == 8 {
		return r.countryCode + digits
	}
	return digits
}

// Match reports whether two canonical identities refer to the same principal.
// Identities match if they are equal or if one is a suffix of the other,
// which tolerates country-code prefix variance between stored and derived
// forms. Empty identities never match anything.
func Match(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	return b[len(b)-len(a):] == a
}

// IsAuthorized reports whether id matches any identity in the whitelist.
func IsAuthorized(id string, whitelist []string) bool {
	for _, w := range whitelist {
		if Match(id, w) {
			return true
		}
	}
	return false
}
