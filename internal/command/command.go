// Package command recognizes operator commands in normalized message text.
// Recognition is a pure lookup: authorization and execution are the engine's
// responsibility, so an unauthorized sender's command phrase is still
// recognized (and can be answered with an explicit denial).
package command

import "strings"

// Type identifies a recognized operator command.
type Type int

const (
	// Start activates content moderation.
	Start Type = iota
	// Stop deactivates content moderation.
	Stop
	// CheckWarnings reports the strike count for a target identity.
	CheckWarnings
	// ResetWarnings clears the strike count for a target identity.
	ResetWarnings
)

// String returns the command name used in logs and audit records.
func (t Type) String() string {
	switch t {
	case Start:
		return "start"
	case Stop:
		return "stop"
	case CheckWarnings:
		return "check_warnings"
	case ResetWarnings:
		return "reset_warnings"
	}
	return "unknown"
}

// Command is a recognized operator command. Target is the raw identity token
// for check/reset commands; it is empty when the token is missing, which the
// engine answers with a usage hint.
type Command struct {
	Type   Type
	Target string
}

// Synonym tables for the start/stop toggles. Keys are already normalized
// (lowercase, single spaces) since Parse receives normalized text.
var (
	startPhrases = map[string]struct{}{
		"start moderation":     {},
		"startmod":             {},
		"start moderation now": {},
		"start":                {},
		"enable moderation":    {},
		"enable":               {},
	}
	stopPhrases = map[string]struct{}{
		"stop moderation":    {},
		"stopmod":            {},
		"stop":               {},
		"disable moderation": {},
		"disable":            {},
	}
)

const (
	checkPrefix = "check warnings"
	resetPrefix = "reset warnings"
)

// Parse recognizes an operator command in normalized body text. Returns
// (Command, true) on recognition, including check/reset phrases with a
// missing target token, and (zero, false) for ordinary message text.
func Parse(normalized string) (Command, bool) {
	if _, ok := startPhrases[normalized]; ok {
		return Command{Type: Start}, true
	}
	if _, ok := stopPhrases[normalized]; ok {
		return Command{Type: Stop}, true
	}
	if target, ok := prefixTarget(normalized, checkPrefix); ok {
		return Command{Type: CheckWarnings, Target: target}, true
	}
	if target, ok := prefixTarget(normalized, resetPrefix); ok {
		return Command{Type: ResetWarnings, Target: target}, true
	}
	return Command{}, false
}

// prefixTarget matches "<prefix>" or "<prefix> <token>...". The first token
// after the prefix is the target; trailing tokens are ignored.
func prefixTarget(text, prefix string) (string, bool) {
	if text == prefix {
		return "", true
	}
	if !strings.HasPrefix(text, prefix+" ") {
		return "", false
	}
	rest := strings.Fields(text[len(prefix):])
	if len(rest) == 0 {
		return "", true
	}
	return rest[0], true
}
