// Package privacy scrubs sensitive substrings from text before it leaves the
// machine. Window titles routinely leak email subjects, tokens pasted into
// terminal tabs, and document names; everything bound for a remote service
// passes through Clean first.
package privacy

import (
	"regexp"
	"strings"
)

var (
	// emailRegex matches bare email addresses.
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// bearerRegex matches Authorization-style bearer tokens.
	bearerRegex = regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._\-]{16,}`)

	// apiKeyRegex matches common API-key shapes (sk-..., AIza..., ghp_...).
	apiKeyRegex = regexp.MustCompile(`\b(sk-[a-zA-Z0-9]{16,}|AIza[a-zA-Z0-9_\-]{30,}|gh[pousr]_[a-zA-Z0-9]{30,})\b`)

	// hexSecretRegex matches long bare hex strings (hashes, session ids).
	hexSecretRegex = regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`)
)

// StripEmails replaces email addresses with a placeholder.
func StripEmails(text string) string {
	return emailRegex.ReplaceAllString(text, "[email]")
}

// StripTokens replaces bearer tokens and API-key-shaped strings.
func StripTokens(text string) string {
	text = bearerRegex.ReplaceAllString(text, "[token]")
	return apiKeyRegex.ReplaceAllString(text, "[token]")
}

// StripHexSecrets replaces long bare hex strings.
func StripHexSecrets(text string) string {
	return hexSecretRegex.ReplaceAllString(text, "[hex]")
}

// Clean performs full scrubbing on text. This is the function to use on
// anything bound for a remote collaborator.
func Clean(text string) string {
	text = StripEmails(text)
	text = StripTokens(text)
	text = StripHexSecrets(text)
	return strings.TrimSpace(text)
}
