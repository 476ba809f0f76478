package reconcile

import (
	"strings"
	"unicode/utf8"
)

const (
	SyncedOK    = "Synced"
	SyncedError = "Error"

	sapCodeLen = 10
)

// SyncedStatus maps the leading S or E of a status message.
func SyncedStatus(msg string) (string, bool) {
	switch {
	case strings.HasPrefix(msg, "S"):
		return SyncedOK, true
	case strings.HasPrefix(msg, "E"):
		return SyncedError, true
	}

	return "", false
}

// SAPCode returns up to ten characters starting at the second word after the
// colon, e.g. "S: Document 5100000123 posted" gives "5100000123".
func SAPCode(msg string) (string, bool) {
	_, after, ok := strings.Cut(msg, ":")
	if !ok {
		return "", false
	}

	after = strings.TrimSpace(after)

	words := strings.Fields(after)
	if len(words) < 2 {
		return "", false
	}

	rest := []rune(strings.TrimLeft(after[len(words[0]):], " \t"))
	if len(rest) > sapCodeLen {
		rest = rest[:sapCodeLen]
	}

	code := strings.TrimSpace(string(rest))

	return code, code != ""
}

// SAPRemarks drops the two-character status prefix from msg.
func SAPRemarks(msg string) string {
	for range 2 {
		_, size := utf8.DecodeRuneInString(msg)
		msg = msg[size:]
	}

	return strings.TrimSpace(msg)
}
