package ack

import (
	"fmt"
	"strings"
)

// CanonicalPaymentAdvice accepts PA/YYYY/NNNNNNNN or PA-YYYY-NNNNNNNN and
// returns the dashed form used by the database.
func CanonicalPaymentAdvice(id string) (string, error) {
	id = strings.TrimSpace(id)

	sep := "-"
	if strings.HasPrefix(id, "PA/") {
		sep = "/"
	}

	parts := strings.Split(id, sep)
	if len(parts) != 3 || parts[0] != "PA" || !isDigits(parts[1]) || !isDigits(parts[2]) {
		return "", fmt.Errorf("payment advice %q: %w", id, ErrIdentifier)
	}

	return strings.Join(parts, "-"), nil
}

const cashIssuanceFeedPrefix = "DICI"

// CanonicalCashIssuance turns the packed DICIYYYYNNNN form SAP echoes back
// into CI-YYYY-NNNN. An id already in dashed form is returned unchanged.
func CanonicalCashIssuance(id string) (string, error) {
	id = strings.TrimSpace(id)

	if parts := strings.Split(id, "-"); len(parts) == 3 {
		if parts[0] == "" || !isDigits(parts[1]) || parts[2] == "" {
			return "", fmt.Errorf("cash issuance %q: %w", id, ErrIdentifier)
		}

		return id, nil
	}

	if len(id) <= 8 || !isDigits(id[4:8]) {
		return "", fmt.Errorf("cash issuance %q: %w", id, ErrIdentifier)
	}

	prefix := id[:4]
	if prefix == cashIssuanceFeedPrefix {
		prefix = "CI"
	}

	return fmt.Sprintf("%s-%s-%s", prefix, id[4:8], id[8:]), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
