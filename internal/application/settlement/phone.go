package settlement

import (
	"fmt"
	"strings"
)

// NormalizePhone canonicalizes a Kenyan MSISDN to the 2547XXXXXXXX form the
// payout provider expects. Accepted inputs: 07XXXXXXXX, +2547XXXXXXXX,
// 2547XXXXXXXX and bare 7XXXXXXXX.
func NormalizePhone(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	cleaned = strings.TrimPrefix(cleaned, "+")

	switch {
	case strings.HasPrefix(cleaned, "07") && len(cleaned) == 10:
		cleaned = "254" + cleaned[1:]
	case strings.HasPrefix(cleaned, "7") && len(cleaned) == 9:
		cleaned = "254" + cleaned
	case strings.HasPrefix(cleaned, "2547") && len(cleaned) == 12:
		// already canonical
	default:
		return "", fmt.Errorf("unsupported msisdn format: %q", raw)
	}

	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("msisdn contains non-digit characters: %q", raw)
		}
	}
	return cleaned, nil
}
