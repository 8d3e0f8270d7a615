package executor

import (
	"strconv"
	"strings"
)

// extractRecordCount scans loader stdout for a best-effort record count.
//
// The stdout contract is advisory: a line containing "records processed"
// or "inserted" is expected to carry an integer. The scan stops at the
// first qualifying line and takes the last integer-like token on it; a
// qualifying line without an integer leaves the count at zero. Loaders
// with no such line simply report zero records.
func extractRecordCount(stdout string) int64 {
	for _, line := range strings.Split(stdout, "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "records processed") && !strings.Contains(lower, "inserted") {
			continue
		}

		tokens := strings.Fields(line)
		for i := len(tokens) - 1; i >= 0; i-- {
			if n, ok := parseIntToken(tokens[i]); ok {
				return n
			}
		}
		// First qualifying line wins even when it carries no integer.
		return 0
	}
	return 0
}

// parseIntToken parses an integer-like token, tolerating thousands
// separators and surrounding punctuation ("4,521" or "123.").
func parseIntToken(tok string) (int64, bool) {
	cleaned := strings.Trim(tok, ".,:;()[]")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, false
	}

	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
