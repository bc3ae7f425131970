package polls

import "strings"

// SanitizeOptions trims every entry and drops the ones that come out empty
// or longer than the per-option limit. Order of surviving entries is kept.
func SanitizeOptions(raw []string) []string {
	sanitized := make([]string, 0, len(raw))
	for _, option := range raw {
		trimmed := strings.TrimSpace(option)
		if trimmed == "" || len(trimmed) > maxOptionLength {
			continue
		}
		sanitized = append(sanitized, trimmed)
	}
	return sanitized
}

// ValidatePollFields checks a question and raw option list against the poll
// invariants. A sanitized count different from the raw count means at least
// one submitted option was empty or oversized, which is rejected rather than
// silently dropped. Duplicate detection is case-sensitive after trimming.
func ValidatePollFields(question string, rawOptions []string) error {
	trimmedQuestion := strings.TrimSpace(question)
	if trimmedQuestion == "" {
		return newFieldError("question", "must not be empty")
	}
	if len(trimmedQuestion) > maxQuestionLength {
		return newFieldError("question", "must be at most 500 characters")
	}

	sanitized := SanitizeOptions(rawOptions)
	if len(sanitized) != len(rawOptions) {
		return newFieldError("options", "every option must be 1-200 characters after trimming")
	}
	if len(sanitized) < MinOptions {
		return newFieldError("options", "at least 2 options required")
	}
	if len(sanitized) > MaxOptions {
		return newFieldError("options", "at most 10 options allowed")
	}

	seen := make(map[string]struct{}, len(sanitized))
	for _, option := range sanitized {
		if _, duplicate := seen[option]; duplicate {
			return newFieldError("options", "options must be distinct")
		}
		seen[option] = struct{}{}
	}
	return nil
}
