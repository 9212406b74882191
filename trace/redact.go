package trace

import "regexp"

// Placeholder replaces every secret-shaped substring found by a Redactor.
const Placeholder = "[REDACTED]"

// Redactor masks secret-shaped substrings before a thought is stored.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor returns a redactor covering API-key-like and
// bearer-token-like strings.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`),
			regexp.MustCompile(`Bearer\s+[A-Za-z0-9._-]{20,}`),
		},
	}
}

// AddPattern registers an additional redaction pattern.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact masks every match with [Placeholder].
func (r *Redactor) Redact(s string) string {
	for _, p := range r.patterns {
		s = p.ReplaceAllString(s, Placeholder)
	}
	return s
}
