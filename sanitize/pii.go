package sanitize

import (
	"regexp"
	"strings"
)

// sensitiveFieldNames are lower-cased field-name fragments that, when found
// in a key, cause the corresponding value to be masked outright regardless
// of its content.
var sensitiveFieldNames = []string{
	"ssn", "socialsecurity", "dob", "birthdate", "birthday",
	"email", "phone", "firstname", "lastname", "surname", "givenname",
}

var (
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	emailPattern = regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.-]+\b`)
)

// MaskForLog recursively walks a raw/mapped record and returns a copy with
// PII-bearing values replaced. Values under a known sensitive field name are
// replaced with "***"; string values elsewhere are scanned for SSN and
// email-shaped substrings and have the matched substring replaced with a
// "<redacted:kind>" label. The input is never mutated.
func MaskForLog(v any) any {
	return maskValue("", v)
}

func maskValue(key string, v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[k] = maskValue(k, sub)
		}

		return out
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			out[i] = maskValue(key, sub)
		}

		return out
	case string:
		if isSensitiveFieldName(key) {
			return "***"
		}

		return maskPatterns(val)
	default:
		return v
	}
}

func isSensitiveFieldName(key string) bool {
	lower := strings.ToLower(key)
	for _, frag := range sensitiveFieldNames {
		if strings.Contains(lower, frag) {
			return true
		}
	}

	return false
}

func maskPatterns(s string) string {
	s = ssnPattern.ReplaceAllString(s, "<redacted:ssn>")
	s = emailPattern.ReplaceAllString(s, "<redacted:email>")

	return s
}

