package security

import "strings"

// NewSanitizer returns a function that scrubs the given secrets from text.
// Venue adapters run every vendor error message through it before the message
// can reach a log line or a persisted order.
func NewSanitizer(secrets ...string) func(string) string {
	material := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if s != "" {
			material = append(material, s)
		}
	}

	return func(text string) string {
		for _, s := range material {
			text = strings.ReplaceAll(text, s, "[redacted]")
		}
		return text
	}
}
