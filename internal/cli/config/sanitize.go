package config

// maskedSecret replaces a set secret for display. It has a fixed length so
// the secret's length is not shown either.
const maskedSecret = "********"

// Sanitize returns a copy of cfg with secrets masked, for display.
func Sanitize(cfg *CLIConfig) *CLIConfig {
	sanitized := *cfg
	if sanitized.Store.Passphrase != "" {
		sanitized.Store.Passphrase = maskedSecret
	}
	return &sanitized
}
