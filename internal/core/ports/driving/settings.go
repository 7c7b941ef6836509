package driving

import "github.com/custodia-labs/docqa/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get resolves settings from defaults, the config file and the
	// environment, in increasing precedence. The result is validated.
	Get() (*domain.AppSettings, error)

	// Set persists a single dotted key such as "retrieval.top_k".
	// The value is parsed according to the key's type.
	Set(key, value string) error

	// Keys lists every recognised configuration key.
	Keys() []string

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
