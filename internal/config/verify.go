package config

import (
	"time"
)

// VerifyConfig points at the external purchase-verification backend. An
// empty endpoint selects the stub provider, which parks every submission
// for manual review.
type VerifyConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`

	// InspectorEndpoint points at the wishlist inspector service. Empty
	// selects the stub, which rejects every registration.
	InspectorEndpoint string `yaml:"inspector_endpoint"`
	InspectorAPIKey   string `yaml:"inspector_api_key"`
}

func loadVerifyConfig() *VerifyConfig {
	return &VerifyConfig{
		Endpoint:          getEnv("VERIFY_ENDPOINT", ""),
		APIKey:            getEnv("VERIFY_API_KEY", ""),
		Timeout:           getEnvAsDuration("VERIFY_TIMEOUT", 30*time.Second),
		InspectorEndpoint: getEnv("WISHLIST_INSPECTOR_ENDPOINT", ""),
		InspectorAPIKey:   getEnv("WISHLIST_INSPECTOR_API_KEY", ""),
	}
}
