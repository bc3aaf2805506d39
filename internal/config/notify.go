package config

// NotifyConfig configures transactional mail. An empty API key selects the
// no-op sender.
type NotifyConfig struct {
	ResendAPIKey string `yaml:"resend_api_key"`
	FromAddress  string `yaml:"from_address"`
}

func loadNotifyConfig() *NotifyConfig {
	return &NotifyConfig{
		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		FromAddress:  getEnv("MAIL_FROM", "noreply@ringokai.app"),
	}
}
