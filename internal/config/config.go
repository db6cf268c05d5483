package config

import "github.com/kelseyhightower/envconfig"

// Server holds configuration for the observatory server.
type Server struct {
	Host        string `envconfig:"HOST" default:"0.0.0.0"`
	Port        int    `envconfig:"PORT" default:"3200"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:"file:observatory.db"`

	// AuthToken, when set, turns on the bearer gate at the ingestion
	// boundary.
	AuthToken string `envconfig:"OBSERVATORY_TOKEN"`

	AlertWebhookURL string `envconfig:"ALERT_WEBHOOK_URL"`
	RetentionDays   int    `envconfig:"RETENTION_DAYS" default:"30"`
	StaticDir       string `envconfig:"STATIC_DIR" default:"web/dist"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`

	OTELEndpoint string `envconfig:"OTEL_ENDPOINT"`
	OTELInsecure bool   `envconfig:"OTEL_INSECURE"`
}

// Watcher holds configuration for the transcript collector.
type Watcher struct {
	ObservatoryURL string `envconfig:"OBSERVATORY_URL" default:"http://localhost:3200"`
	AuthToken      string `envconfig:"OBSERVATORY_TOKEN"`
	GatewayID      string `envconfig:"GATEWAY_ID" default:"clawdbot1"`
	TranscriptsDir string `envconfig:"TRANSCRIPTS_DIR"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadServer loads server configuration from environment variables.
func LoadServer() (*Server, error) {
	var cfg Server
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadWatcher loads collector configuration from environment variables.
func LoadWatcher() (*Watcher, error) {
	var cfg Watcher
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
