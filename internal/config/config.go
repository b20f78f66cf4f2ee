package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	WhatsAppAPIURL   string `env:"WHATSAPP_API_URL,required=true"`
	WhatsAppAPIToken string `env:"WHATSAPP_API_TOKEN,required=true"`

	SMSAPIURL     string `env:"SMS_API_URL,required=true"`
	SMSAccountSID string `env:"SMS_ACCOUNT_SID,required=true"`
	SMSAuthToken  string `env:"SMS_AUTH_TOKEN,required=true"`
	SMSSender     string `env:"SMS_SENDER,required=true"`

	SMTPHost     string `env:"SMTP_HOST,required=true"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUsername string `env:"SMTP_USERNAME,required=true"`
	SMTPPassword string `env:"SMTP_PASSWORD,required=true"`
	SMTPFrom     string `env:"SMTP_FROM,required=true"`

	SweepIntervalSeconds    int `env:"SWEEP_INTERVAL_SECONDS,default=60"`
	SweepLimit              int `env:"SWEEP_LIMIT,default=200"`
	SweepConcurrency        int `env:"SWEEP_CONCURRENCY,default=8"`
	SendTimeoutSeconds      int `env:"SEND_TIMEOUT_SECONDS,default=10"`
	RateLimitPerSec         int `env:"RATE_LIMIT_PER_SEC,default=50"`
	TemplateCacheTTLSeconds int `env:"TEMPLATE_CACHE_TTL_SECONDS,default=300"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

func (c *Config) TemplateCacheTTL() time.Duration {
	return time.Duration(c.TemplateCacheTTLSeconds) * time.Second
}
