package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Presence  PresenceConfig
	Redis     RedisConfig
	Nats      NatsConfig
}

type ServerConfig struct {
	Address         string
	Auth            AuthConfig
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
}

type ConnectionLimitConfig struct {
	MaxPerUser int    `mapstructure:"maxPerUser"`
	Mode       string `mapstructure:"mode"` // "reject" or "cycle"
}

type TransportConfig struct {
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

type PresenceConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeatInterval"`
	// Client-side coordination timeouts, handed to each client in the
	// presence:config event at session start.
	IdleTimeout        time.Duration `mapstructure:"idleTimeout"`
	HiddenIdleTimeout  time.Duration `mapstructure:"hiddenIdleTimeout"`
	TypingClearTimeout time.Duration `mapstructure:"typingClearTimeout"`
}

type RedisConfig struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"keyPrefix"`
}

type NatsConfig struct {
	Enabled bool
	URL     string `mapstructure:"url"`
}
