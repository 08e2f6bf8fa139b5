package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Upstream  UpstreamConfig
	Storage   StorageConfig
}

type ServerConfig struct {
	Address string
	Auth    AuthConfig
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwtSecret"`
	TokenTTL  time.Duration `mapstructure:"tokenTTL"`
}

type TransportConfig struct {
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

type UpstreamConfig struct {
	URL            string        `mapstructure:"url"`
	ReconnectDelay time.Duration `mapstructure:"reconnectDelay"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}
