package cache

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Host     string `mapstructure:"Host"`
	Port     string `mapstructure:"Port"`
	Password string `mapstructure:"Password"`
	DB       int    `mapstructure:"DB"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.BindEnv("Host", "REDIS_HOST")
	v.BindEnv("Port", "REDIS_PORT")
	v.BindEnv("Password", "REDIS_PASSWORD")
	v.BindEnv("DB", "REDIS_DB")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal config: %w", err)
	}

	// Значения по умолчанию
	if cfg.Host == "" {
		cfg.Host = v.GetString("REDIS_HOST")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == "" {
		cfg.Port = v.GetString("REDIS_PORT")
	}
	if cfg.Port == "" {
		cfg.Port = "6379"
	}

	return &cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}
