package auth

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	SecretKey          string `mapstructure:"SecretKey"`
	AccessTokenMinutes int    `mapstructure:"AccessTokenMinutes"`
	RefreshTokenDays   int    `mapstructure:"RefreshTokenDays"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.BindEnv("SecretKey", "JWT_SECRET_KEY")
	v.BindEnv("AccessTokenMinutes", "ACCESS_TOKEN_EXPIRE_MINUTES")
	v.BindEnv("RefreshTokenDays", "REFRESH_TOKEN_EXPIRE_DAYS")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal config: %w", err)
	}

	if cfg.SecretKey == "" {
		cfg.SecretKey = v.GetString("JWT_SECRET_KEY")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("JWT secret key is required")
	}

	// Значения по умолчанию
	if cfg.AccessTokenMinutes == 0 {
		cfg.AccessTokenMinutes = 20
	}
	if cfg.RefreshTokenDays == 0 {
		cfg.RefreshTokenDays = 7
	}

	return &cfg, nil
}
