package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the client and the local mock server.
// Values are read by Viper from a config file or environment variables.
type Config struct {
	API    APIConfig    `mapstructure:"api"`
	Store  StoreConfig  `mapstructure:"store"`
	Log    LogConfig    `mapstructure:"log"`
	Device DeviceConfig `mapstructure:"device"`
	Mock   MockConfig   `mapstructure:"mock"`
}

// APIConfig points the request pipeline at the backend.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StoreConfig locates the on-device token store.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DeviceConfig controls the health-data provider. Simulate swaps in the
// deterministic provider on platforms with no real one.
type DeviceConfig struct {
	Simulate bool `mapstructure:"simulate"`
}

// MockConfig configures the local mock backend (cmd/mockserver).
type MockConfig struct {
	Address    string        `mapstructure:"address"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Environment overrides, e.g. api.base_url -> API_BASE_URL.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("api.base_url", "http://localhost:8080/api/v1")
	viper.SetDefault("api.timeout", "15s")
	viper.SetDefault("store.path", ".healthclient/tokens.json")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("device.simulate", true)
	viper.SetDefault("mock.address", ":8080")
	viper.SetDefault("mock.jwt_secret", "dev-secret-change-me")
	viper.SetDefault("mock.access_ttl", "15m")
	viper.SetDefault("mock.refresh_ttl", "168h")

	err = viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// No config file is fine; defaults and env vars carry it.
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
