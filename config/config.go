package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort      string        `mapstructure:"HTTPPort"`
		Timeout       time.Duration `mapstructure:"HTTPTimeout"`
		ClientURL     string        `mapstructure:"clientURL"`
		PublicBaseURL string        `mapstructure:"publicBaseURL"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Uploads UploadsConfig `mapstructure:"uploads"`
	Handlers struct {
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
}

// AuthConfig holds everything the token signer and the session middleware
// must agree on.
type AuthConfig struct {
	SecretKey    string        `mapstructure:"secretKey"`
	TokenTTL     time.Duration `mapstructure:"tokenTTL"`
	Issuer       string        `mapstructure:"issuer"`
	CookieName   string        `mapstructure:"cookieName"`
	CookieSecure bool          `mapstructure:"cookieSecure"`
}

type UploadsConfig struct {
	Backend      string `mapstructure:"backend"` // "disk" or "minio"
	Dir          string `mapstructure:"dir"`
	PublicPrefix string `mapstructure:"publicPrefix"`
	Placeholder  string `mapstructure:"placeholder"`
	Minio        struct {
		Endpoint  string `mapstructure:"endpoint"`
		AccessKey string `mapstructure:"accessKey"`
		SecretKey string `mapstructure:"secretKey"`
		Bucket    string `mapstructure:"bucket"`
		UseSSL    bool   `mapstructure:"useSSL"`
	} `mapstructure:"minio"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Environment variables override file values, e.g. AUTOPARTS_AUTH_SECRETKEY
	v.SetEnvPrefix("AUTOPARTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	// Unmarshal the config into the Config struct
	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}

	if config.Auth.SecretKey == "" {
		return Config{}, fmt.Errorf("auth.secretKey must be set")
	}
	return config, nil
}
