package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/verichain-labs/verification-node/internal/log"
)

// Configuration holds the project configuration
type Configuration struct {
	ServerURL  string        `mapstructure:"ServerUrl"`
	ServerPort int           `mapstructure:"ServerPort"`
	Database   Database      `mapstructure:"Database"`
	Cache      Cache         `mapstructure:"Cache"`
	Log        Log           `mapstructure:"Log"`
	Oracle     Oracle        `mapstructure:"Oracle"`
	Router     Router        `mapstructure:"Router"`
	Chains     ChainsConfig  `mapstructure:"Chains"`
	Fees       Fees          `mapstructure:"Fees"`
	HTTPClient time.Duration `mapstructure:"HTTPClientTimeout"`
}

// Database has the database configuration
// URL: The database connection string
type Database struct {
	URL string `mapstructure:"Url" tip:"The Datasource name locator"`
}

// Cache configurations
type Cache struct {
	RedisURL string `mapstructure:"RedisUrl" tip:"The redis url to use as a cache"`
}

// Log holds runtime configurations
type Log struct {
	Level int `mapstructure:"Level" tip:"Minimum level to log: (-4:debug, 0:info, 4:warning, 8:error)"`
	Mode  int `mapstructure:"Mode" tip:"Log format (1: JSON, 2: structured text)"`
}

// Oracle holds the external oracle configuration
type Oracle struct {
	URL     string        `mapstructure:"Url" tip:"External oracle base url"`
	Timeout time.Duration `mapstructure:"Timeout" tip:"Oracle request timeout"`
}

// Router holds the multichain router configuration
type Router struct {
	DefaultChain string `mapstructure:"DefaultChain" tip:"Chain used when a request carries no selector"`
}

// Fees holds the dynamic fee policy configuration
type Fees struct {
	TargetUSDCents int64 `mapstructure:"TargetUSDCents" tip:"Dynamic fee target in USD cents"`
	MinBPS         int64 `mapstructure:"MinBPS" tip:"Lower fee bound in basis points of the target"`
	MaxBPS         int64 `mapstructure:"MaxBPS" tip:"Upper fee bound in basis points of the target"`
}

// ChainsConfig points at the chain settings file
type ChainsConfig struct {
	SettingsPath string  `mapstructure:"SettingsPath" tip:"Path to the chain settings yaml file"`
	SettingsFile *string `mapstructure:"SettingsFile" tip:"Base64 encoded chain settings file content"`
}

// Load reads the configuration from the config file and the environment.
// Environment variables win over file values.
func Load(fileName string) (*Configuration, error) {
	if fileName == "" {
		fileName = "config"
	}
	viper.SetConfigName(fileName)
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("VERIFICATION_NODE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		log.Info(context.Background(), "config file not found, using defaults and environment")
	}

	cfg := &Configuration{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}
	if err := cfg.sanitize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("ServerPort", 3001)
	viper.SetDefault("Log.Level", log.LevelDebug)
	viper.SetDefault("Log.Mode", log.OutputText)
	viper.SetDefault("Oracle.Timeout", 10*time.Second)
	viper.SetDefault("HTTPClientTimeout", 10*time.Second)
	viper.SetDefault("Router.DefaultChain", "ethereum")
	viper.SetDefault("Fees.TargetUSDCents", 100)
	viper.SetDefault("Fees.MinBPS", 5000)
	viper.SetDefault("Fees.MaxBPS", 20000)
}

func (c *Configuration) sanitize() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}
	if c.Oracle.URL == "" {
		return fmt.Errorf("oracle url is required")
	}
	if c.Fees.MinBPS <= 0 || c.Fees.MaxBPS < c.Fees.MinBPS {
		return fmt.Errorf("invalid fee bounds: min %d max %d", c.Fees.MinBPS, c.Fees.MaxBPS)
	}
	return nil
}
