package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"

	"timespent/internal/ipc"
	"timespent/internal/track"
)

type Config struct {
	StorePath           string           `mapstructure:"store_path"`
	JournalPath         string           `mapstructure:"journal_path"` // empty disables the journal
	SocketPath          string           `mapstructure:"socket_path"`
	SaveIntervalSeconds int              `mapstructure:"save_interval_seconds"`
	Rules               []track.RuleSpec `mapstructure:"rules"`
}

func Load(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/timespent")
		viper.AddConfigPath("/etc/timespent/")
	}

	viper.SetEnvPrefix("TIMESPENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("store_path", "timespent-store.db")
	viper.SetDefault("journal_path", "")
	viper.SetDefault("socket_path", ipc.DefaultSocketPath)
	viper.SetDefault("save_interval_seconds", 60)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("Config file not found, using defaults.")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.SaveIntervalSeconds < 5 {
		log.Println("Warning: save_interval_seconds too low, setting to 5")
		cfg.SaveIntervalSeconds = 5
	}
	if len(cfg.Rules) == 0 {
		log.Println("Warning: no rules configured, all focus time will be uncategorized")
	}

	log.Printf("Configuration loaded: store=%s journal=%s save_interval=%ds rules=%d",
		cfg.StorePath, cfg.JournalPath, cfg.SaveIntervalSeconds, len(cfg.Rules))
	return &cfg, nil
}

func (c *Config) SaveInterval() time.Duration {
	return time.Duration(c.SaveIntervalSeconds) * time.Second
}
