// This file defines the configuration structure for the application.
package config

import (
	"log"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port     int `mapstructure:"port"`
	DaysBack int `mapstructure:"days_back"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Komga struct {
		URL      string `mapstructure:"url"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		APIKey   string `mapstructure:"api_key"`
	} `mapstructure:"komga"`
	Mylar struct {
		URL    string `mapstructure:"url"`
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"mylar"`
	Readlist struct {
		Create bool `mapstructure:"create"`
	} `mapstructure:"readlist"`
	Schedule struct {
		Enabled  bool   `mapstructure:"enabled"`
		Day      string `mapstructure:"day"`
		Hour     int    `mapstructure:"hour"`
		Minute   int    `mapstructure:"minute"`
		Timezone string `mapstructure:"timezone"`
	} `mapstructure:"schedule"`
	Notify struct {
		Enabled     bool   `mapstructure:"enabled"`
		BrevoAPIKey string `mapstructure:"brevo_api_key"`
		FromAddress string `mapstructure:"from_address"`
		FromName    string `mapstructure:"from_name"`
		ToAddress   string `mapstructure:"to_address"`
	} `mapstructure:"notify"`
}

// TrackerConfigured reports whether a tracker service is set up. The tracker
// is optional; an empty URL disables augmentation entirely.
func (c *Config) TrackerConfigured() bool {
	return c.Mylar.URL != ""
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or "yaml"
	viper.AddConfigPath(".")      // looking for config in the current directory

	// --- Environment Variable Overrides ---
	// e.g., WEDNESDAY_KOMGA_URL overrides the `komga.url` key.
	viper.SetEnvPrefix("WEDNESDAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("port", 8080)
	viper.SetDefault("days_back", 7)
	viper.SetDefault("database.path", "./wednesday.db")
	viper.SetDefault("readlist.create", true)
	viper.SetDefault("schedule.enabled", true)
	viper.SetDefault("schedule.day", "wednesday")
	viper.SetDefault("schedule.hour", 9)
	viper.SetDefault("schedule.minute", 0)
	viper.SetDefault("schedule.timezone", "Local")
	viper.SetDefault("notify.from_name", "Wednesday")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error and use defaults
		} else {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Watch re-unmarshals the config whenever the file changes on disk and hands
// the fresh copy to onChange. Connection settings picked up this way apply to
// the next run; the HTTP listener keeps its startup port.
func Watch(onChange func(*Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("Config file changed: %s", e.Name)
		var config Config
		if err := viper.Unmarshal(&config); err != nil {
			log.Printf("Error reloading config: %v", err)
			return
		}
		onChange(&config)
	})
	viper.WatchConfig()
}
