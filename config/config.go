// Package config loads and validates the application configuration through
// viper. Values come from config.yaml with environment variable overrides.
package config

import (
	"errors"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Storage backend selectors
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Load reads config.yaml from the working directory, applies environment
// overrides and runs the sanity checks.
func Load() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("port", ":8080")
	viper.SetDefault("storageBackend", BackendMemory)
	viper.SetDefault("taskQueueName", "whitelist.events")

	if err := viper.ReadInConfig(); err != nil {
		return err
	}
	return Validate()
}

// Validate performs the pre-run sanity checks on the loaded configuration
func Validate() error {
	backend := viper.GetString("storageBackend")
	switch backend {
	case BackendMongo:
		if viper.GetString("mongodbConn") == "" {
			return errors.New("Invalid configuration. mongodbConn is required for the mongo backend")
		}
	case BackendPostgres:
		if viper.GetString("postgresConn") == "" {
			return errors.New("Invalid configuration. postgresConn is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("Invalid configuration. Allowed values for storageBackend: [%s, %s, %s]",
			BackendMongo, BackendPostgres, BackendMemory)
	}

	for _, key := range []string{
		"discordClientId",
		"discordClientSecret",
		"discordBotToken",
		"discordPublicKey",
		"redirectUri",
	} {
		if viper.GetString(key) == "" {
			return fmt.Errorf("Invalid configuration. %s is required", key)
		}
	}
	if len(viper.GetStringSlice("adminIds")) == 0 {
		return errors.New("Invalid configuration. At least one admin id must be configured")
	}
	return nil
}

// Watch re-validates the configuration whenever the file changes, so the
// admin allowlist can be edited without a restart.
func Watch(log *logrus.Logger) {
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		if err := Validate(); err != nil {
			log.WithFields(logrus.Fields{
				"err": err.Error(),
			}).Error("Invalid configuration. The application will not work properly.")
		}
		log.WithFields(logrus.Fields{
			"file": e.Name,
		}).Info("Config file changed")
	})
}

// AdminIDs returns the current admin allowlist
func AdminIDs() []string {
	return viper.GetStringSlice("adminIds")
}

// IsAdmin reports whether the given Discord user id is on the allowlist
func IsAdmin(userID string) bool {
	for _, id := range AdminIDs() {
		if id == userID {
			return true
		}
	}
	return false
}
