package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is usable before InitLogger runs; InitLogger applies the configured
// formatter and level.
var Log = logrus.New()

func InitLogger() {
	Log.SetFormatter(&logrus.JSONFormatter{})
	Log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)
}
