package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/corray333/backend-labs/marketplace/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MustInit loads .env (if present) and <service>.yaml, then installs the default logger.
func MustInit(service string) {
	if err := godotenv.Load("./.env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic("error while loading .env file: " + err.Error())
	}

	viper.SetConfigName(service)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/" + service)
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(service)

	if err := viper.ReadInConfig(); err != nil {
		panic("error while reading config file: " + err.Error())
	}
	SetupLogger()
}

func setDefaults(service string) {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("server.http.port", "8080")
	viper.SetDefault("services.timeout_seconds", 5)
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.service_name", service)
	viper.SetDefault("tracing.jaeger_endpoint", "http://jaeger:14268/api/traces")
}

// SetupLogger installs the JSON slog handler as the process default.
func SetupLogger() {
	handler := logger.NewHandler(&slog.HandlerOptions{
		Level: logger.ParseLevel(viper.GetString("log.level")),
	})
	log := slog.New(handler)
	slog.SetDefault(log)
}

// PeerTimeout bounds every call to another marketplace service.
func PeerTimeout() time.Duration {
	seconds := viper.GetInt("services.timeout_seconds")
	if seconds <= 0 {
		seconds = 5
	}

	return time.Duration(seconds) * time.Second
}

// PeerURL returns services.<name>.url or panics when it is not configured.
func PeerURL(name string) string {
	url := viper.GetString("services." + name + ".url")
	if url == "" {
		panic("services." + name + ".url is not set in config")
	}

	return url
}
