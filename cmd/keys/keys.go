package keys

import (
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"

	"orderexecutor/src/security"
)

type Config struct {
	APIKey     string `envconfig:"NEXUS_API_KEY"`
	APISecret  string `envconfig:"NEXUS_API_SECRET"`
	Passphrase string `envconfig:"CREDENTIALS_PASSPHRASE"`
	OutputPath string `envconfig:"NEXUS_CREDENTIALS_PATH" default:"/etc/orderexecutor/nexus.credentials"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// Run encrypts the venue API key material from the environment and writes the
// credentials file with owner-only permissions. The key material is never
// printed or logged.
func Run() error {
	config := GetConfig()

	if config.APIKey == "" || config.APISecret == "" {
		return errors.New("NEXUS_API_KEY and NEXUS_API_SECRET must be set")
	}
	if config.Passphrase == "" {
		return errors.New("CREDENTIALS_PASSPHRASE must be set")
	}

	creds := security.Credentials{APIKey: config.APIKey, APISecret: config.APISecret}
	if err := security.WriteCredentials(config.OutputPath, creds, config.Passphrase); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}

	logger.WithField("path", config.OutputPath).Info("credentials file written")
	return nil
}
