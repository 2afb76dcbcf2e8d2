package security

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	CredentialsPassphrase string `envconfig:"CREDENTIALS_PASSPHRASE"`
	CredentialsPath       string `envconfig:"CREDENTIALS_PATH"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
