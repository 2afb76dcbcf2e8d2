package trader

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ValidatorMaxPositionSize float64 `envconfig:"VALIDATOR_MAX_POSITION_SIZE" default:"0"`
	ValidatorMaxOrderValue   float64 `envconfig:"VALIDATOR_MAX_ORDER_VALUE" default:"0"`
	RequireConfirmation      bool    `envconfig:"REQUIRE_SESSION_CONFIRMATION" default:"false"`

	BiasRedisAddr     string `envconfig:"RISK_BIAS_REDIS_ADDR"`
	BiasRedisPassword string `envconfig:"RISK_BIAS_REDIS_PASSWORD"`
	BiasRedisDB       int    `envconfig:"RISK_BIAS_REDIS_DB" default:"0"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
