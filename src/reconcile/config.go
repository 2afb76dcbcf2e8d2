package reconcile

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"
)

// Config holds the reconciliation loop settings.
type Config struct {
	Interval  time.Duration `envconfig:"RECONCILE_INTERVAL" default:"15m"`
	Tolerance float64       `envconfig:"RECONCILE_TOLERANCE" default:"0.0001"`
}

func GetConfig() Config {
	var config Config
	err := envconfig.Process("", &config)
	if err != nil {
		logger.WithFields(logger.Fields{
			"repo":   "reconcile",
			"method": "GetConfig",
		}).Panic(err)
	}
	return config
}
