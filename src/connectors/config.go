package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	BrokerTypeSim   = "sim"
	BrokerTypeNexus = "nexus"
)

type Config struct {
	BrokerType string `envconfig:"BROKER_TYPE" default:"sim"`

	NexusBaseURL         string `envconfig:"NEXUS_BASE_URL" default:"https://api.sandbox.nexus-markets.io"`
	NexusWSBaseURL       string `envconfig:"NEXUS_WS_BASE_URL" default:"wss://stream.sandbox.nexus-markets.io"`
	NexusAccountID       string `envconfig:"NEXUS_ACCOUNT_ID"`
	NexusCredentialsPath string `envconfig:"NEXUS_CREDENTIALS_PATH" default:"/etc/orderexecutor/nexus.credentials"`

	SimSlippageBps   int64   `envconfig:"SIM_SLIPPAGE_BPS" default:"5"`
	SimCommissionBps int64   `envconfig:"SIM_COMMISSION_BPS" default:"1"`
	SimStartingCash  float64 `envconfig:"SIM_STARTING_CASH" default:"100000"`

	QuoteSource   string        `envconfig:"QUOTE_SOURCE" default:"goex"` // goex | static
	QuoteCurrency string        `envconfig:"QUOTE_CURRENCY" default:"USDT"`
	QuoteCacheTTL time.Duration `envconfig:"QUOTE_CACHE_TTL" default:"2s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
