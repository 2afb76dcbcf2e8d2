package risk

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// Bias is the externally produced risk multiplier plus its age. The producer
// (an advisory sidecar) writes it out of band; the gate only ever reads it.
type Bias struct {
	Value     decimal.Decimal
	UpdatedAt time.Time
}

// BiasProvider reads the latest bias value. Implementations must return
// quickly: the trading path never blocks waiting for the producer.
type BiasProvider interface {
	Latest(ctx context.Context) (Bias, error)
}

const (
	biasValueKey   = "risk:bias:value"
	biasUpdatedKey = "risk:bias:updated_at"

	biasReadTimeout = 200 * time.Millisecond
)

// RedisBiasCache reads the bias from Redis with a short hard timeout.
type RedisBiasCache struct {
	client *goredis.Client
}

func NewRedisBiasCache(addr, password string, db int) *RedisBiasCache {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisBiasCache{client: client}
}

func (c *RedisBiasCache) Latest(ctx context.Context) (Bias, error) {
	ctx, cancel := context.WithTimeout(ctx, biasReadTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, biasValueKey).Result()
	if err != nil {
		if err == goredis.Nil {
			return Bias{}, fmt.Errorf("bias value not present")
		}
		return Bias{}, fmt.Errorf("read bias value: %w", err)
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		return Bias{}, fmt.Errorf("parse bias value %q: %w", raw, err)
	}

	updatedRaw, err := c.client.Get(ctx, biasUpdatedKey).Result()
	if err != nil {
		return Bias{}, fmt.Errorf("read bias timestamp: %w", err)
	}
	updatedUnix, err := strconv.ParseInt(updatedRaw, 10, 64)
	if err != nil {
		return Bias{}, fmt.Errorf("parse bias timestamp %q: %w", updatedRaw, err)
	}

	return Bias{Value: value, UpdatedAt: time.Unix(updatedUnix, 0).UTC()}, nil
}

// effectiveBias applies the graceful-degradation contract: absent bias means
// neutral 1.0, a stale bias means the conservative 0.5 -- failure to refresh
// external guidance biases toward caution, never toward halting trading.
func effectiveBias(provider BiasProvider, staleAfter time.Duration, now time.Time) decimal.Decimal {
	neutral := decimal.NewFromInt(1)
	conservative := decimal.NewFromFloat(0.5)

	if provider == nil {
		return neutral
	}

	bias, err := provider.Latest(context.Background())
	if err != nil {
		logger.WithError(err).Debug("risk bias unavailable, using neutral default")
		return neutral
	}

	if staleAfter > 0 && now.Sub(bias.UpdatedAt) > staleAfter {
		logger.WithFields(logger.Fields{
			"updated_at":  bias.UpdatedAt,
			"stale_after": staleAfter.String(),
		}).Warn("risk bias stale, substituting conservative default")
		return conservative
	}

	return bias.Value
}
