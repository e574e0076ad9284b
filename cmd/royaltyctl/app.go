package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bitfsorg/royalty-go/cache"
	"github.com/bitfsorg/royalty-go/config"
	"github.com/bitfsorg/royalty-go/events"
	"github.com/bitfsorg/royalty-go/ledger"
	"github.com/bitfsorg/royalty-go/paymail"
	"github.com/bitfsorg/royalty-go/payout"
	"github.com/bitfsorg/royalty-go/royalty"
	"github.com/bitfsorg/royalty-go/x402"
)

var errNoFacilitator = errors.New("no facilitator configured (set facilitator_url or ROYALTY_FACILITATOR_URL)")

// app is the wired payout service and the resources behind it.
type app struct {
	svc       *payout.Service
	store     *ledger.BoltStore
	publisher events.Publisher
	redis     *redis.Client
}

// openApp wires the ledger, settlement path and event publisher from cfg.
// Without a facilitator URL the service can record and inspect
// distributions but every settlement fails.
func openApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	store, err := ledger.OpenBoltStore(cfg.LedgerPath())
	if err != nil {
		return nil, err
	}
	a := &app{store: store, publisher: events.NopPublisher{}}

	settler, err := a.settler(ctx, cfg, logger)
	if err != nil {
		a.close(logger)
		return nil, err
	}
	dist, err := royalty.NewDistributor(settler,
		royalty.WithConcurrency(cfg.Concurrency),
		royalty.WithRequireFullAllocation(cfg.StrictSplits),
		royalty.WithLogger(logger),
	)
	if err != nil {
		a.close(logger)
		return nil, err
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			a.close(logger)
			return nil, err
		}
		a.publisher = pub
	}

	a.svc, err = payout.NewService(store, dist,
		payout.WithPublisher(a.publisher),
		payout.WithStrictSplits(cfg.StrictSplits),
		payout.WithLogger(logger),
	)
	if err != nil {
		a.close(logger)
		return nil, err
	}
	return a, nil
}

func (a *app) settler(ctx context.Context, cfg config.Config, logger *zap.Logger) (royalty.Settler, error) {
	if cfg.FacilitatorURL == "" {
		return royalty.SettlerFunc(func(context.Context, royalty.Settlement) (royalty.SettlementReceipt, error) {
			return royalty.SettlementReceipt{}, errNoFacilitator
		}), nil
	}

	client, err := x402.NewClient(x402.ClientConfig{
		URL:       cfg.FacilitatorURL,
		Token:     cfg.FacilitatorToken,
		Timeout:   cfg.FacilitatorTimeout,
		VerifyBSV: cfg.VerifySettlements,
	}, logger)
	if err != nil {
		return nil, err
	}
	fs, err := payout.NewFacilitatorSettler(client)
	if err != nil {
		return nil, err
	}

	opts := []paymail.Option{
		paymail.WithNetwork(cfg.Network),
		paymail.WithTTL(cfg.CacheTTL),
		paymail.WithLogger(logger),
	}
	if cfg.DNSSECUpstream != "" {
		opts = append(opts, paymail.WithDNSResolver(paymail.NewDNSSECResolver(cfg.DNSSECUpstream)))
	}
	if cfg.RedisAddr != "" {
		rdb, err := cache.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, 0)
		if err != nil {
			return nil, err
		}
		a.redis = rdb
		rc, err := cache.NewRedisCache(rdb, "royalty:")
		if err != nil {
			return nil, err
		}
		opts = append(opts, paymail.WithCache(rc))
	}

	return payout.NewResolvingSettler(paymail.NewResolver(opts...), fs, logger)
}

func (a *app) close(logger *zap.Logger) {
	if err := a.publisher.Close(); err != nil {
		logger.Warn("close publisher", zap.Error(err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("close redis", zap.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		logger.Warn("close ledger", zap.Error(err))
	}
}

// withApp opens the app for the duration of fn.
func (c *cli) withApp(ctx context.Context, fn func(*app) error) error {
	a, err := openApp(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.close(c.logger)
	return fn(a)
}
