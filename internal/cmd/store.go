package cmd

import (
	"context"
	"fmt"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/courtcopilot/courtcopilot/internal/ailink"
	"github.com/courtcopilot/courtcopilot/internal/config"
	"github.com/courtcopilot/courtcopilot/internal/core/engine"
	"github.com/courtcopilot/courtcopilot/internal/core/extract"
	"github.com/courtcopilot/courtcopilot/internal/core/store"
	"github.com/courtcopilot/courtcopilot/internal/metrics"
	"github.com/courtcopilot/courtcopilot/internal/observability"
)

// newGateway builds the model gateway for a session. The returned func
// releases it.
var newGateway = func(cfg ailink.Config, logger *logging.Logger) (extract.Gateway, func(), error) {
	svc, err := ailink.NewService(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return svc, svc.Close, nil
}

// session is the configured store, model gateway and engine a command runs
// against.
type session struct {
	cfg          *config.Config
	kv           store.Backend
	closeGateway func()
	svc          *engine.Service
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return openSessionWith(ctx, cfg, observability.CLILogger)
}

func openSessionWith(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*session, error) {
	kv, err := store.OpenBackend(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	gateway, closeGateway, err := newGateway(cfg.AILink, logger)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("init model gateway: %w", err)
	}

	svc := engine.NewService(engine.Options{
		Gateway:          gateway,
		KV:               kv,
		CacheTTL:         cfg.Cache.TTL,
		HistoryMaxItems:  cfg.History.MaxItems,
		MaxQueryLength:   cfg.Pipeline.MaxQueryLength,
		CoalesceInflight: cfg.Pipeline.CoalesceInflight,
		Logger:           logger,
		Metrics:          metrics.NewPipeline(nil),
	})
	return &session{cfg: cfg, kv: kv, closeGateway: closeGateway, svc: svc}, nil
}

// Close releases the store and the gateway.
func (s *session) Close() {
	if s == nil {
		return
	}
	if s.closeGateway != nil {
		s.closeGateway()
		s.closeGateway = nil
	}
	if s.kv != nil {
		_ = s.kv.Close()
		s.kv = nil
	}
}
