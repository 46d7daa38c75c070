package migraterunner

import (
	"context"

	"go.uber.org/zap"

	"github.com/seismolink/siteapi/runner"
)

type migrator struct {
	cfg    *runner.Config
	logger *zap.Logger
	store  *runner.Store
}

// New creates a runner that applies SQLite migrations or ensures MongoDB
// indexes, then exits
func New(cfg *runner.Config, logger *zap.Logger) (runner.Runner, error) {
	return &migrator{cfg: cfg, logger: logger}, nil
}

func (m *migrator) Run(ctx context.Context) error {
	store, err := runner.OpenStore(ctx, m.cfg, true, m.logger)
	if err != nil {
		return err
	}
	m.store = store

	m.logger.Info("database migrations completed", zap.String("database", store.Backend))

	return nil
}

func (m *migrator) Close(ctx context.Context) error {
	if m.store != nil {
		return m.store.Close(ctx)
	}
	return nil
}
