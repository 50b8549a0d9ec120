package watchdog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/healtharchive/internal/config"
	"github.com/jonesrussell/healtharchive/internal/jobstore"
	"github.com/jonesrussell/healtharchive/internal/logger"
)

func TestSupervisor_RunExitsWhenContextCancelled(t *testing.T) {
	db, _, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	store := jobstore.New(db, logger.NewNop())
	cfg := config.WatchdogConfig{}
	cfg.SetDefaults()
	cfg.TickInterval = time.Millisecond

	sup := NewSupervisor(store, cfg, t.TempDir(), nil, nil, logger.NewNop())
	defer sup.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("supervisor did not exit after context cancellation")
	}
}
