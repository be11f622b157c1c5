package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/robfig/cron/v3"

	"github.com/omalloc/taskboard/bus"
)

const DefaultSyncSchedule = "@every 30s"

var _ transport.Server = (*Syncer)(nil)

// Syncer refreshes a Store in the background on a cron schedule and
// announces the refresh on the bus when the collection changed.
type Syncer struct {
	store    *Store
	bus      *bus.Bus
	schedule string
	cron     *cron.Cron

	mu  sync.Mutex
	ctx context.Context
}

// NewSyncer creates a syncer for s. An empty schedule means
// DefaultSyncSchedule.
func NewSyncer(s *Store, b *bus.Bus, schedule string) *Syncer {
	if schedule == "" {
		schedule = DefaultSyncSchedule
	}
	return &Syncer{
		store:    s,
		bus:      b,
		schedule: schedule,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start implements transport.Server.
func (y *Syncer) Start(ctx context.Context) error {
	y.mu.Lock()
	y.ctx = ctx
	y.mu.Unlock()

	if _, err := y.cron.AddFunc(y.schedule, y.Sync); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", y.schedule, err)
	}
	y.cron.Start()

	log.Infof("syncer started with schedule %s", y.schedule)
	return nil
}

// Stop implements transport.Server. It waits for a running refresh.
func (y *Syncer) Stop(_ context.Context) error {
	<-y.cron.Stop().Done()
	log.Infof("syncer stopped")
	return nil
}

// Sync runs one background refresh.
func (y *Syncer) Sync() {
	y.mu.Lock()
	ctx := y.ctx
	y.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	before := y.store.Tasks()
	y.store.Load(ctx, false)
	after := y.store.Tasks()

	if slices.Equal(before, after) {
		return
	}
	log.Debugf("sync picked up changes: %d -> %d tasks", len(before), len(after))
	y.bus.Notify()
}
