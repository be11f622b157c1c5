package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"

	"github.com/omalloc/taskboard/bus"
	"github.com/omalloc/taskboard/conf"
	"github.com/omalloc/taskboard/storage"
	"github.com/omalloc/taskboard/store"
)

var (
	flagConf string = "config.yaml"

	name    = "taskboard"
	version = "v0.1.0"
)

func init() {
	log.SetLogger(log.With(log.NewStdLogger(os.Stderr),
		"ts", log.Timestamp(time.DateTime),
		"service.name", name,
	))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          name,
		Short:        "Personal task tracker",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flagConf, "conf", flagConf, "config file path")

	root.AddCommand(
		newAddCmd(),
		newEditCmd(),
		newRmCmd(),
		newLsCmd(),
		newCalendarCmd(),
		newStatsCmd(),
		newWatchCmd(),
	)
	return root
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (*conf.Bootstrap, error) {
	bc := conf.Default()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.Debugf("config %s not found, using defaults", path)
		return bc, nil
	}

	c := config.New(config.WithSource(file.NewSource(path)))
	defer c.Close()

	if err := c.Load(); err != nil {
		return nil, err
	}
	if err := c.Scan(bc); err != nil {
		return nil, err
	}
	return bc, nil
}

func setupLogger(bc *conf.Bootstrap) {
	logger := log.With(log.NewStdLogger(os.Stderr),
		"ts", log.Timestamp(time.DateTime),
		"service.name", name,
	)
	if bc.Logging.Caller {
		logger = log.With(logger, "caller", log.DefaultCaller)
	}
	log.SetLogger(log.NewFilter(logger, log.FilterLevel(log.ParseLevel(bc.Logging.Level))))
}

// env is everything a command needs to work on the task collection.
type env struct {
	bc      *conf.Bootstrap
	records storage.RecordStore
	bus     *bus.Bus
	store   *store.Store
}

func (e *env) Close() error {
	return e.records.Close()
}

// openEnv loads the config, opens the record store and performs the first
// load of the collection.
func openEnv(ctx context.Context) (*env, error) {
	bc, err := loadConfig(flagConf)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupLogger(bc)

	latency, err := bc.Storage.LatencyDuration()
	if err != nil {
		return nil, fmt.Errorf("storage latency: %w", err)
	}

	records, err := storage.Open(bc.Storage.Driver, bc.Storage.Path, latency)
	if err != nil {
		return nil, err
	}

	b := bus.New()
	s := store.New(records, b)
	s.Load(ctx, true)

	return &env{bc: bc, records: records, bus: b, store: s}, nil
}

// newApp runs the update bus and the background syncer until a signal
// arrives, then closes the record store.
func newApp(e *env) *kratos.App {
	syncer := store.NewSyncer(e.store, e.bus, e.bc.Sync.Schedule)

	return kratos.New(
		kratos.Name(name),
		kratos.Version(version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(log.GetLogger()),
		kratos.Server(
			e.bus,
			syncer,
		),
		kratos.AfterStart(func(_ context.Context) error {
			log.Infof("%s started", name)
			return nil
		}),
		kratos.AfterStop(func(_ context.Context) error {
			return e.Close()
		}),
	)
}
