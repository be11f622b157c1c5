package storage

import (
	"fmt"
	"os"
	"time"
)

const (
	DriverNutsDB = "nutsdb"
	DriverSQLite = "sqlite"
)

// Open creates the record store named by driver under path, wrapped with the
// given simulated latency.
func Open(driver, path string, latency time.Duration) (RecordStore, error) {
	var (
		rs  RecordStore
		err error
	)

	switch driver {
	case "", DriverNutsDB:
		_ = os.MkdirAll(path, 0o755)
		rs, err = NewNutsDBStore(path)
	case DriverSQLite:
		rs, err = NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	return WithLatency(rs, latency), nil
}
