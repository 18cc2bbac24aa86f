package ledger

import (
	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/pkg/paths"
	"github.com/grovetools/peersync/util/pathutil"
)

// OpenStore opens the backend named by backend. An empty path selects the
// default location under the state dir. The "memory" backend returns a nil
// Store, which keeps the ledger in memory only. The returned close function
// is never nil.
func OpenStore(backend, path string) (Store, func() error, error) {
	noop := func() error { return nil }
	if path != "" {
		path = pathutil.MustExpand(path)
	}
	switch backend {
	case "memory":
		return nil, noop, nil
	case "sqlite":
		if path == "" {
			path = paths.LedgerPath("db")
		}
		s, err := OpenSQLiteStore(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "", "file":
		if path == "" {
			path = paths.LedgerPath("json")
		}
		return NewFileStore(path), noop, nil
	default:
		return nil, nil, errors.ConfigInvalid("unknown ledger backend: " + backend)
	}
}
