// Package source provides the raw change-signal producers that feed the
// daemon's collector.
package source

import (
	"context"

	"github.com/grovetools/peersync/pkg/models"
)

// Notifier accepts raw change signals. The pipeline collector implements it.
type Notifier interface {
	Notify(kind models.ChangeKind, handle string)
}

// Source is a background producer of change signals.
type Source interface {
	// Name returns the source's name for logging.
	Name() string

	// Run emits signals into n. It blocks until ctx is cancelled.
	Run(ctx context.Context, n Notifier) error
}
