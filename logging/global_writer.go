package logging

import (
	"io"
	"os"
	"sync"
)

// sharedOutput is the destination every component logger writes to. Each
// component has its own logrus.Logger, so writes are serialised here to keep
// lines from different components whole.
type sharedOutput struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *sharedOutput) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.w.Write(p)
}

func (o *sharedOutput) swap(w io.Writer) io.Writer {
	o.mu.Lock()
	defer o.mu.Unlock()
	old := o.w
	o.w = w
	return old
}

var output = &sharedOutput{w: os.Stderr}

// SetGlobalOutput redirects all loggers, including ones already created, and
// returns the previous destination.
func SetGlobalOutput(w io.Writer) io.Writer {
	return output.swap(w)
}

// GetGlobalOutput returns the shared log destination.
func GetGlobalOutput() io.Writer {
	return output
}

// syncWriter writes to w while holding the log output lock.
type syncWriter struct {
	w io.Writer
}

func (s syncWriter) Write(p []byte) (int, error) {
	output.mu.Lock()
	defer output.mu.Unlock()
	return s.w.Write(p)
}

// SyncWriter wraps w so that writes through it never interleave with log
// lines. Use it for user-facing output sharing a terminal with the logs.
func SyncWriter(w io.Writer) io.Writer {
	if o, ok := w.(*sharedOutput); ok && o == output {
		return w
	}
	return syncWriter{w: w}
}
