package source

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/grovetools/peersync/pkg/models"
	"github.com/sirupsen/logrus"
)

// LineSource reads "<kind> <handle>" lines, one signal per line. Blank lines
// and lines starting with '#' are ignored.
type LineSource struct {
	r      io.Reader
	logger *logrus.Entry
}

// NewLineSource creates a source reading from r.
func NewLineSource(r io.Reader, logger *logrus.Entry) *LineSource {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LineSource{r: r, logger: logger}
}

// Name returns the source's name.
func (s *LineSource) Name() string { return "lines" }

// Run reads until EOF or ctx is cancelled. A blocked read is abandoned, not
// interrupted, on cancellation.
func (s *LineSource) Run(ctx context.Context, n Notifier) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return nil
				}
			}
			kind, handle, ok := ParseLine(line)
			if !ok {
				if strings.TrimSpace(line) != "" && !strings.HasPrefix(strings.TrimSpace(line), "#") {
					s.logger.WithField("line", line).Warn("Ignoring malformed signal line")
				}
				continue
			}
			n.Notify(kind, handle)
		}
	}
}

// ParseLine parses "<kind> <handle>". The handle may contain spaces.
func ParseLine(line string) (models.ChangeKind, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return 0, "", false
	}
	name, handle, found := strings.Cut(line, " ")
	if !found {
		return 0, "", false
	}
	kind, err := models.ParseChangeKind(name)
	if err != nil {
		return 0, "", false
	}
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return 0, "", false
	}
	return kind, handle, true
}
