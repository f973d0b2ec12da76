// Package runid names crawl runs. Run ids are UUIDv7, so they sort by start
// time and the start time can be recovered from the id alone.
package runid

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Run identifies one crawl.
type Run struct {
	ID        string
	StartedAt time.Time
}

// Source hands out runs.
type Source struct {
	rand io.Reader
}

// New returns a Source backed by crypto/rand.
func New() *Source {
	return &Source{}
}

// NewWithReader returns a Source reading entropy from r. Tests use it for
// reproducible ids.
func NewWithReader(r io.Reader) *Source {
	return &Source{rand: r}
}

// Next starts a run stamped with the current time.
func (s *Source) Next() (Run, error) {
	var (
		id  uuid.UUID
		err error
	)
	if s.rand != nil {
		id, err = uuid.NewV7FromReader(s.rand)
	} else {
		id, err = uuid.NewV7()
	}
	if err != nil {
		return Run{}, fmt.Errorf("generate run id: %w", err)
	}
	started, err := startedAt(id)
	if err != nil {
		return Run{}, err
	}
	return Run{ID: id.String(), StartedAt: started}, nil
}

// StartedAt recovers the start time embedded in a run id, at millisecond
// precision.
func StartedAt(id string) (time.Time, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse run id %q: %w", id, err)
	}
	return startedAt(parsed)
}

func startedAt(id uuid.UUID) (time.Time, error) {
	if id.Version() != 7 {
		return time.Time{}, fmt.Errorf("run id %s is version %d, want 7", id, id.Version())
	}
	sec, nsec := id.Time().UnixTime()
	return time.Unix(sec, nsec).UTC().Truncate(time.Millisecond), nil
}
