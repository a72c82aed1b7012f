package statspush

import (
	"context"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/recovery"
	"github.com/papertrail/go-tail/follower"
	"github.com/pkg/errors"
)

// SnapshotSource produces one serialized stats snapshot per call.
// Implementations must be safe for concurrent use, since independent
// targets may share a source.
type SnapshotSource interface {
	Snapshot(context.Context) ([]byte, error)
}

// SourceFunc adapts a function to the SnapshotSource interface.
type SourceFunc func(context.Context) ([]byte, error)

func (f SourceFunc) Snapshot(ctx context.Context) ([]byte, error) { return f(ctx) }

// StatsServerSource reads snapshots from a uWSGI stats server, which
// writes one JSON document to each new connection and closes it.
// Addresses containing a '/' are unix sockets, everything else is TCP.
type StatsServerSource struct {
	Address string
	// Timeout bounds dialing and reading when the context has no
	// deadline. Defaults to five seconds.
	Timeout time.Duration
}

func (s StatsServerSource) Snapshot(ctx context.Context) ([]byte, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	network := "tcp"
	if strings.Contains(s.Address, "/") {
		network = "unix"
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, network, s.Address)
	if err != nil {
		return nil, errors.Wrapf(err, "problem connecting to stats server '%s'", s.Address)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(timeout)
	}
	if err = conn.SetDeadline(deadline); err != nil {
		return nil, errors.Wrap(err, "problem setting stats server deadline")
	}

	data, err := io.ReadAll(conn)
	if err != nil {
		return nil, errors.Wrapf(err, "problem reading from stats server '%s'", s.Address)
	}

	return data, nil
}

// FileSource reads the whole file on every snapshot, for servers
// that dump their stats to a file.
type FileSource struct {
	Path string
}

func (s FileSource) Snapshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "problem reading stats file '%s'", s.Path)
	}
	return data, nil
}

// FollowSource watches the end of a file of newline-separated JSON
// snapshots, a la "tail -f", and serves the most recent complete line.
type FollowSource struct {
	path   string
	mu     sync.RWMutex
	latest []byte
	err    error
}

// NewFollowSource starts following path until ctx is canceled.
func NewFollowSource(ctx context.Context, path string) (*FollowSource, error) {
	tail, err := follower.New(path, follower.Config{
		Reopen: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "problem setting up file follower of '%s'", path)
	}

	s := &FollowSource{path: path}
	go s.follow(ctx, tail)

	return s, nil
}

func (s *FollowSource) follow(ctx context.Context, tail *follower.Follower) {
	defer recovery.LogStackTraceAndContinue("following stats file")
	defer tail.Close()

	lines := tail.Lines()
	for {
		select {
		case <-ctx.Done():
			s.stop(errors.Wrapf(ctx.Err(), "stopped following '%s'", s.path))
			return
		case line, ok := <-lines:
			if !ok {
				err := tail.Err()
				if err == nil {
					err = errors.New("lines channel closed")
				}
				s.stop(errors.Wrapf(err, "follower of '%s' stopped", s.path))
				return
			}

			text := strings.TrimSpace(line.String())
			if text == "" {
				continue
			}

			s.mu.Lock()
			s.latest = []byte(text)
			s.mu.Unlock()

			grip.Debug(message.Fields{
				"op":   "follow stats file",
				"file": s.path,
				"size": len(text),
			})
		}
	}
}

// stop records why following ended. Once stopped, the cached line is
// stale and is no longer served.
func (s *FollowSource) stop(err error) {
	grip.Warning(message.WrapError(err, message.Fields{
		"op":   "follow stats file",
		"file": s.path,
	}))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Snapshot returns the most recently read line. It is an error to call
// Snapshot before the first line has been read or after following has
// stopped.
func (s *FollowSource) Snapshot(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return nil, s.err
	}
	if s.latest == nil {
		return nil, errors.Errorf("no snapshot read from '%s' yet", s.path)
	}

	out := make([]byte, len(s.latest))
	copy(out, s.latest)
	return out, nil
}
