//go:build linux

package paddle

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"keyerd/internal/keyer"
	"keyerd/internal/logging"
)

const (
	evKey = 0x01

	keyRelease = 0
	keyPress   = 1
	keyRepeat  = 2

	// EVIOCGRAB, _IOW('E', 0x90, int)
	eviocgrab = 0x40044590

	pollTimeoutMs = 100
)

var (
	timevalSize = int(unsafe.Sizeof(unix.Timeval{}))
	eventSize   = timevalSize + 8
)

// EvdevSource reads key events from a Linux input device.
type EvdevSource struct {
	path    string
	mapping Mapping
	grab    bool
	log     *logging.Logger

	mu      sync.Mutex
	fd      int
	events  chan Event
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	started time.Time
}

// EvdevOption configures an EvdevSource.
type EvdevOption func(*EvdevSource)

// WithGrab takes exclusive access to the device so paddle presses do not
// also reach other applications.
func WithGrab() EvdevOption {
	return func(s *EvdevSource) { s.grab = true }
}

// WithLogger sets the source's logger.
func WithLogger(l *logging.Logger) EvdevOption {
	return func(s *EvdevSource) { s.log = l }
}

// NewEvdevSource creates a source for the device at path.
func NewEvdevSource(path string, m Mapping, opts ...EvdevOption) (*EvdevSource, error) {
	s := &EvdevSource{path: path, mapping: m, fd: -1}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.Default()
	}
	s.log = s.log.WithComponent("paddle")
	return s, nil
}

// Events returns the event channel. It is valid after Start.
func (s *EvdevSource) Events() <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

// Start opens the device and begins reading.
func (s *EvdevSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	fd, err := unix.Open(s.path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	if s.grab {
		if err := unix.IoctlSetInt(fd, eviocgrab, 1); err != nil {
			unix.Close(fd)
			return fmt.Errorf("grab %s: %w", s.path, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	s.fd = fd
	s.cancel = cancel
	s.events = make(chan Event, eventBuffer)
	s.done = make(chan struct{})
	s.started = time.Now()
	s.running = true

	s.log.Info("reading paddles", "device", s.path, "grab", s.grab)
	go s.readLoop(ctx, fd, s.events, s.done)
	return nil
}

func (s *EvdevSource) readLoop(ctx context.Context, fd int, out chan<- Event, done chan<- struct{}) {
	defer close(done)
	defer close(out)

	buf := make([]byte, eventSize*32)
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}

	for ctx.Err() == nil {
		n, err := unix.Poll(pfd, pollTimeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			s.log.Error("poll device", "error", err)
			return
		}
		if n == 0 {
			continue
		}
		if pfd[0].Revents&(unix.POLLHUP|unix.POLLERR) != 0 {
			s.log.Warn("device went away", "device", s.path)
			return
		}

		n, err = unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			s.log.Error("read device", "error", err)
			return
		}

		for off := 0; off+eventSize <= n; off += eventSize {
			ev, ok := s.decode(buf[off : off+eventSize])
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// decode turns one input_event record into a paddle Event. Non-key
// events, unmapped codes and autorepeat are rejected.
func (s *EvdevSource) decode(rec []byte) (Event, bool) {
	typ := binary.LittleEndian.Uint16(rec[timevalSize:])
	code := binary.LittleEndian.Uint16(rec[timevalSize+2:])
	value := int32(binary.LittleEndian.Uint32(rec[timevalSize+4:]))

	if typ != evKey || value == keyRepeat {
		return Event{}, false
	}
	p := s.mapping.Lookup(code)
	if p == keyer.None {
		return Event{}, false
	}
	return Event{
		Paddle:  p,
		Pressed: value == keyPress,
		At:      time.Since(s.started),
	}, true
}

// Stop stops reading, releases the grab and closes the device.
func (s *EvdevSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel, done, fd := s.cancel, s.done, s.fd
	s.fd = -1
	s.mu.Unlock()

	cancel()
	<-done

	if s.grab {
		unix.IoctlSetInt(fd, eviocgrab, 0)
	}
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	return nil
}
