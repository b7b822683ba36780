package source

import (
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/tauraamui/dragoneye/pkg/video/videobackend"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

const (
	defaultStreamPort = "8080"
	defaultStreamPath = "/video"
)

// StreamURL turns a camera address into something the video backend can
// open. A bare host, like the IP shown by a phone camera app, becomes
// http://<host>:8080/video. Addresses with a scheme are left alone.
func StreamURL(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if len(addr) == 0 {
		return "", xerror.New("stream address is undefined")
	}

	if strings.Contains(addr, "://") {
		u, err := url.Parse(addr)
		if err != nil {
			return "", xerror.Errorf("invalid stream address %s: %w", addr, err)
		}
		if len(u.Host) == 0 {
			return "", xerror.Errorf("stream address %s has no host", addr)
		}
		return addr, nil
	}

	host, path := addr, defaultStreamPath
	if i := strings.Index(addr, "/"); i >= 0 {
		host, path = addr[:i], addr[i:]
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, defaultStreamPort)
	}
	u := url.URL{Scheme: "http", Host: host, Path: path}
	return u.String(), nil
}

// connectionSource reads from a backend connection, a network stream or a
// camera device.
type connectionSource struct {
	conn      videobackend.Connection
	backend   videobackend.Backend
	closeOnce sync.Once
	closeErr  error
}

func newConnectionSource(conn videobackend.Connection, backend videobackend.Backend) *connectionSource {
	return &connectionSource{conn: conn, backend: backend}
}

func (s *connectionSource) UUID() string { return s.conn.UUID() }

func (s *connectionSource) Read() (videoframe.Frame, error) {
	frame := s.backend.NewFrame()
	if err := s.conn.Read(frame); err != nil {
		frame.Close()
		return nil, transientError(err)
	}
	return frame, nil
}

func (s *connectionSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
