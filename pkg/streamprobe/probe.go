// Package streamprobe checks that the host behind a stream address accepts
// connections before a video backend spends its own, much longer, timeout on
// it.
package streamprobe

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/tauraamui/xerror"
)

var defaultPorts = map[string]string{
	"rtsp":  "554",
	"rtsps": "322",
	"http":  "80",
	"https": "443",
}

// HostPort resolves the address to dial for a stream URL, filling in the
// scheme's default port when none is given.
func HostPort(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if len(u.Hostname()) == 0 {
		return "", xerror.Errorf("stream address %s has no host", rawURL)
	}
	if len(u.Port()) > 0 {
		return u.Host, nil
	}
	port, ok := defaultPorts[u.Scheme]
	if !ok {
		return "", xerror.Errorf("unsupported stream scheme: %s", u.Scheme)
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

var dial = func(ctx context.Context, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", address)
}

// Probe opens and immediately closes a TCP connection to the stream's host.
func Probe(ctx context.Context, rawURL string, timeout time.Duration) error {
	address, err := HostPort(rawURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dial(ctx, address)
	if err != nil {
		return xerror.Errorf("stream host %s is unreachable: %w", address, err)
	}
	return conn.Close()
}
