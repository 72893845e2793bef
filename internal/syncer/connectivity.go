package syncer

import (
	"context"
	"net"
	"time"
)

const defaultProbeTimeout = 3 * time.Second

// DialProbe implements Connectivity by attempting a TCP connection to a
// well-known address, typically the remote store's endpoint.
type DialProbe struct {
	Addr    string
	Timeout time.Duration
}

// NewDialProbe creates a probe against addr ("host:port").
func NewDialProbe(addr string) *DialProbe {
	return &DialProbe{Addr: addr, Timeout: defaultProbeTimeout}
}

// Reachable implements Connectivity.
func (p *DialProbe) Reachable(ctx context.Context) bool {
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Static is a fixed connectivity answer, for tests and configurations
// without a probe target.
type Static bool

// Reachable implements Connectivity.
func (s Static) Reachable(context.Context) bool { return bool(s) }
