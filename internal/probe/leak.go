package probe

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/ccding/go-stun/stun"
)

// LeakDetector finds a public address the visitor exposes outside the
// connection the gate sees. An empty result with a nil error means nothing
// was found.
type LeakDetector interface {
	Detect(ctx context.Context, req Request) (string, error)
}

// CandidateLeak reads the ICE candidate lines the browser gathered.
type CandidateLeak struct{}

func (CandidateLeak) Detect(ctx context.Context, req Request) (string, error) {
	for _, line := range req.Signals.WebRTCCandidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if ip := FirstPublicAddress(line); ip != "" {
			return ip, nil
		}
	}
	return "", nil
}

// FirstPublicAddress returns the first address in a candidate line that is
// not private, loopback, link-local or unspecified.
func FirstPublicAddress(candidate string) string {
	candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "a=")
	for _, field := range strings.Fields(candidate) {
		ip := net.ParseIP(field)
		if ip == nil || !isPublic(ip) {
			continue
		}
		return ip.String()
	}
	return ""
}

func isPublic(ip net.IP) bool {
	return !(ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified() || ip.IsMulticast())
}

// STUNLeak asks a STUN server for this host's server-reflexive address.
type STUNLeak struct {
	ServerAddr string
}

func (s STUNLeak) Detect(ctx context.Context, _ Request) (string, error) {
	type answer struct {
		ip  string
		err error
	}
	done := make(chan answer, 1)
	go func() {
		c := stun.NewClient()
		c.SetServerAddr(s.ServerAddr)
		_, host, err := c.Discover()
		if err != nil {
			done <- answer{err: err}
			return
		}
		if host == nil {
			done <- answer{}
			return
		}
		done <- answer{ip: host.IP()}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-done:
		if a.err != nil {
			return "", fmt.Errorf("stun discover via %s: %w", s.ServerAddr, a.err)
		}
		return a.ip, nil
	}
}
