package geo

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// IPifyProvider is the last resort. It only ever knows the address.
type IPifyProvider struct {
	url    string
	client *http.Client
}

func NewIPifyProvider(url string, client *http.Client) *IPifyProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &IPifyProvider{url: url, client: client}
}

func (p *IPifyProvider) Name() string { return "ipify" }

// Lookup echoes ip when the caller already knows it and asks ipify otherwise.
func (p *IPifyProvider) Lookup(ctx context.Context, ip string) (*GeoInfo, error) {
	if ip != "" {
		return &GeoInfo{IP: ip}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	addr := net.ParseIP(strings.TrimSpace(string(data)))
	if addr == nil {
		return nil, fmt.Errorf("failed to parse IP address %q", string(data))
	}
	return &GeoInfo{IP: addr.String()}, nil
}
