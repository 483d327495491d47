package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"keygate/internal/metrics"

	"github.com/pterm/pterm"
)

// ErrNoData is returned by a provider that answered but had nothing usable.
var ErrNoData = errors.New("no geolocation data")

// GeoInfo is one provider's answer for an address.
type GeoInfo struct {
	IP          string
	CountryName string
	CountryCode string
	City        string
	ISP         string
	Org         string

	// SecurityFlag is the provider's own vpn/proxy/tor verdict
	SecurityFlag bool
	// UTCOffset is the timezone offset of the address in seconds, when known
	UTCOffset *int

	Source string
	// HasRiskData marks answers that carry enough for risk scoring
	HasRiskData bool
}

// Provider resolves an address. An empty ip asks for the caller's own public address.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (*GeoInfo, error)
}

// Chain tries providers in order and returns the first successful answer.
type Chain struct {
	providers []Provider
	timeout   time.Duration
	logger    *pterm.Logger
}

func NewChain(providers []Provider, timeout time.Duration, logger *pterm.Logger) *Chain {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Chain{providers: providers, timeout: timeout, logger: logger}
}

// Providers returns the provider names in lookup order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

func (c *Chain) Lookup(ctx context.Context, ip string) (*GeoInfo, error) {
	var errs []error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		info, err := c.lookupOne(ctx, p, ip)
		if err != nil {
			metrics.GeoLookups.WithLabelValues(p.Name(), metrics.ResultError).Inc()
			c.logger.Debug("Geolocation provider failed", c.logger.Args("provider", p.Name(), "ip", ip, "error", err))
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}

		metrics.GeoLookups.WithLabelValues(p.Name(), metrics.ResultOK).Inc()
		info.Source = p.Name()
		c.logger.Trace("Geolocation resolved", c.logger.Args("provider", p.Name(), "ip", info.IP, "country", info.CountryName))
		return info, nil
	}

	if len(errs) == 0 {
		return nil, ErrNoData
	}
	return nil, errors.Join(errs...)
}

func (c *Chain) lookupOne(ctx context.Context, p Provider, ip string) (*GeoInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	info, err := p.Lookup(ctx, ip)
	if err != nil {
		return nil, err
	}
	if info == nil || info.IP == "" {
		return nil, ErrNoData
	}
	return info, nil
}

// OffsetForZone converts an IANA timezone name to its current UTC offset in
// seconds. Unknown zones return nil.
func OffsetForZone(name string) *int {
	if name == "" {
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil
	}
	_, offset := time.Now().In(loc).Zone()
	return &offset
}
