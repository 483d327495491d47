package geo

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/ipinfo/go/v2/ipinfo"
)

// IPInfoProvider is the geo-only fallback backed by ipinfo.io.
type IPInfoProvider struct {
	client *ipinfo.Client
}

func NewIPInfoProvider(token string, httpClient *http.Client) *IPInfoProvider {
	return &IPInfoProvider{client: ipinfo.NewClient(httpClient, nil, token)}
}

func (p *IPInfoProvider) Name() string { return "ipinfo" }

func (p *IPInfoProvider) Lookup(ctx context.Context, ip string) (*GeoInfo, error) {
	var addr net.IP
	if ip != "" {
		if addr = net.ParseIP(ip); addr == nil {
			return nil, fmt.Errorf("invalid ip %q", ip)
		}
	}

	type answer struct {
		core *ipinfo.Core
		err  error
	}
	// the client has no context support
	done := make(chan answer, 1)
	go func() {
		core, err := p.client.GetIPInfo(addr)
		done <- answer{core, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case a := <-done:
		if a.err != nil {
			return nil, fmt.Errorf("ipinfo lookup: %w", a.err)
		}
		info := fromIPInfo(a.core)
		if info == nil {
			return nil, ErrNoData
		}
		return info, nil
	}
}

func fromIPInfo(core *ipinfo.Core) *GeoInfo {
	if core == nil || core.Bogon {
		return nil
	}
	info := &GeoInfo{
		CountryName: core.CountryName,
		CountryCode: core.Country,
		City:        core.City,
		Org:         core.Org,
		UTCOffset:   OffsetForZone(core.Timezone),
	}
	if core.IP != nil {
		info.IP = core.IP.String()
	}
	if info.CountryName == "" {
		info.CountryName = core.Country
	}
	return info
}
