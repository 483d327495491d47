// MIT License
//
// # Copyright (c) 2026 Kolin
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
package enrichment

import (
	"context"
	"fmt"
	"net"
	"sync"

	"keygate/internal/geo"

	"github.com/oschwald/geoip2-golang"
	"github.com/pterm/pterm"
)

// MMDBProvider resolves addresses from local MaxMind databases. The City
// database is required, the ASN database is optional.
type MMDBProvider struct {
	cityPath string
	asnPath  string
	logger   *pterm.Logger

	mu     sync.RWMutex
	cityDB *geoip2.Reader
	asnDB  *geoip2.Reader
}

// NewMMDBProvider opens the databases. It fails when the City database
// cannot be loaded.
func NewMMDBProvider(cityPath, asnPath string, logger *pterm.Logger) (*MMDBProvider, error) {
	p := &MMDBProvider{cityPath: cityPath, asnPath: asnPath, logger: logger}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *MMDBProvider) Name() string { return "mmdb" }

// Paths returns the database files backing the provider.
func (p *MMDBProvider) Paths() []string {
	if p.asnPath == "" {
		return []string{p.cityPath}
	}
	return []string{p.cityPath, p.asnPath}
}

// Reload opens fresh readers and swaps them in. On failure the current
// readers stay in place.
func (p *MMDBProvider) Reload() error {
	cityDB, err := geoip2.Open(p.cityPath)
	if err != nil {
		return fmt.Errorf("open GeoIP City database %s: %w", p.cityPath, err)
	}

	var asnDB *geoip2.Reader
	if p.asnPath != "" {
		asnDB, err = geoip2.Open(p.asnPath)
		if err != nil {
			p.logger.Warn("GeoIP ASN database not available",
				p.logger.Args("path", p.asnPath, "error", err))
			asnDB = nil
		}
	}

	p.mu.Lock()
	oldCity, oldASN := p.cityDB, p.asnDB
	p.cityDB, p.asnDB = cityDB, asnDB
	p.mu.Unlock()

	if oldCity != nil {
		oldCity.Close()
	}
	if oldASN != nil {
		oldASN.Close()
	}

	p.logger.Info("Loaded GeoIP databases",
		p.logger.Args("city", p.cityPath, "asn_loaded", asnDB != nil))
	return nil
}

func (p *MMDBProvider) Lookup(ctx context.Context, ip string) (*geo.GeoInfo, error) {
	if ip == "" {
		// a local database cannot tell us our own public address
		return nil, geo.ErrNoData
	}
	addr := net.ParseIP(ip)
	if addr == nil {
		return nil, fmt.Errorf("invalid ip %q", ip)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.cityDB == nil {
		return nil, geo.ErrNoData
	}
	record, err := p.cityDB.City(addr)
	if err != nil {
		return nil, fmt.Errorf("city lookup: %w", err)
	}
	if record.Country.IsoCode == "" {
		return nil, geo.ErrNoData
	}

	info := &geo.GeoInfo{
		IP:          ip,
		CountryName: record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
		UTCOffset:   geo.OffsetForZone(record.Location.TimeZone),
	}

	if p.asnDB != nil {
		if asn, err := p.asnDB.ASN(addr); err == nil {
			info.Org = asn.AutonomousSystemOrganization
		} else {
			p.logger.Debug("GeoIP ASN lookup failed", p.logger.Args("ip", ip, "error", err))
		}
	}

	p.logger.Trace("GeoIP lookup successful", p.logger.Args("ip", ip, "country", info.CountryCode))
	return info, nil
}

// Close closes the GeoIP databases
func (p *MMDBProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cityDB != nil {
		p.cityDB.Close()
		p.cityDB = nil
	}
	if p.asnDB != nil {
		p.asnDB.Close()
		p.asnDB = nil
	}
	p.logger.Info("Closed GeoIP databases")
	return nil
}
