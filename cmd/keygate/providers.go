package main

import (
	"io"
	"net/http"
	"strings"
	"time"

	"keygate/internal/config"
	"keygate/internal/enrichment"
	"keygate/internal/geo"

	"github.com/pterm/pterm"
)

const mmdbReloadDebounce = 2 * time.Second

// buildProviders turns GEO_PROVIDERS into the lookup chain, in order.
// Providers that cannot start are skipped. The returned closers release
// database readers and file watchers.
func buildProviders(cfg config.GeoConfig, logger *pterm.Logger) ([]geo.Provider, []io.Closer) {
	client := &http.Client{Timeout: cfg.Timeout}

	var providers []geo.Provider
	var closers []io.Closer

	for _, name := range cfg.Providers {
		switch strings.ToLower(name) {
		case "ipapi":
			providers = append(providers, geo.NewIPAPIProvider(cfg.IPAPIURL, client))
		case "ipinfo":
			if cfg.IPInfoToken == "" {
				logger.Debug("IPINFO_TOKEN not set, using ipinfo anonymous quota")
			}
			providers = append(providers, geo.NewIPInfoProvider(cfg.IPInfoToken, client))
		case "ipify":
			providers = append(providers, geo.NewIPifyProvider(cfg.IPifyURL, client))
		case "mmdb":
			if cfg.CityDBPath == "" {
				logger.Info("GEOIP_CITY_PATH not set, mmdb provider disabled")
				continue
			}
			mmdb, err := enrichment.NewMMDBProvider(cfg.CityDBPath, cfg.ASNDBPath, logger)
			if err != nil {
				logger.Warn("mmdb provider disabled", logger.Args("error", err))
				continue
			}
			providers = append(providers, mmdb)
			closers = append(closers, mmdb)

			if cfg.WatchDatabases {
				watcher, err := enrichment.NewReloadWatcher(mmdb.Paths(), mmdb.Reload, mmdbReloadDebounce, logger)
				if err != nil {
					logger.Warn("GeoIP database watcher not started", logger.Args("error", err))
					continue
				}
				closers = append(closers, watcher)
			}
		default:
			logger.Warn("Unknown geolocation provider ignored", logger.Args("provider", name))
		}
	}

	if len(providers) == 0 {
		logger.Warn("No geolocation provider available, every visitor will be allowed without a country")
	}
	return providers, closers
}

func closeAll(closers []io.Closer, logger *pterm.Logger) {
	// reverse order: watchers before the readers they reload
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warn("Close failed", logger.Args("error", err))
		}
	}
}
