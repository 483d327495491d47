package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"keygate/internal/config"
	"keygate/internal/geo"
	"keygate/internal/probe"
	"keygate/internal/risk"

	"github.com/pterm/pterm"
)

// runProbe scores one address the way the gate would. Without -ip the
// public address of this host is discovered over STUN first. With -leak the
// STUN answer also serves as the WebRTC leak candidate.
func runProbe(cfg *config.Config, logger *pterm.Logger, args []string) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	ip := fs.String("ip", "", "IP address to probe (default: this host's public address via STUN)")
	ua := fs.String("ua", "", "User-Agent to score with")
	lang := fs.String("lang", "", "Accept-Language to score with")
	leak := fs.Bool("leak", false, "use this host's STUN address as the WebRTC leak candidate")
	timeout := fs.Duration("timeout", 10*time.Second, "overall probe timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	stunLeak := probe.STUNLeak{ServerAddr: cfg.Geo.STUNServer}
	if *ip == "" {
		spinner, _ := pterm.DefaultSpinner.Start("Discovering public address via " + cfg.Geo.STUNServer)
		discovered, err := stunLeak.Detect(ctx, probe.Request{})
		if err != nil || discovered == "" {
			spinner.Fail("STUN discovery failed")
			return fmt.Errorf("no -ip given and STUN discovery failed: %v", err)
		}
		spinner.Success("Public address " + discovered)
		*ip = discovered
	}

	providers, closers := buildProviders(cfg.Geo, logger)
	defer closeAll(closers, logger)

	var detector probe.LeakDetector = probe.CandidateLeak{}
	leakTimeout := cfg.Geo.LeakTimeout
	if *leak {
		detector = stunLeak
		// a real STUN round trip needs more than the browser-side budget
		leakTimeout = max(leakTimeout, 3*time.Second)
	}

	scorer := risk.NewScorer(risk.WeightsFromConfig(cfg.Risk))
	prober := probe.NewProber(geo.NewChain(providers, cfg.Geo.Timeout, logger), detector, scorer, leakTimeout, logger)

	result := prober.Probe(ctx, probe.Request{IP: *ip, UserAgent: *ua, AcceptLanguage: *lang})
	if result.IP == "" {
		pterm.Warning.Printfln("No provider could locate %s; the gate would allow this visitor", *ip)
		return nil
	}

	verdict := pterm.Green("clean")
	if result.IsVPN {
		verdict = pterm.Red("VPN")
	}

	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(pterm.TableData{
		{"Field", "Value"},
		{"IP", result.IP},
		{"Country", strings.TrimSpace(result.CountryName + " " + result.CountryCode)},
		{"City", result.City},
		{"ISP", result.ISP},
		{"Source", result.Source},
		{"Leaked IP", result.LeakedIP},
		{"Risk score", strconv.Itoa(result.RiskScore) + "/" + strconv.Itoa(scorer.Threshold())},
		{"Factors", strings.Join(result.RiskFactors, ", ")},
		{"Timezone", result.TimezoneDetail},
		{"Verdict", verdict},
	}).Render()
}
