package gate

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"keygate/internal/database"
	"keygate/internal/database/models"
	"keygate/internal/database/repositories"
	"keygate/internal/probe"
	"keygate/internal/realtime"
	"keygate/internal/session"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

type fakeProber struct {
	result probe.Result
	panic  bool
	calls  int
}

func (f *fakeProber) Probe(ctx context.Context, req probe.Request) probe.Result {
	f.calls++
	if f.panic {
		panic("probe exploded")
	}
	return f.result
}

type recordingSink struct {
	mu        sync.Mutex
	decisions []realtime.Decision
}

func (r *recordingSink) Ingest(d realtime.Decision) {
	r.mu.Lock()
	r.decisions = append(r.decisions, d)
	r.mu.Unlock()
}

type failingSettings struct {
	repositories.SettingsRepository
}

func (failingSettings) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	return nil, errors.New("settings table unavailable")
}

type failingVisitors struct {
	repositories.VisitorLogRepository
	fail bool
}

func (f *failingVisitors) Create(ctx context.Context, log *models.VisitorLog) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.VisitorLogRepository.Create(ctx, log)
}

type testEnv struct {
	db     *gorm.DB
	repos  Repositories
	flags  *session.Store
	prober *fakeProber
	sink   *recordingSink
	svc    *Service
}

func setupGate(t *testing.T, result probe.Result) *testEnv {
	t.Helper()
	logger := pterm.DefaultLogger.WithWriter(io.Discard)
	db, err := database.NewConnection(&database.Config{Path: database.MemoryPath}, logger)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	env := &testEnv{
		db: db,
		repos: Repositories{
			Bans:     repositories.NewBanListRepository(db, logger),
			Settings: repositories.NewSettingsRepository(db, logger),
			Visitors: repositories.NewVisitorLogRepository(db, logger),
			Blocked:  repositories.NewBlockedLogRepository(db, logger),
		},
		flags:  session.NewStore(time.Minute),
		prober: &fakeProber{result: result},
		sink:   &recordingSink{},
	}
	if err := env.repos.Settings.SeedDefaults(context.Background(), DefaultSettings()); err != nil {
		t.Fatalf("Failed to seed settings: %v", err)
	}
	env.rebuild(logger)
	return env
}

func (e *testEnv) rebuild(logger *pterm.Logger) {
	if logger == nil {
		logger = pterm.DefaultLogger.WithWriter(io.Discard)
	}
	e.svc = NewService(e.prober, e.repos, e.flags, e.sink, 50, logger)
}

func (e *testEnv) set(t *testing.T, values map[string]string) {
	t.Helper()
	if err := e.repos.Settings.Set(context.Background(), values); err != nil {
		t.Fatalf("Failed to update settings: %v", err)
	}
}

func (e *testEnv) blockedRows(t *testing.T) []models.BlockedLog {
	t.Helper()
	var rows []models.BlockedLog
	if err := e.db.Order("id").Find(&rows).Error; err != nil {
		t.Fatalf("Failed to read blocked logs: %v", err)
	}
	return rows
}

func franceVisitor() probe.Result {
	return probe.Result{IP: "81.2.69.160", CountryName: "France", CountryCode: "FR", City: "Paris"}
}

func request() probe.Request {
	return probe.Request{IP: "81.2.69.160", UserAgent: "Mozilla/5.0", Signals: probe.Signals{PageURL: "/shop"}}
}

func TestAllowsCleanVisitorWithCountry(t *testing.T) {
	env := setupGate(t, franceVisitor())

	d := env.svc.CheckAccess(context.Background(), "s1", request())
	if !d.Allowed || d.Country != "France" {
		t.Errorf("Expected allowed=true country=France, got %+v", d)
	}
	if d.Reason != "" || d.Message != "" {
		t.Errorf("Expected no reason or message, got %+v", d)
	}
}

func TestAdvancedProtectionBlocks(t *testing.T) {
	result := franceVisitor()
	result.RiskScore = 55
	result.IsVPN = true
	result.RiskFactors = []string{"WebRTC Leak", "Timezone Mismatch"}
	result.VPNReason = "WebRTC Leak, Timezone Mismatch"
	env := setupGate(t, result)
	env.set(t, map[string]string{
		models.SettingBlockAdvancedProtection: "true",
		models.SettingVPNBanMessage:           "No VPNs please",
	})

	d := env.svc.CheckAccess(context.Background(), "s1", request())
	if d.Allowed || d.Reason != ReasonVPN {
		t.Fatalf("Expected allowed=false reason=vpn, got %+v", d)
	}
	if d.Message != "No VPNs please" {
		t.Errorf("Expected configured VPN message, got %q", d.Message)
	}

	rows := env.blockedRows(t)
	if len(rows) != 1 {
		t.Fatalf("Expected 1 blocked log, got %d", len(rows))
	}
	if rows[0].Reason != "Advanced Protection: Score 55/100 [WebRTC Leak, Timezone Mismatch]" {
		t.Errorf("Unexpected reason %q", rows[0].Reason)
	}
	if rows[0].AttemptedURL != "/shop" || rows[0].Country != "France" {
		t.Errorf("Unexpected blocked row %+v", rows[0])
	}
}

func TestNoFlagsNeverBlockOnRisk(t *testing.T) {
	result := franceVisitor()
	result.RiskScore = 175
	result.IsVPN = true
	result.TimezoneMismatch = true
	result.VPNReason = "API Detected VPN, Timezone Mismatch"
	env := setupGate(t, result)

	d := env.svc.CheckAccess(context.Background(), "s1", request())
	if !d.Allowed {
		t.Errorf("Expected allowed with every flag disabled, got %+v", d)
	}
	if len(env.blockedRows(t)) != 0 {
		t.Error("Expected no blocked logs")
	}
}

func TestLegacyVPNPath(t *testing.T) {
	result := franceVisitor()
	result.IsVPN = true
	result.RiskScore = 40
	result.VPNReason = "Suspicious ISP"

	env := setupGate(t, result)
	env.set(t, map[string]string{models.SettingBlockTimezoneMismatch: "true"})
	if d := env.svc.CheckAccess(context.Background(), "s1", request()); !d.Allowed {
		t.Errorf("Expected timezone flag not to block a non-timezone VPN, got %+v", d)
	}

	env.set(t, map[string]string{models.SettingBlockVPN: "true"})
	d := env.svc.CheckAccess(context.Background(), "s1", request())
	if d.Allowed || d.Reason != ReasonVPN || d.Message != DefaultVPNBanMessage {
		t.Errorf("Expected VPN block with default message, got %+v", d)
	}
}

func TestTimezoneMismatchPath(t *testing.T) {
	result := franceVisitor()
	result.IsVPN = true
	result.RiskScore = 55
	result.TimezoneMismatch = true
	result.TimezoneDetail = "browser UTC+03:00, IP UTC+01:00"
	result.VPNReason = "WebRTC Leak, Timezone Mismatch"

	env := setupGate(t, result)
	env.set(t, map[string]string{models.SettingBlockVPN: "true"})
	if d := env.svc.CheckAccess(context.Background(), "s1", request()); !d.Allowed {
		t.Errorf("Expected block_vpn not to cover timezone mismatches, got %+v", d)
	}

	env.set(t, map[string]string{models.SettingBlockTimezoneMismatch: "true"})
	d := env.svc.CheckAccess(context.Background(), "s1", request())
	if d.Allowed || d.Reason != ReasonVPN {
		t.Fatalf("Expected timezone block, got %+v", d)
	}
	rows := env.blockedRows(t)
	if len(rows) != 1 || !strings.Contains(rows[0].Reason, "browser UTC+03:00, IP UTC+01:00") {
		t.Errorf("Expected reason with timezone detail, got %+v", rows)
	}
}

func TestIPBanRegardlessOfScore(t *testing.T) {
	for _, score := range []int{0, 90} {
		result := franceVisitor()
		result.RiskScore = score
		env := setupGate(t, result)
		env.set(t, map[string]string{models.SettingIPBanMessage: "Banned network"})
		if _, err := env.repos.Bans.AddIP(context.Background(), "81.2.69.160", ""); err != nil {
			t.Fatalf("AddIP failed: %v", err)
		}

		d := env.svc.CheckAccess(context.Background(), "s1", request())
		if d.Allowed || d.Message != "Banned network" || d.Reason != "" {
			t.Errorf("score %d: expected IP ban without reason tag, got %+v", score, d)
		}
		rows := env.blockedRows(t)
		if len(rows) != 1 || rows[0].Reason != BlockReasonIPBan {
			t.Errorf("score %d: expected one IP Ban log, got %+v", score, rows)
		}
	}
}

func TestCountryBan(t *testing.T) {
	env := setupGate(t, franceVisitor())
	if _, err := env.repos.Bans.AddCountry(context.Background(), "France"); err != nil {
		t.Fatalf("AddCountry failed: %v", err)
	}

	d := env.svc.CheckAccess(context.Background(), "s1", request())
	if d.Allowed || d.Country != "France" || d.Message != DefaultGeoBanMessage {
		t.Errorf("Expected country ban, got %+v", d)
	}
	rows := env.blockedRows(t)
	if len(rows) != 1 || rows[0].Reason != BlockReasonCountryBan {
		t.Errorf("Expected one Country Ban log, got %+v", rows)
	}
}

func TestUnknownCountryAllowed(t *testing.T) {
	env := setupGate(t, probe.Result{IP: "203.0.113.9"})
	d := env.svc.CheckAccess(context.Background(), "s1", request())
	if !d.Allowed || d.Country != "" {
		t.Errorf("Expected allowed without country, got %+v", d)
	}
}

func TestFailOpen(t *testing.T) {
	env := setupGate(t, franceVisitor())
	if _, err := env.repos.Bans.AddCountry(context.Background(), "France"); err != nil {
		t.Fatalf("AddCountry failed: %v", err)
	}

	env.prober.panic = true
	if d := env.svc.CheckAccess(context.Background(), "s1", request()); !d.Allowed {
		t.Errorf("Expected allowed after probe panic, got %+v", d)
	}

	env.prober.panic = false
	sqlDB, _ := env.db.DB()
	sqlDB.Close()
	if d := env.svc.CheckAccess(context.Background(), "s2", request()); !d.Allowed {
		t.Errorf("Expected allowed when the database is gone, got %+v", d)
	}

	last := env.sink.decisions[len(env.sink.decisions)-1]
	if last.Category != CategoryError || !last.Allowed {
		t.Errorf("Expected error category on the feed, got %+v", last)
	}
}

func TestEmptyProbeAllowed(t *testing.T) {
	env := setupGate(t, probe.Result{})
	d := env.svc.CheckAccess(context.Background(), "s1", request())
	if !d.Allowed {
		t.Errorf("Expected allowed under total provider failure, got %+v", d)
	}
}

func TestSettingsReadFailureDisablesFlags(t *testing.T) {
	result := franceVisitor()
	result.RiskScore = 100
	result.IsVPN = true
	env := setupGate(t, result)
	env.set(t, map[string]string{
		models.SettingBlockVPN:                "true",
		models.SettingBlockAdvancedProtection: "true",
	})
	env.repos.Settings = failingSettings{env.repos.Settings}
	env.rebuild(nil)

	if d := env.svc.CheckAccess(context.Background(), "s1", request()); !d.Allowed {
		t.Errorf("Expected allowed when settings cannot be read, got %+v", d)
	}
}

func TestBlockedAttemptDedup(t *testing.T) {
	env := setupGate(t, franceVisitor())
	ctx := context.Background()

	attempt := Attempt{IP: "1.2.3.4", Reason: "Country Ban"}
	env.svc.LogBlockedAttempt(ctx, "s1", attempt)
	env.svc.LogBlockedAttempt(ctx, "s1", attempt)
	if got := len(env.blockedRows(t)); got != 1 {
		t.Errorf("Expected 1 row for repeated reason, got %d", got)
	}

	attempt.Reason = "IP Ban"
	env.svc.LogBlockedAttempt(ctx, "s1", attempt)
	if got := len(env.blockedRows(t)); got != 2 {
		t.Errorf("Expected a second row for a different reason, got %d", got)
	}

	attempt.Reason = "Country Ban"
	env.svc.LogBlockedAttempt(ctx, "s2", attempt)
	if got := len(env.blockedRows(t)); got != 3 {
		t.Errorf("Expected another session to log again, got %d", got)
	}
}

func TestLogVisitOncePerSession(t *testing.T) {
	env := setupGate(t, franceVisitor())
	ctx := context.Background()

	env.svc.LogVisit(ctx, "s1", Visit{Request: request()})
	env.svc.LogVisit(ctx, "s1", Visit{Request: request()})

	count, _ := env.repos.Visitors.Count(ctx)
	if count != 1 {
		t.Errorf("Expected exactly 1 visitor log, got %d", count)
	}
	if env.prober.calls != 1 {
		t.Errorf("Expected the duplicate visit not to probe, got %d probes", env.prober.calls)
	}

	var row models.VisitorLog
	env.db.First(&row)
	if row.Country != "France" || row.City != "Paris" || row.PageURL != "/shop" {
		t.Errorf("Unexpected visitor row %+v", row)
	}
}

func TestLogVisitUsesGivenResult(t *testing.T) {
	env := setupGate(t, franceVisitor())
	ctx := context.Background()

	given := probe.Result{IP: "5.6.7.8", CountryName: "Spain"}
	env.svc.LogVisit(ctx, "s1", Visit{Request: request(), Result: &given})
	if env.prober.calls != 0 {
		t.Errorf("Expected no probe when a result is supplied, got %d", env.prober.calls)
	}
}

func TestLogVisitSkipsDeniedSession(t *testing.T) {
	env := setupGate(t, franceVisitor())
	ctx := context.Background()
	ban, err := env.repos.Bans.AddCountry(ctx, "France")
	if err != nil {
		t.Fatalf("AddCountry failed: %v", err)
	}

	if d := env.svc.CheckAccess(ctx, "s1", request()); d.Allowed {
		t.Fatalf("Expected country ban, got %+v", d)
	}
	if !env.flags.IsSet("s1", session.FlagDenied) {
		t.Error("Expected session to be marked denied")
	}
	env.svc.LogVisit(ctx, "s1", Visit{Request: request()})
	if count, _ := env.repos.Visitors.Count(ctx); count != 0 {
		t.Errorf("Expected no visit for a denied session, got %d", count)
	}

	if _, err := env.repos.Bans.RemoveCountry(ctx, ban.ID); err != nil {
		t.Fatalf("RemoveCountry failed: %v", err)
	}
	if d := env.svc.CheckAccess(ctx, "s1", request()); !d.Allowed {
		t.Fatalf("Expected access after unban, got %+v", d)
	}
	env.svc.LogVisit(ctx, "s1", Visit{Request: request()})
	if count, _ := env.repos.Visitors.Count(ctx); count != 1 {
		t.Errorf("Expected 1 visit once the session is allowed, got %d", count)
	}
}

func TestLogVisitReleasesFlagOnFailure(t *testing.T) {
	env := setupGate(t, franceVisitor())
	ctx := context.Background()

	failing := &failingVisitors{VisitorLogRepository: env.repos.Visitors, fail: true}
	env.repos.Visitors = failing
	env.rebuild(nil)

	env.svc.LogVisit(ctx, "s1", Visit{Request: request()})
	if env.flags.IsSet("s1", session.FlagVisitorLogged) {
		t.Error("Expected flag to be released after a failed write")
	}

	failing.fail = false
	env.svc.LogVisit(ctx, "s1", Visit{Request: request()})
	count, _ := failing.Count(ctx)
	if count != 1 {
		t.Errorf("Expected retry to write 1 row, got %d", count)
	}
}

func TestCheckCustomerBan(t *testing.T) {
	env := setupGate(t, franceVisitor())
	ctx := context.Background()
	if _, err := env.repos.Bans.AddCustomer(ctx, "banned@example.com", models.CustomerEmail, "chargeback"); err != nil {
		t.Fatalf("AddCustomer failed: %v", err)
	}
	if _, err := env.repos.Bans.AddCustomer(ctx, "+44 7700 900123", models.CustomerPhone, ""); err != nil {
		t.Fatalf("AddCustomer failed: %v", err)
	}
	env.set(t, map[string]string{models.SettingCustomerBanMessage: "Contact support"})

	res := env.svc.CheckCustomerBan(ctx, "banned@example.com", "15551234567")
	if !res.Banned || res.Message != "Contact support" {
		t.Errorf("Expected banned with configured message, got %+v", res)
	}

	res = env.svc.CheckCustomerBan(ctx, "", "+44 7700 900123")
	if !res.Banned {
		t.Error("Expected banned phone to match")
	}

	res = env.svc.CheckCustomerBan(ctx, "clean@example.com", "")
	if res.Banned || res.Message != "" {
		t.Errorf("Expected not banned, got %+v", res)
	}
}

func TestCheckCustomerBanNoIdentifiers(t *testing.T) {
	env := setupGate(t, franceVisitor())
	// a closed database proves no query is issued
	sqlDB, _ := env.db.DB()
	sqlDB.Close()

	res := env.svc.CheckCustomerBan(context.Background(), "", "")
	if res.Banned {
		t.Error("Expected not banned without identifiers")
	}
	res = env.svc.CheckCustomerBan(context.Background(), " ", "+44")
	if res.Banned {
		t.Error("Expected a bare country code to be ignored")
	}
	// with an identifier the failed query still fails open
	res = env.svc.CheckCustomerBan(context.Background(), "a@b.c", "")
	if res.Banned {
		t.Error("Expected lookup error to fail open")
	}
}

func TestCustomerIdentifiers(t *testing.T) {
	tests := []struct {
		email, phone string
		expected     int
	}{
		{"", "", 0},
		{"a@b.c", "", 1},
		{"", "+1 (555)", 0},
		{"", "+1 555 12", 1},
		{"a@b.c", "15551234567", 2},
	}
	for _, tt := range tests {
		if got := customerIdentifiers(tt.email, tt.phone); len(got) != tt.expected {
			t.Errorf("customerIdentifiers(%q, %q): expected %d, got %v", tt.email, tt.phone, tt.expected, got)
		}
	}
}
