package banner

import (
	"strings"
	"testing"

	"keygate/internal/config"
)

func TestSummary(t *testing.T) {
	cfg := &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 9000},
		Database: config.DatabaseConfig{Path: "gate.db", RetentionDays: 0},
		Geo:      config.GeoConfig{Providers: []string{"ipapi", "mmdb"}},
	}

	items := Summary(cfg)
	var texts []string
	for _, item := range items {
		texts = append(texts, item.Text)
	}
	joined := strings.Join(texts, "\n")

	for _, want := range []string{"127.0.0.1:9000", "gate.db", "retention disabled", "ipapi > mmdb", "ADMIN_PASSWORD unset"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected summary to mention %q, got:\n%s", want, joined)
		}
	}

	cfg.Database.RetentionDays = 30
	cfg.Database.CleanupTime = "04:15"
	cfg.Admin.Password = "secret"
	joined = ""
	for _, item := range Summary(cfg) {
		joined += item.Text + "\n"
	}
	if !strings.Contains(joined, "30 days, daily at 04:15") {
		t.Errorf("Expected retention window in summary, got:\n%s", joined)
	}
	if strings.Contains(joined, "ADMIN_PASSWORD unset") {
		t.Errorf("Expected admin API to be reported enabled")
	}
}
