package banner

import (
	"strconv"
	"strings"

	"keygate/internal/config"
	"keygate/internal/version"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

// Print renders the startup logo followed by the effective settings an
// operator usually wants to double-check.
func Print(cfg *config.Config) {
	logo, _ := pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithRGB("Key", pterm.NewRGB(255, 107, 53)),
		putils.LettersFromStringWithRGB("Gate", pterm.NewRGB(0, 0, 0))).
		Srender()
	pterm.DefaultCenter.Print(logo)

	pterm.DefaultSection.Println("KeyGate " + version.Version)
	_ = pterm.DefaultBulletList.WithItems(Summary(cfg)).Render()
}

// Summary lists the startup settings as bullet items.
func Summary(cfg *config.Config) []pterm.BulletListItem {
	retention := "disabled"
	if cfg.Database.RetentionDays > 0 {
		retention = strconv.Itoa(cfg.Database.RetentionDays) + " days, daily at " + cfg.Database.CleanupTime
	}
	admin := pterm.Green("enabled")
	if cfg.Admin.Password == "" {
		admin = pterm.Yellow("disabled (ADMIN_PASSWORD unset)")
	}

	return []pterm.BulletListItem{
		{Level: 0, Text: "Listening on " + cfg.Server.Addr()},
		{Level: 0, Text: "Database " + cfg.Database.Path},
		{Level: 1, Text: "Log retention " + retention},
		{Level: 0, Text: "Geolocation " + strings.Join(cfg.Geo.Providers, " > ")},
		{Level: 0, Text: "Admin API " + admin},
	}
}
