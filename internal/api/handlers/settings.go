package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"keygate/internal/database/models"
	"keygate/internal/database/repositories"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
)

// maxMessageLength caps admin-authored ban messages
const maxMessageLength = 2000

var (
	flagSettings = []string{
		models.SettingBlockVPN,
		models.SettingBlockTimezoneMismatch,
		models.SettingBlockAdvancedProtection,
	}
	messageSettings = []string{
		models.SettingVPNBanMessage,
		models.SettingGeoBanMessage,
		models.SettingIPBanMessage,
		models.SettingCustomerBanMessage,
	}
)

type SettingsHandler struct {
	settings repositories.SettingsRepository
	logger   *pterm.Logger
}

func NewSettingsHandler(settings repositories.SettingsRepository, logger *pterm.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: logger}
}

// GetSettings returns every stored setting as a key/value object
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	rows, err := h.settings.All(c.Request.Context())
	if err != nil {
		h.logger.WithCaller().Error("Failed to read settings", h.logger.Args("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read settings"})
		return
	}
	c.JSON(http.StatusOK, lo.Associate(rows, func(s models.SiteSetting) (string, string) {
		return s.Key, s.Value
	}))
}

// UpdateSettings stores a partial key/value object. Unknown keys and
// non-boolean flag values are rejected as a whole.
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var body map[string]string
	if err := c.ShouldBindJSON(&body); err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Expected a non-empty object of settings"})
		return
	}

	values, err := normalizeSettings(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.settings.Set(c.Request.Context(), values); err != nil {
		h.logger.WithCaller().Error("Failed to update settings", h.logger.Args("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update settings"})
		return
	}

	h.logger.Info("Settings updated", h.logger.Args("keys", strings.Join(lo.Keys(values), ",")))
	h.GetSettings(c)
}

func normalizeSettings(body map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(body))
	for key, value := range body {
		switch {
		case lo.Contains(flagSettings, key):
			v := strings.ToLower(strings.TrimSpace(value))
			if v != "true" && v != "false" {
				return nil, fmt.Errorf("%s must be true or false", key)
			}
			out[key] = v
		case lo.Contains(messageSettings, key):
			if len(value) > maxMessageLength {
				return nil, fmt.Errorf("%s is longer than %d characters", key, maxMessageLength)
			}
			out[key] = strings.TrimSpace(value)
		default:
			return nil, fmt.Errorf("unknown setting %q", key)
		}
	}
	return out, nil
}
