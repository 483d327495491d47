package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"keygate/internal/database/models"
	"keygate/internal/database/repositories"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// BansHandler manages the country, IP and customer ban lists
type BansHandler struct {
	bans   repositories.BanListRepository
	logger *pterm.Logger
}

func NewBansHandler(bans repositories.BanListRepository, logger *pterm.Logger) *BansHandler {
	return &BansHandler{bans: bans, logger: logger}
}

type countryBanRequest struct {
	CountryName string `json:"country_name" binding:"required"`
}

type ipBanRequest struct {
	IPAddress string `json:"ip_address" binding:"required"`
	Reason    string `json:"reason"`
}

type customerBanEntry struct {
	Identifier string                        `json:"identifier" binding:"required"`
	Type       models.CustomerIdentifierType `json:"type" binding:"required,oneof=email phone"`
	Reason     string                        `json:"reason"`
}

func (h *BansHandler) ListCountries(c *gin.Context) {
	rows, err := h.bans.ListCountries(c.Request.Context())
	h.respondList(c, "banned countries", rows, err)
}

func (h *BansHandler) AddCountry(c *gin.Context) {
	var body countryBanRequest
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.CountryName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "country_name is required"})
		return
	}
	row, err := h.bans.AddCountry(c.Request.Context(), body.CountryName)
	h.respondCreated(c, "country", row, err)
}

func (h *BansHandler) RemoveCountry(c *gin.Context) {
	h.remove(c, "country", h.bans.RemoveCountry)
}

func (h *BansHandler) ListIPs(c *gin.Context) {
	rows, err := h.bans.ListIPs(c.Request.Context())
	h.respondList(c, "banned IPs", rows, err)
}

func (h *BansHandler) AddIP(c *gin.Context) {
	var body ipBanRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ip_address is required"})
		return
	}
	if net.ParseIP(strings.TrimSpace(body.IPAddress)) == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ip_address is not a valid IP address"})
		return
	}
	row, err := h.bans.AddIP(c.Request.Context(), body.IPAddress, body.Reason)
	h.respondCreated(c, "IP", row, err)
}

func (h *BansHandler) RemoveIP(c *gin.Context) {
	h.remove(c, "IP", h.bans.RemoveIP)
}

func (h *BansHandler) ListCustomers(c *gin.Context) {
	rows, err := h.bans.ListCustomers(c.Request.Context())
	h.respondList(c, "banned customers", rows, err)
}

func (h *BansHandler) AddCustomer(c *gin.Context) {
	var body customerBanEntry
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identifier and a type of email or phone are required"})
		return
	}
	row, err := h.bans.AddCustomer(c.Request.Context(), body.Identifier, body.Type, body.Reason)
	h.respondCreated(c, "customer", row, err)
}

func (h *BansHandler) RemoveCustomer(c *gin.Context) {
	h.remove(c, "customer", h.bans.RemoveCustomer)
}

func (h *BansHandler) respondList(c *gin.Context, what string, rows any, err error) {
	if err != nil {
		h.logger.WithCaller().Error("Failed to list "+what, h.logger.Args("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list " + what})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *BansHandler) respondCreated(c *gin.Context, what string, row any, err error) {
	switch {
	case errors.Is(err, repositories.ErrAlreadyBanned):
		c.JSON(http.StatusConflict, gin.H{"error": what + " is already banned"})
	case err != nil:
		h.logger.WithCaller().Error("Failed to ban "+what, h.logger.Args("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ban " + what})
	default:
		c.JSON(http.StatusCreated, row)
	}
}

func (h *BansHandler) remove(c *gin.Context, what string, remove func(context.Context, uint) (int64, error)) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return
	}

	removed, err := remove(c.Request.Context(), uint(id))
	if err != nil {
		h.logger.WithCaller().Error("Failed to unban "+what, h.logger.Args("id", id, "error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unban " + what})
		return
	}
	if removed == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": what + " ban not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
