package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/pi-pioneer-hub/models"
	"github.com/yourusername/pi-pioneer-hub/reconcile"
	"github.com/yourusername/pi-pioneer-hub/utils"
	"gorm.io/gorm"
)

type UserHandler struct {
	db       *gorm.DB
	enricher *reconcile.Enricher
	chain    utils.ChainClientInterface
}

func NewUserHandler(db *gorm.DB, enricher *reconcile.Enricher, chain utils.ChainClientInterface) *UserHandler {
	return &UserHandler{db: db, enricher: enricher, chain: chain}
}

// List streams the whole directory, enriched.
func (h *UserHandler) List(c *gin.Context) {
	users := make([]models.EnrichedUser, 0)
	err := h.enricher.EnrichAll(c.Request.Context(), func(u models.EnrichedUser) error {
		users = append(users, u)
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	c.JSON(http.StatusOK, users)
}

// Get looks up one user by uid or username and enriches the row.
func (h *UserHandler) Get(c *gin.Context) {
	key := c.Param("key")

	var user models.User
	err := h.db.Where("uid = ?", key).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = h.db.Where("username = ?", key).First(&user).Error
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	enriched, err := h.enricher.Enrich(c.Request.Context(), user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enrich user"})
		return
	}

	c.JSON(http.StatusOK, enriched)
}

// Wallet queries the blockchain explorer for an address.
func (h *UserHandler) Wallet(c *gin.Context) {
	address := c.Param("address")

	summary, err := h.chain.WalletInfo(address)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to query wallet"})
		return
	}

	c.JSON(http.StatusOK, summary)
}
