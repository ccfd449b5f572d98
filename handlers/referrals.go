package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/pi-pioneer-hub/referrals"
)

type ReferralHandler struct {
	tracker *referrals.Tracker
}

func NewReferralHandler(tracker *referrals.Tracker) *ReferralHandler {
	return &ReferralHandler{tracker: tracker}
}

type CreateReferralRequest struct {
	ReferrerCode   string `json:"referrerCode" binding:"required"`
	ReferrerWallet string `json:"referrerWallet"`
	ReferredWallet string `json:"referredWallet" binding:"required"`
}

func (h *ReferralHandler) Create(c *gin.Context) {
	var req CreateReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ref, err := h.tracker.Create(c.Request.Context(), req.ReferrerCode, req.ReferrerWallet, req.ReferredWallet)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ref)
}

type SettleReferralRequest struct {
	ReferredWallet string `json:"referredWallet" binding:"required"`
	Points         int    `json:"points"`
}

func (h *ReferralHandler) Confirm(c *gin.Context) {
	var req SettleReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ref, err := h.tracker.Confirm(c.Request.Context(), req.ReferredWallet, req.Points)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ref)
}

func (h *ReferralHandler) Reject(c *gin.Context) {
	var req SettleReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ref, err := h.tracker.Reject(c.Request.Context(), req.ReferredWallet)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ref)
}

type ClaimRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
	Amount        int    `json:"amount" binding:"required,gt=0"`
}

func (h *ReferralHandler) Claim(c *gin.Context) {
	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claim, err := h.tracker.Claim(c.Request.Context(), req.WalletAddress, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, claim)
}

func (h *ReferralHandler) Stats(c *gin.Context) {
	wallet := c.Param("wallet")

	stats, err := h.tracker.Stats(c.Request.Context(), wallet)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
