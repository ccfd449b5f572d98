package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/pi-pioneer-hub/models"
	"github.com/yourusername/pi-pioneer-hub/payments"
	"gorm.io/gorm"
)

type PaymentHandler struct {
	db         *gorm.DB
	settlement *payments.Service
}

func NewPaymentHandler(db *gorm.DB, settlement *payments.Service) *PaymentHandler {
	return &PaymentHandler{db: db, settlement: settlement}
}

type ApprovePaymentRequest struct {
	PaymentID string `json:"paymentId" binding:"required"`
}

func (h *PaymentHandler) Approve(c *gin.Context) {
	var req ApprovePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payment, err := h.settlement.Approve(c.Request.Context(), req.PaymentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

type CompletePaymentRequest struct {
	PaymentID string `json:"paymentId" binding:"required"`
	Txid      string `json:"txid" binding:"required"`
}

func (h *PaymentHandler) Complete(c *gin.Context) {
	var req CompletePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, alreadyApplied, err := h.settlement.Complete(c.Request.Context(), req.PaymentID, req.Txid)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subscription":    sub,
		"already_applied": alreadyApplied,
	})
}

type PayoutRequest struct {
	ToAddress    string  `json:"toAddress" binding:"required"`
	Amount       float64 `json:"amount" binding:"required,gt=0"`
	RecipientUID string  `json:"recipientUid" binding:"required"`
}

func (h *PaymentHandler) Payout(c *gin.Context) {
	var req PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txid, err := h.settlement.Payout(c.Request.Context(), req.ToAddress, req.Amount, req.RecipientUID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"txid": txid, "status": "completed"})
}

func (h *PaymentHandler) Get(c *gin.Context) {
	id := c.Param("id")
	var payment models.Payment

	if err := h.db.Where("payment_id = ?", id).First(&payment).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}

	c.JSON(http.StatusOK, payment)
}
