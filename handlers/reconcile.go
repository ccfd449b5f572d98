package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/pi-pioneer-hub/rawlog"
	"github.com/yourusername/pi-pioneer-hub/reconcile"
)

type ReconcileHandler struct {
	engine *reconcile.Engine
	rawLog *rawlog.Store
}

func NewReconcileHandler(engine *reconcile.Engine, rawLog *rawlog.Store) *ReconcileHandler {
	return &ReconcileHandler{engine: engine, rawLog: rawLog}
}

type RegisterRequest struct {
	UID      string `json:"uid"`
	Username string `json:"username" binding:"required"`
	Wallet   string `json:"wallet"`
}

// Register appends a raw pioneer record to the ingestion log. The canonical
// directory only changes on the next reconciliation run.
func (h *ReconcileHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record := map[string]interface{}{
		"uid":       req.UID,
		"username":  req.Username,
		"wallet":    req.Wallet,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.rawLog.Append(c.Request.Context(), record); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record registration"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Registration recorded"})
}

// Reconcile runs one reconciliation pass. rebuild=true clears the directory
// first; it is destructive and sits behind the admin guard.
func (h *ReconcileHandler) Reconcile(c *gin.Context) {
	rebuild := c.Query("rebuild") == "true"

	var (
		result reconcile.Result
		err    error
	)
	if rebuild {
		result, err = h.engine.Rebuild(c.Request.Context())
	} else {
		result, err = h.engine.Reconcile(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Reconciliation failed", "partial": result})
		return
	}

	c.JSON(http.StatusOK, result)
}
