package handlers

import (
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/pi-pioneer-hub/models"
	"github.com/yourusername/pi-pioneer-hub/rawlog"
	"github.com/yourusername/pi-pioneer-hub/reconcile"
	"gorm.io/gorm"
)

func reconcileRouter(t *testing.T) (*gin.Engine, *gorm.DB, *miniredis.Miniredis) {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := rawlog.NewStore(rdb)
	engine := reconcile.NewEngine(db, store, nil)
	handler := NewReconcileHandler(engine, store)

	router := gin.New()
	router.POST("/register", handler.Register)
	router.POST("/reconcile", handler.Reconcile)
	return router, db, mr
}

func TestRegisterHandler(t *testing.T) {
	router, _, mr := reconcileRouter(t)

	w := postJSON(router, "/register", RegisterRequest{UID: "u1", Username: "Alice", Wallet: "GABC"})
	assert.Equal(t, http.StatusCreated, w.Code)

	entries, err := mr.List(rawlog.KeyRegisteredPioneers)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0], "Alice")

	t.Run("Missing username", func(t *testing.T) {
		w := postJSON(router, "/register", RegisterRequest{UID: "u2"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestReconcileHandler(t *testing.T) {
	router, db, mr := reconcileRouter(t)
	mr.RPush(rawlog.KeyRegisteredPioneers,
		`{"uid":"u1","username":"Alice","wallet":"GABC","timestamp":1700000000}`,
		`garbage`,
	)

	req, _ := http.NewRequest("POST", "/reconcile", nil)
	w := performRequest(router, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"processed":2`)
	assert.Contains(t, w.Body.String(), `"upserted":1`)
	assert.Contains(t, w.Body.String(), `"skipped":1`)

	var count int64
	db.Model(&models.User{}).Count(&count)
	assert.EqualValues(t, 1, count)

	t.Run("Rebuild clears stale rows", func(t *testing.T) {
		require.NoError(t, db.Create(&models.User{Username: "ghost"}).Error)

		req, _ := http.NewRequest("POST", "/reconcile?rebuild=true", nil)
		w := performRequest(router, req)
		require.Equal(t, http.StatusOK, w.Code)

		var ghosts int64
		db.Model(&models.User{}).Where("username = ?", "ghost").Count(&ghosts)
		assert.EqualValues(t, 0, ghosts)
	})
}
