package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filevault/internal/cache"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(_ context.Context) error {
	return f.err
}

func newHealthEnv(t *testing.T, storage storagePinger) chi.Router {
	t.Helper()

	// База данных недоступна, для проверки остальных зондов этого достаточно
	db, err := sqlx.Open("postgres", "host=127.0.0.1 port=1 user=test dbname=test sslmode=disable connect_timeout=1")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	h := NewHealthHandler(db, cache.NewClientFromRedis(rdb), storage)
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func TestHealthDetailedProbesStorage(t *testing.T) {
	router := newHealthEnv(t, fakePinger{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health/detailed", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var checks map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &checks))
	assert.Equal(t, "ok", checks["cache"])
	assert.Equal(t, "ok", checks["storage"])
	assert.NotEqual(t, "ok", checks["database"])
}

func TestHealthDetailedReportsStorageFailure(t *testing.T) {
	router := newHealthEnv(t, fakePinger{err: errors.New("bucket unreachable")})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health/detailed", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var checks map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &checks))
	assert.Equal(t, "bucket unreachable", checks["storage"])
}

func TestHealthBasicSkipsStorage(t *testing.T) {
	router := newHealthEnv(t, fakePinger{err: errors.New("bucket unreachable")})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	var checks map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &checks))
	assert.NotContains(t, checks, "storage")
}
