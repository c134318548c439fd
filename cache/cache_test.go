package cache

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T, ttl time.Duration) *PageCache {
	p, err := New(t.TempDir(), ttl)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func TestNew_DisabledWithoutTTL(t *testing.T) {
	p, err := New(t.TempDir(), 0)
	require.NoError(t, err)
	assert.Nil(t, p)

	_, ok := p.Read("/")
	assert.False(t, ok)
	assert.NoError(t, p.Write("/", []byte("x"), 0))
	assert.NoError(t, p.Clear())
}

func TestReadWrite(t *testing.T) {
	p := newTestCache(t, time.Minute)

	_, ok := p.Read("/cabins?page=2")
	assert.False(t, ok)

	require.NoError(t, p.Write("/cabins?page=2", []byte("<p>two</p>"), p.Generation()))
	body, ok := p.Read("/cabins?page=2")
	require.True(t, ok)
	assert.Equal(t, "<p>two</p>", string(body))

	_, ok = p.Read("/cabins?page=3")
	assert.False(t, ok)
}

func TestRead_Expired(t *testing.T) {
	p := newTestCache(t, time.Minute)
	require.NoError(t, p.Write("/", []byte("old"), p.Generation()))

	past := time.Now().Add(-2 * time.Minute)
	require.NoError(t, os.Chtimes(p.path("/"), past, past))

	_, ok := p.Read("/")
	assert.False(t, ok)

	require.NoError(t, p.ClearExpired())
	_, err := os.Stat(p.path("/"))
	assert.True(t, os.IsNotExist(err))
}

func TestWrite_StaleGenerationDropped(t *testing.T) {
	p := newTestCache(t, time.Minute)

	generation := p.Generation()
	require.NoError(t, p.Clear())
	require.NoError(t, p.Write("/", []byte("stale"), generation))

	_, ok := p.Read("/")
	assert.False(t, ok)
}

func setupTestRouter(p *PageCache, hits *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(InvalidateOnWrite(p, zap.NewNop()))
	router.GET("/", Pages(p, zap.NewNop()), func(c *gin.Context) {
		*hits++
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte("<h1>home</h1>"))
	})
	router.GET("/broken", Pages(p, zap.NewNop()), func(c *gin.Context) {
		*hits++
		c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", []byte("oops"))
	})
	router.POST("/api/things", func(c *gin.Context) { c.Status(http.StatusCreated) })
	router.POST("/api/invalid", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	return router
}

func get(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPages_HitAfterMiss(t *testing.T) {
	p := newTestCache(t, time.Minute)
	hits := 0
	router := setupTestRouter(p, &hits)

	w := get(router, http.MethodGet, "/")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	w = get(router, http.MethodGet, "/")
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, "<h1>home</h1>", w.Body.String())
	assert.Equal(t, 1, hits)
}

func TestPages_ErrorsNotCached(t *testing.T) {
	p := newTestCache(t, time.Minute)
	hits := 0
	router := setupTestRouter(p, &hits)

	get(router, http.MethodGet, "/broken")
	get(router, http.MethodGet, "/broken")
	assert.Equal(t, 2, hits)
}

func TestInvalidateOnWrite(t *testing.T) {
	p := newTestCache(t, time.Minute)
	hits := 0
	router := setupTestRouter(p, &hits)

	get(router, http.MethodGet, "/")
	get(router, http.MethodPost, "/api/invalid")
	assert.Equal(t, "HIT", get(router, http.MethodGet, "/").Header().Get("X-Cache"))

	get(router, http.MethodPost, "/api/things")
	assert.Equal(t, "MISS", get(router, http.MethodGet, "/").Header().Get("X-Cache"))
	assert.Equal(t, 2, hits)

	entries, err := filepath.Glob(filepath.Join(p.dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
