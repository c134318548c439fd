package analytics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cabinsite/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.CabinVisit{}))
	return db
}

func setupTestRouter(a *AnalyticsModule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/cabins/:id", func(c *gin.Context) {
		id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
		a.TrackVisit(c, uint(id))
		c.Status(http.StatusOK)
	})
	return router
}

func visit(router *gin.Engine, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.8")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func visitorCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == VisitorCookie {
			return c
		}
	}
	t.Fatalf("visitor cookie not set")
	return nil
}

func TestTrackVisit_ThrottlesRepeatedViews(t *testing.T) {
	db := setupTestDB(t)
	a := NewAnalyticsModule(db, zap.NewNop())
	now := time.Now()
	a.now = func() time.Time { return now }
	router := setupTestRouter(a)

	cookie := visitorCookie(t, visit(router, "/cabins/1", nil))
	visit(router, "/cabins/1", cookie)
	visit(router, "/cabins/2", cookie)

	var count int64
	db.Model(&models.CabinVisit{}).Count(&count)
	assert.Equal(t, int64(2), count)

	now = now.Add(ThrottleWindow + time.Minute)
	visit(router, "/cabins/1", cookie)
	db.Model(&models.CabinVisit{}).Count(&count)
	assert.Equal(t, int64(3), count)
}

func TestTrackVisit_StoresClientDetails(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(NewAnalyticsModule(db, zap.NewNop()))

	visit(router, "/cabins/5", nil)

	var v models.CabinVisit
	require.NoError(t, db.First(&v).Error)
	assert.Equal(t, uint(5), v.CabinID)
	require.NotNil(t, v.Browser)
	assert.Equal(t, "Chrome", *v.Browser)
	require.NotNil(t, v.Language)
	assert.Equal(t, "ru-RU", *v.Language)
	assert.Len(t, v.VisitorID, 64)
}

func TestViewCounts(t *testing.T) {
	db := setupTestDB(t)
	a := NewAnalyticsModule(db, zap.NewNop())
	now := time.Now()

	require.NoError(t, db.Create(&[]models.CabinVisit{
		{CabinID: 1, VisitorID: "a", CreatedAt: now.Add(-time.Hour)},
		{CabinID: 1, VisitorID: "b", CreatedAt: now.Add(-2 * time.Hour)},
		{CabinID: 2, VisitorID: "a", CreatedAt: now.Add(-time.Hour)},
		{CabinID: 2, VisitorID: "c", CreatedAt: now.AddDate(0, 0, -40)},
	}).Error)

	counts, err := a.ViewCounts(context.Background(), now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, map[uint]int64{1: 2, 2: 1}, counts)
}

func TestVisitsByDay(t *testing.T) {
	db := setupTestDB(t)
	a := NewAnalyticsModule(db, zap.NewNop())
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	require.NoError(t, db.Create(&[]models.CabinVisit{
		{CabinID: 1, VisitorID: "a", CreatedAt: now.Add(-time.Hour)},
		{CabinID: 1, VisitorID: "b", CreatedAt: now.AddDate(0, 0, -2)},
		{CabinID: 1, VisitorID: "c", CreatedAt: now.AddDate(0, 0, -20)},
	}).Error)

	days, err := a.VisitsByDay(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, days, 7)
	assert.Equal(t, "2026-03-04", days[0].Date)
	assert.Equal(t, "2026-03-10", days[6].Date)
	assert.Equal(t, int64(1), days[6].Count)
	assert.Equal(t, int64(1), days[4].Count)
	assert.Equal(t, int64(0), days[5].Count)
}

func TestBrowserAndLanguage(t *testing.T) {
	assert.Nil(t, browser(""))
	assert.Equal(t, "Edge", *browser("Mozilla/5.0 Chrome/120 Safari/537 Edg/120"))
	assert.Equal(t, "Yandex", *browser("Mozilla/5.0 Chrome/120 YaBrowser/24.1 Safari/537"))
	assert.Equal(t, "Safari", *browser("Mozilla/5.0 (Macintosh) Version/17.0 Safari/605.1.15"))
	assert.Equal(t, "Firefox", *browser("Mozilla/5.0 Gecko/20100101 Firefox/121.0"))

	assert.Nil(t, language(""))
	assert.Equal(t, "en-US", *language("en-US;q=0.9, ru"))
}
