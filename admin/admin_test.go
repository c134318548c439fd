package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cabinsite/analytics"
	"cabinsite/cabins"
	"cabinsite/common"
	"cabinsite/database"
	"cabinsite/models"
	"cabinsite/reviews"
	"cabinsite/settings"
	"cabinsite/upload"
)

const (
	testUser     = "admin"
	testPassword = "s3cret"
	testPath     = "hidden"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	common.PasswordCost = bcrypt.MinCost
	seed := database.Seed{AdminUsername: testUser, AdminPassword: testPassword, AdminPath: testPath}
	require.NoError(t, database.RunMigrations(db, seed, zap.NewNop()))
	require.NoError(t, db.Where("1 = 1").Delete(&models.Cabin{}).Error)
	return db
}

type testEnv struct {
	db       *gorm.DB
	identity *IdentityService
	settings *settings.Service
	drafts   *MemoryDrafts
	uploads  string
	server   *httptest.Server
	client   *http.Client
}

func setupTestServer(t *testing.T) *testEnv {
	db := setupTestDB(t)
	log := zap.NewNop()

	identity := NewIdentityService(db)
	require.NoError(t, identity.Load(context.Background()))

	dir := t.TempDir()
	storage, err := upload.NewLocalStorage(dir)
	require.NoError(t, err)

	env := &testEnv{
		db:       db,
		identity: identity,
		settings: settings.NewService(db),
		drafts:   NewMemoryDrafts(DraftTTL),
		uploads:  dir,
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.SetFuncMap(common.TemplateFuncs())
	router.LoadHTMLGlob("views/*.html")
	store := cookie.NewStore([]byte("secret"))
	store.Options(sessions.Options{Path: "/", HttpOnly: true})
	router.Use(sessions.Sessions("test-session", store))

	NewAdminModule(identity, env.drafts, log).RegisterRoutes(router.Group("/api"), RequireAdmin)
	NewConsoleModule(ConsoleDeps{
		Identity: identity,
		Cabins:   cabins.NewService(db),
		Settings: env.settings,
		Reviews:  reviews.NewService(db),
		Uploads:  upload.NewService(storage, 1<<20),
		Stats:    analytics.NewAnalyticsModule(db, log),
		Drafts:   env.drafts,
		Log:      log,
	}).RegisterRoutes(router)

	env.server = httptest.NewServer(common.PathRewriter(router, identity.CurrentPath, ConsolePrefix))
	t.Cleanup(env.server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	env.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) (*http.Response, string) {
	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func (e *testEnv) json(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, raw := e.do(t, method, path, &buf, "application/json")
	out := map[string]interface{}{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal([]byte(raw), &out))
	}
	return resp, out
}

func (e *testEnv) form(t *testing.T, path string, values url.Values) (*http.Response, string) {
	return e.do(t, http.MethodPost, path, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded")
}

func (e *testEnv) login(t *testing.T) {
	resp, body := e.json(t, http.MethodPost, "/api/admin/login", map[string]string{"username": testUser, "password": testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
