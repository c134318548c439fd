package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cabinsite/common"
	"cabinsite/database"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	common.PasswordCost = bcrypt.MinCost
	require.NoError(t, database.RunMigrations(db, database.Seed{AdminUsername: "admin", AdminPassword: "admin"}, zap.NewNop()))
	return db
}

func setupTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewSettingsModule(svc, zap.NewNop()).RegisterRoutes(router.Group("/api"), func(c *gin.Context) { c.Next() })
	return router
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUpdateTwice_LastValueWins(t *testing.T) {
	router := setupTestRouter(NewService(setupTestDB(t)))

	w := doJSON(router, http.MethodPut, "/api/settings", `{"heroTitle": "X"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(router, http.MethodPut, "/api/settings", `{"heroTitle": "Y"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])

	w = doJSON(router, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, w.Code)

	var values map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &values))
	assert.Equal(t, "Y", values["heroTitle"])
	assert.Len(t, values, 1)
}

func TestUpdate_Idempotent(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	value := map[string]interface{}{"gallery": []string{"/uploads/a.jpg"}}
	require.NoError(t, svc.Update(ctx, value))
	first, err := svc.All(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.Update(ctx, value))
	second, err := svc.All(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.JSONEq(t, `["/uploads/a.jpg"]`, string(second["gallery"]))
}

func TestUpdate_UnserializableValueRollsBackBatch(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, map[string]interface{}{"a": "before", "c": 1}))

	err := svc.Update(ctx, map[string]interface{}{
		"a": "after",
		"b": math.Inf(1),
		"c": 2,
	})
	require.ErrorIs(t, err, ErrInvalidValue)

	values, err := svc.All(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `"before"`, string(values["a"]))
	assert.JSONEq(t, `1`, string(values["c"]))
	assert.NotContains(t, values, "b")
}

func TestUpdate_InvalidKeyRollsBackBatch(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	err := svc.Update(ctx, map[string]interface{}{
		"a":                       true,
		strings.Repeat("k", 101): true,
	})
	require.ErrorIs(t, err, ErrInvalidKey)

	values, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestPut_BadPayload(t *testing.T) {
	router := setupTestRouter(NewService(setupTestDB(t)))

	for _, body := range []string{`[1,2]`, `null`, `not json`, `{"": 1}`} {
		w := doJSON(router, http.MethodPut, "/api/settings", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestPut_RequiresAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewSettingsModule(NewService(setupTestDB(t)), zap.NewNop()).RegisterRoutes(router.Group("/api"), func(c *gin.Context) {
		c.AbortWithStatus(http.StatusUnauthorized)
	})

	w := doJSON(router, http.MethodPut, "/api/settings", `{"heroTitle": "X"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDecodeContent_Defaults(t *testing.T) {
	assert.Equal(t, DefaultContent(), DecodeContent(nil))

	c := DecodeContent(map[string]json.RawMessage{
		KeyHero:     json.RawMessage(`{"title": ""}`),
		KeyFeatures: json.RawMessage(`{"not": "a list"}`),
		KeyContacts: json.RawMessage(`"not an object"`),
		KeyGallery:  json.RawMessage(`[" /uploads/a.jpg ", ""]`),
	})
	def := DefaultContent()
	assert.Equal(t, def.Hero, c.Hero)
	assert.Equal(t, def.Features, c.Features)
	assert.Equal(t, def.Contacts, c.Contacts)
	assert.Equal(t, []string{"/uploads/a.jpg"}, c.Gallery)
}

func TestDecodeContent_FlatHeroKeysWin(t *testing.T) {
	c := DecodeContent(map[string]json.RawMessage{
		KeyHero:         json.RawMessage(`{"title": "Object title", "subtitle": "Object subtitle"}`),
		KeyHeroTitle:    json.RawMessage(`"Flat title"`),
		KeyHeroSubtitle: json.RawMessage(`""`),
	})
	assert.Equal(t, "Flat title", c.Hero.Title)
	assert.Equal(t, "Object subtitle", c.Hero.Subtitle)
}

func TestSaveContent_RoundTrip(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	content := DefaultContent()
	content.Contacts = Contacts{Phone: "8 912 345-67-89"}
	content.Gallery = []string{"/uploads/one.jpg", "/uploads/two.jpg"}
	content.About.Body = "# Hello"
	require.NoError(t, svc.SaveContent(ctx, content))

	loaded, err := svc.Content(ctx)
	require.NoError(t, err)
	assert.Equal(t, content, loaded)
	assert.Equal(t, "8 912 345-67-89", loaded.Contacts.BookingPhone())
}

func TestDecodeContent_StoredEmptySectionsStayEmpty(t *testing.T) {
	c := DecodeContent(map[string]json.RawMessage{
		KeyFeatures: json.RawMessage(`[]`),
		KeyAbout:    json.RawMessage(`{"title": "", "body": ""}`),
	})
	assert.Equal(t, []Feature{}, c.Features)
	assert.Empty(t, c.About.Body)
	assert.Equal(t, DefaultContent().About.Title, c.About.Title)

	c = DecodeContent(map[string]json.RawMessage{KeyFeatures: json.RawMessage(`null`)})
	assert.Equal(t, DefaultContent().Features, c.Features)
}

func TestSaveContent_ClearsSections(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	content := DefaultContent()
	content.Features = nil
	content.About.Body = ""
	require.NoError(t, svc.SaveContent(ctx, content))

	loaded, err := svc.Content(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded.Features)
	assert.Empty(t, loaded.About.Body)
}

func TestSaveContent_OverridesFlatHeroKeys(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, map[string]interface{}{
		KeyHeroTitle:    "X",
		KeyHeroSubtitle: "Old subtitle",
	}))
	content, err := svc.Content(ctx)
	require.NoError(t, err)
	require.Equal(t, "X", content.Hero.Title)

	content.Hero.Title = "Edited in console"
	content.Hero.Subtitle = "New subtitle"
	require.NoError(t, svc.SaveContent(ctx, content))

	loaded, err := svc.Content(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Edited in console", loaded.Hero.Title)
	assert.Equal(t, "New subtitle", loaded.Hero.Subtitle)

	values, err := svc.All(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `"Edited in console"`, string(values[KeyHeroTitle]))
}

func TestUpdate_LongKeyMessageIsValidUTF8(t *testing.T) {
	svc := NewService(setupTestDB(t))

	err := svc.Update(context.Background(), map[string]interface{}{
		strings.Repeat("ключ", 30): true,
	})
	require.ErrorIs(t, err, ErrInvalidKey)
	assert.True(t, utf8.ValidString(err.Error()))
	assert.Contains(t, err.Error(), strings.Repeat("ключ", 5)+"...")

	require.NoError(t, svc.Update(context.Background(), map[string]interface{}{
		strings.Repeat("ё", maxKeyLength): true,
	}))
}

func TestContent_FallsBackOnStorageFailure(t *testing.T) {
	db := setupTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	content, err := NewService(db).Content(context.Background())
	assert.Error(t, err)
	assert.Equal(t, DefaultContent(), content)
}
