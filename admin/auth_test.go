package admin

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabinsite/database"
	"cabinsite/models"
)

func TestLogin_ExactMatchOnly(t *testing.T) {
	identity := NewIdentityService(setupTestDB(t))
	ctx := context.Background()

	tests := []struct {
		username string
		password string
		ok       bool
	}{
		{testUser, testPassword, true},
		{"Admin", testPassword, false},
		{testUser, "S3cret", false},
		{testUser, testPassword + " ", false},
		{" " + testUser, testPassword, false},
		{"", "", false},
		{"nobody", "whatever", false},
	}
	for _, tt := range tests {
		ok, err := identity.Login(ctx, tt.username, tt.password)
		require.NoError(t, err)
		assert.Equal(t, tt.ok, ok, "%q / %q", tt.username, tt.password)
	}
}

func TestUpdateCredentials_ReplacesSingleton(t *testing.T) {
	db := setupTestDB(t)
	identity := NewIdentityService(db)
	ctx := context.Background()

	require.NoError(t, identity.UpdateCredentials(ctx, "owner", "new-pass"))

	var count int64
	db.Model(&models.AdminCredential{}).Count(&count)
	assert.Equal(t, int64(1), count)

	ok, err := identity.Login(ctx, "owner", "new-pass")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = identity.Login(ctx, testUser, testPassword)
	require.NoError(t, err)
	assert.False(t, ok)

	var cred models.AdminCredential
	require.NoError(t, db.First(&cred).Error)
	assert.NotEqual(t, "new-pass", cred.PasswordHash)

	assert.ErrorIs(t, identity.UpdateCredentials(ctx, " ", "x"), ErrInvalidCredentials)
	assert.ErrorIs(t, identity.UpdateCredentials(ctx, "x", ""), ErrInvalidCredentials)
}

func TestUpdatePath_AtomicReplace(t *testing.T) {
	db := setupTestDB(t)
	identity := NewIdentityService(db)
	ctx := context.Background()
	require.NoError(t, identity.Load(ctx))
	assert.Equal(t, testPath, identity.CurrentPath())

	require.NoError(t, identity.UpdatePath(ctx, "new_door-2"))
	assert.Equal(t, "new_door-2", identity.CurrentPath())

	var rows []models.AdminPath
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "new_door-2", rows[0].Path)
}

func TestUpdatePath_Validation(t *testing.T) {
	db := setupTestDB(t)
	identity := NewIdentityService(db)
	ctx := context.Background()

	for _, bad := range []string{"", "ab", "has space", "slash/inside", "api", "Uploads", "static", "cabins", "_console", "_Console", string(make([]byte, 65))} {
		assert.ErrorIs(t, identity.UpdatePath(ctx, bad), ErrInvalidPath, bad)
	}

	path, err := identity.Path(ctx)
	require.NoError(t, err)
	assert.Equal(t, testPath, path)
}

func TestPath_FallbackWhenEmpty(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Where("1 = 1").Delete(&models.AdminPath{}).Error)

	path, err := NewIdentityService(db).Path(context.Background())
	require.NoError(t, err)
	assert.Equal(t, database.DefaultAdminPath, path)
}

func TestAPI_LoginFlow(t *testing.T) {
	env := setupTestServer(t)

	resp, body := env.json(t, http.MethodPost, "/api/admin/login", map[string]string{"username": testUser, "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["message"])

	resp, body = env.json(t, http.MethodGet, "/api/admin/session", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["authenticated"])

	env.login(t)

	_, body = env.json(t, http.MethodGet, "/api/admin/session", nil)
	assert.Equal(t, true, body["authenticated"])

	resp, _ = env.json(t, http.MethodPost, "/api/admin/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = env.json(t, http.MethodGet, "/api/admin/session", nil)
	assert.Equal(t, false, body["authenticated"])
}

func TestAPI_IdentityRoutesRequireSession(t *testing.T) {
	env := setupTestServer(t)

	resp, _ := env.json(t, http.MethodGet, "/api/admin/path", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = env.json(t, http.MethodPut, "/api/admin/path", map[string]string{"path": "other"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = env.json(t, http.MethodPut, "/api/admin/credentials", map[string]string{"username": "x", "password": "y"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, testPath, env.identity.CurrentPath())
}

func TestAPI_PathAndCredentials(t *testing.T) {
	env := setupTestServer(t)
	env.login(t)

	resp, body := env.json(t, http.MethodGet, "/api/admin/path", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testPath, body["path"])

	resp, body = env.json(t, http.MethodPut, "/api/admin/path", map[string]string{"path": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])

	resp, body = env.json(t, http.MethodPut, "/api/admin/path", map[string]string{"path": "back-office"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	_, body = env.json(t, http.MethodGet, "/api/admin/path", nil)
	assert.Equal(t, "back-office", body["path"])

	resp, body = env.json(t, http.MethodPut, "/api/admin/credentials", map[string]string{"username": "owner", "password": "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	ok, err := env.identity.Login(context.Background(), "owner", "pw")
	require.NoError(t, err)
	assert.True(t, ok)
}
