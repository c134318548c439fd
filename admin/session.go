package admin

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cabinsite/common"
)

const (
	sessionAdminKey = "admin"
	sessionDraftKey = "draft_id"
)

// IsLoggedIn reports whether the request carries an authenticated admin session.
func IsLoggedIn(c *gin.Context) bool {
	ok, _ := sessions.Default(c).Get(sessionAdminKey).(bool)
	return ok
}

// RequireAdmin guards the mutating API routes.
func RequireAdmin(c *gin.Context) {
	if !IsLoggedIn(c) {
		common.Unauthorized(c)
		return
	}
	c.Next()
}

func startSession(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionAdminKey, true)
	session.Set(sessionDraftKey, uuid.NewString())
	return session.Save()
}

// endSession clears the session and returns the draft id it held.
func endSession(c *gin.Context) (string, error) {
	session := sessions.Default(c)
	draftID, _ := session.Get(sessionDraftKey).(string)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	return draftID, session.Save()
}

func draftID(c *gin.Context) (string, error) {
	session := sessions.Default(c)
	if id, ok := session.Get(sessionDraftKey).(string); ok && id != "" {
		return id, nil
	}
	id := uuid.NewString()
	session.Set(sessionDraftKey, id)
	return id, session.Save()
}
