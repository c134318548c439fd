package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cabinsite/common"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type pathRequest struct {
	Path string `json:"path"`
}

// AdminModule serves the JSON identity endpoints.
type AdminModule struct {
	identity *IdentityService
	drafts   DraftStore
	log      *zap.Logger
}

func NewAdminModule(identity *IdentityService, drafts DraftStore, log *zap.Logger) *AdminModule {
	return &AdminModule{identity: identity, drafts: drafts, log: log}
}

func (a *AdminModule) RegisterRoutes(api *gin.RouterGroup, requireAdmin gin.HandlerFunc) {
	group := api.Group("/admin")
	group.POST("/login", a.login)
	group.POST("/logout", a.logout)
	group.GET("/session", a.session)
	group.PUT("/credentials", requireAdmin, a.updateCredentials)
	group.GET("/path", requireAdmin, a.getPath)
	group.PUT("/path", requireAdmin, a.updatePath)
}

func (a *AdminModule) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid login payload"})
		return
	}

	ok, err := a.identity.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		common.ServerError(c, a.log, "login lookup failed", err)
		return
	}
	if !ok {
		a.log.Warn("admin login failed", zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid credentials"})
		return
	}

	if err := startSession(c); err != nil {
		common.ServerError(c, a.log, "failed to start session", err)
		return
	}
	a.log.Info("admin logged in", zap.String("ip", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Login successful"})
}

func (a *AdminModule) logout(c *gin.Context) {
	id, err := endSession(c)
	if err != nil {
		common.ServerError(c, a.log, "failed to end session", err)
		return
	}
	a.dropDraft(c, id)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

func (a *AdminModule) session(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"authenticated": IsLoggedIn(c)})
}

func (a *AdminModule) updateCredentials(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid credentials payload"})
		return
	}

	err := a.identity.UpdateCredentials(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if err != nil {
		common.ServerError(c, a.log, "failed to update credentials", err)
		return
	}
	a.log.Info("admin credentials updated")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Credentials updated successfully"})
}

func (a *AdminModule) getPath(c *gin.Context) {
	path, err := a.identity.Path(c.Request.Context())
	if err != nil {
		common.ServerError(c, a.log, "failed to load admin path", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

func (a *AdminModule) updatePath(c *gin.Context) {
	var req pathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid path payload"})
		return
	}

	err := a.identity.UpdatePath(c.Request.Context(), req.Path)
	if errors.Is(err, ErrInvalidPath) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if err != nil {
		common.ServerError(c, a.log, "failed to update admin path", err)
		return
	}
	a.log.Info("admin path updated", zap.String("path", a.identity.CurrentPath()))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Admin path updated successfully"})
}

func (a *AdminModule) dropDraft(c *gin.Context, id string) {
	if id == "" || a.drafts == nil {
		return
	}
	if err := a.drafts.Delete(c.Request.Context(), id); err != nil {
		a.log.Warn("failed to drop settings draft", zap.Error(err))
	}
}
