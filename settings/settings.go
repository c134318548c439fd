package settings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cabinsite/common"
)

type SettingsModule struct {
	service *Service
	log     *zap.Logger
}

func NewSettingsModule(service *Service, log *zap.Logger) *SettingsModule {
	return &SettingsModule{service: service, log: log}
}

func (m *SettingsModule) RegisterRoutes(api *gin.RouterGroup, requireAdmin gin.HandlerFunc) {
	api.GET("/settings", m.get)
	api.PUT("/settings", requireAdmin, m.update)
}

func (m *SettingsModule) get(c *gin.Context) {
	values, err := m.service.All(c.Request.Context())
	if err != nil {
		common.ServerError(c, m.log, "failed to load settings", err)
		return
	}
	c.JSON(http.StatusOK, values)
}

func (m *SettingsModule) update(c *gin.Context) {
	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil || body == nil {
		common.BadRequest(c, "settings payload must be a JSON object")
		return
	}

	values := make(map[string]interface{}, len(body))
	for k, v := range body {
		values[k] = v
	}

	if err := m.service.Update(c.Request.Context(), values); err != nil {
		if errors.Is(err, ErrInvalidKey) || errors.Is(err, ErrInvalidValue) {
			common.BadRequest(c, err.Error())
			return
		}
		common.ServerError(c, m.log, "failed to update settings", err)
		return
	}

	m.log.Info("settings updated", zap.Int("keys", len(values)))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Settings updated successfully"})
}
