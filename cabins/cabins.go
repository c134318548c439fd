package cabins

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cabinsite/common"
)

type CabinsModule struct {
	service *Service
	log     *zap.Logger
}

func NewCabinsModule(service *Service, log *zap.Logger) *CabinsModule {
	return &CabinsModule{service: service, log: log}
}

func (m *CabinsModule) RegisterRoutes(api *gin.RouterGroup, requireAdmin gin.HandlerFunc) {
	api.GET("/cabins", m.list)
	api.GET("/cabins/:id", m.get)
	api.POST("/cabins", requireAdmin, m.create)
	api.PUT("/cabins/:id", requireAdmin, m.update)
	api.DELETE("/cabins/:id", requireAdmin, m.delete)
}

func (m *CabinsModule) list(c *gin.Context) {
	cabins, err := m.service.List(c.Request.Context())
	if err != nil {
		common.ServerError(c, m.log, "failed to list cabins", err)
		return
	}
	c.JSON(http.StatusOK, cabins)
}

func (m *CabinsModule) get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	cabin, err := m.service.Get(c.Request.Context(), id)
	if err != nil {
		m.fail(c, "failed to get cabin", err)
		return
	}
	c.JSON(http.StatusOK, cabin)
}

func (m *CabinsModule) create(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		common.BadRequest(c, "invalid cabin payload")
		return
	}

	cabin, err := m.service.Create(c.Request.Context(), in)
	if err != nil {
		m.fail(c, "failed to create cabin", err)
		return
	}
	m.log.Info("cabin created", zap.Uint("id", cabin.ID), zap.String("name", cabin.Name))
	c.JSON(http.StatusCreated, cabin)
}

func (m *CabinsModule) update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		common.BadRequest(c, "invalid cabin payload")
		return
	}

	cabin, err := m.service.Update(c.Request.Context(), id, in)
	if err != nil {
		m.fail(c, "failed to update cabin", err)
		return
	}
	m.log.Info("cabin updated", zap.Uint("id", cabin.ID))
	c.JSON(http.StatusOK, cabin)
}

func (m *CabinsModule) delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := m.service.Delete(c.Request.Context(), id); err != nil {
		m.fail(c, "failed to delete cabin", err)
		return
	}
	m.log.Info("cabin deleted", zap.Uint("id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Cabin deleted successfully"})
}

func (m *CabinsModule) fail(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.NotFound(c, "Cabin not found")
	case errors.Is(err, ErrInvalid):
		common.BadRequest(c, err.Error())
	default:
		common.ServerError(c, m.log, msg, err)
	}
}

// parseID answers 404 itself for identifiers that cannot exist.
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		common.NotFound(c, "Cabin not found")
		return 0, false
	}
	return uint(id), true
}
