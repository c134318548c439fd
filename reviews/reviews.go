package reviews

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cabinsite/common"
	"cabinsite/models"
)

// Notifier delivers moderation notices for new reviews.
type Notifier interface {
	SendReviewNotice(to string, review models.Review) error
}

type ReviewsModule struct {
	service  *Service
	notifier Notifier
	notifyTo string
	log      *zap.Logger
}

func NewReviewsModule(service *Service, notifier Notifier, notifyTo string, log *zap.Logger) *ReviewsModule {
	return &ReviewsModule{service: service, notifier: notifier, notifyTo: notifyTo, log: log}
}

func (m *ReviewsModule) RegisterRoutes(api *gin.RouterGroup, requireAdmin gin.HandlerFunc) {
	api.GET("/reviews", m.listApproved)
	api.GET("/reviews/challenge", m.challenge)
	api.POST("/reviews", m.create)
	api.GET("/admin/reviews", requireAdmin, m.listAll)
	api.PUT("/reviews/:id/approve", requireAdmin, m.approve)
	api.DELETE("/reviews/:id", requireAdmin, m.delete)
}

func (m *ReviewsModule) listApproved(c *gin.Context) {
	reviews, err := m.service.Approved(c.Request.Context())
	if err != nil {
		common.ServerError(c, m.log, "failed to list reviews", err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (m *ReviewsModule) listAll(c *gin.Context) {
	reviews, err := m.service.All(c.Request.Context())
	if err != nil {
		common.ServerError(c, m.log, "failed to list reviews", err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (m *ReviewsModule) challenge(c *gin.Context) {
	ch, err := IssueChallenge(sessions.Default(c))
	if err != nil {
		common.ServerError(c, m.log, "failed to issue challenge", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"question": ch.Question()})
}

func (m *ReviewsModule) create(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		common.BadRequest(c, "invalid review payload")
		return
	}

	review, err := m.Submit(c, in)
	if err != nil {
		m.fail(c, "failed to create review", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Review submitted for moderation",
		"review":  review,
	})
}

// ErrChallengeFailed is returned when the arithmetic answer does not match.
var ErrChallengeFailed = errors.New("wrong answer to the challenge")

// Submit checks the session challenge, stores the review and notifies the
// moderator. It is shared by the JSON API and the server-rendered form.
func (m *ReviewsModule) Submit(c *gin.Context, in Input) (*models.Review, error) {
	ok, err := CheckChallenge(sessions.Default(c), in.Captcha)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrChallengeFailed
	}

	review, err := m.service.Create(c.Request.Context(), in)
	if err != nil {
		return nil, err
	}
	m.log.Info("review submitted", zap.Uint("id", review.ID), zap.Int("rating", review.Rating))
	m.notify(*review)
	return review, nil
}

func (m *ReviewsModule) notify(review models.Review) {
	if m.notifier == nil || m.notifyTo == "" {
		return
	}
	go func() {
		if err := m.notifier.SendReviewNotice(m.notifyTo, review); err != nil {
			m.log.Warn("failed to send review notice", zap.Uint("id", review.ID), zap.Error(err))
		}
	}()
}

func (m *ReviewsModule) approve(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	review, err := m.service.Approve(c.Request.Context(), id)
	if err != nil {
		m.fail(c, "failed to approve review", err)
		return
	}
	m.log.Info("review approved", zap.Uint("id", id))
	c.JSON(http.StatusOK, review)
}

func (m *ReviewsModule) delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := m.service.Delete(c.Request.Context(), id); err != nil {
		m.fail(c, "failed to delete review", err)
		return
	}
	m.log.Info("review deleted", zap.Uint("id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Review deleted successfully"})
}

func (m *ReviewsModule) fail(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.NotFound(c, "Review not found")
	case errors.Is(err, ErrInvalid), errors.Is(err, ErrChallengeFailed):
		common.BadRequest(c, err.Error())
	default:
		common.ServerError(c, m.log, msg, err)
	}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		common.NotFound(c, "Review not found")
		return 0, false
	}
	return uint(id), true
}
