package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cabinsite/models"
)

const (
	VisitorCookie = "cabins_visitor_id"
	// ThrottleWindow is how long repeated views by one visitor count once.
	ThrottleWindow = 30 * time.Minute
)

type AnalyticsModule struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewAnalyticsModule(db *gorm.DB, log *zap.Logger) *AnalyticsModule {
	return &AnalyticsModule{db: db, log: log, now: time.Now}
}

// TrackVisit records a cabin detail view unless the same visitor viewed the
// same cabin within the throttle window. Failures are only logged.
func (a *AnalyticsModule) TrackVisit(c *gin.Context, cabinID uint) {
	if a == nil || a.db == nil {
		return
	}

	visitorID := a.visitorID(c)
	now := a.now()
	ctx := c.Request.Context()

	var recent int64
	err := a.db.WithContext(ctx).Model(&models.CabinVisit{}).
		Where("visitor_id = ? AND cabin_id = ? AND created_at > ?", visitorID, cabinID, now.Add(-ThrottleWindow)).
		Count(&recent).Error
	if err != nil {
		a.log.Warn("visit throttle lookup failed", zap.Uint("cabin_id", cabinID), zap.Error(err))
		return
	}
	if recent > 0 {
		return
	}

	visit := models.CabinVisit{
		CabinID:   cabinID,
		VisitorID: visitorID,
		IP:        clientIP(c),
		Browser:   browser(c.Request.UserAgent()),
		Language:  language(c.GetHeader("Accept-Language")),
		CreatedAt: now,
	}
	if err := a.db.WithContext(ctx).Create(&visit).Error; err != nil {
		a.log.Warn("failed to record visit", zap.Uint("cabin_id", cabinID), zap.Error(err))
	}
}

func (a *AnalyticsModule) visitorID(c *gin.Context) string {
	if id, err := c.Cookie(VisitorCookie); err == nil && id != "" {
		return id
	}

	sum := sha256.Sum256([]byte(a.now().String() + c.ClientIP() + c.Request.UserAgent()))
	id := hex.EncodeToString(sum[:])
	c.SetCookie(VisitorCookie, id, 60*60*24*365, "/", "", false, true)
	return id
}

// ViewCounts returns the number of recorded views per cabin since the given time.
func (a *AnalyticsModule) ViewCounts(ctx context.Context, since time.Time) (map[uint]int64, error) {
	var rows []struct {
		CabinID uint
		Count   int64
	}
	err := a.db.WithContext(ctx).Model(&models.CabinVisit{}).
		Select("cabin_id, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("cabin_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.CabinID] = r.Count
	}
	return counts, nil
}

type DayVisits struct {
	Date  string
	Count int64
}

// VisitsByDay returns one bucket per day for the last n days, oldest first,
// including days without visits.
func (a *AnalyticsModule) VisitsByDay(ctx context.Context, days int) ([]DayVisits, error) {
	if days <= 0 {
		return []DayVisits{}, nil
	}
	now := a.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(days - 1))

	var stamps []time.Time
	err := a.db.WithContext(ctx).Model(&models.CabinVisit{}).
		Where("created_at >= ?", start).
		Pluck("created_at", &stamps).Error
	if err != nil {
		return nil, err
	}

	buckets := make([]DayVisits, days)
	index := make(map[string]int, days)
	for i := range buckets {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		buckets[i] = DayVisits{Date: date}
		index[date] = i
	}
	for _, ts := range stamps {
		if i, ok := index[ts.In(now.Location()).Format("2006-01-02")]; ok {
			buckets[i].Count++
		}
	}
	return buckets, nil
}

func clientIP(c *gin.Context) string {
	if ip := c.GetHeader("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

func browser(userAgent string) *string {
	if userAgent == "" {
		return nil
	}

	ua := strings.ToLower(userAgent)
	var name string
	// order matters: Edge and Opera also claim Chrome, Chrome claims Safari
	switch {
	case strings.Contains(ua, "edg"):
		name = "Edge"
	case strings.Contains(ua, "opr") || strings.Contains(ua, "opera"):
		name = "Opera"
	case strings.Contains(ua, "yabrowser"):
		name = "Yandex"
	case strings.Contains(ua, "chrome"):
		name = "Chrome"
	case strings.Contains(ua, "safari"):
		name = "Safari"
	case strings.Contains(ua, "firefox"):
		name = "Firefox"
	default:
		name = "Other"
	}
	return &name
}

// language keeps the first, most preferred tag of Accept-Language.
func language(header string) *string {
	if header == "" {
		return nil
	}
	lang := strings.TrimSpace(strings.Split(strings.Split(header, ",")[0], ";")[0])
	if lang == "" {
		return nil
	}
	return &lang
}
