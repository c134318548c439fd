package site

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cabinsite/cabins"
	"cabinsite/models"
	"cabinsite/reviews"
	"cabinsite/settings"
)

const (
	CatalogPageSize = 6
	featuredLimit   = 6
)

// VisitTracker records cabin page views.
type VisitTracker interface {
	TrackVisit(c *gin.Context, cabinID uint)
}

// ReviewSubmitter stores a review submitted through the public form.
type ReviewSubmitter interface {
	Submit(c *gin.Context, in reviews.Input) (*models.Review, error)
}

type SiteDeps struct {
	Cabins    *cabins.Service
	Settings  *settings.Service
	Reviews   *reviews.Service
	Submitter ReviewSubmitter
	Visits    VisitTracker
	Domain    string
	Log       *zap.Logger
}

// SiteModule renders the public pages. Every handler loads its own data.
type SiteModule struct {
	SiteDeps
}

func NewSiteModule(deps SiteDeps) *SiteModule {
	return &SiteModule{SiteDeps: deps}
}

// RegisterRoutes mounts the public pages. The cached handlers run in front of
// pages whose HTML depends on stored data only.
func (s *SiteModule) RegisterRoutes(router gin.IRoutes, cached ...gin.HandlerFunc) {
	page := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, cached...), h)
	}
	router.GET("/", page(s.Home)...)
	router.GET("/cabins", page(s.catalog)...)
	router.GET("/cabins/:id", s.cabin)
	router.GET("/contacts", page(s.contacts)...)
	router.GET("/about", page(s.about)...)
	router.GET("/reviews", s.reviews)
	router.POST("/reviews", s.submitReview)
	router.GET("/sitemap.xml", s.sitemap)
}

// content loads the editable site copy. Failures degrade to defaults.
func (s *SiteModule) content(c *gin.Context) settings.Content {
	content, err := s.Settings.Content(c.Request.Context())
	if err != nil {
		s.Log.Warn("settings unavailable, rendering defaults", zap.Error(err))
	}
	return content
}

func (s *SiteModule) render(c *gin.Context, status int, name, active string, content settings.Content, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Site"] = content
	data["Active"] = active
	c.HTML(status, name, data)
}

// failPage renders name with an inline error and a retry link.
func (s *SiteModule) failPage(c *gin.Context, name, active string, content settings.Content, data gin.H, msg string, err error) {
	s.Log.Error(msg, zap.String("path", c.Request.URL.Path), zap.Error(err))
	if data == nil {
		data = gin.H{}
	}
	data["Error"] = msg
	data["Retry"] = c.Request.URL.RequestURI()
	s.render(c, http.StatusInternalServerError, name, active, content, data)
}

func (s *SiteModule) notFound(c *gin.Context, content settings.Content, msg string) {
	s.render(c, http.StatusNotFound, "site_error.html", "", content, gin.H{"Message": msg})
}

// Home renders the landing page. It also answers unmatched page routes.
func (s *SiteModule) Home(c *gin.Context) {
	content := s.content(c)
	data := gin.H{}

	featured, err := s.Cabins.Featured(c.Request.Context(), featuredLimit)
	if err != nil {
		s.failPage(c, "site_index.html", "home", content, data, "Не удалось загрузить домики", err)
		return
	}
	data["Featured"] = featured
	s.render(c, http.StatusOK, "site_index.html", "home", content, data)
}

type pager struct {
	Page  int
	Pages int
	Prev  int
	Next  int
}

// paginate clamps page into range and returns the slice bounds for it.
func paginate(total, page, size int) (int, int, pager) {
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	p := pager{Page: page, Pages: pages}
	if page > 1 {
		p.Prev = page - 1
	}
	if page < pages {
		p.Next = page + 1
	}

	start := (page - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return start, end, p
}

func (s *SiteModule) catalog(c *gin.Context) {
	content := s.content(c)

	list, err := s.Cabins.List(c.Request.Context())
	if err != nil {
		s.failPage(c, "site_cabins.html", "cabins", content, nil, "Не удалось загрузить каталог", err)
		return
	}

	page, _ := strconv.Atoi(c.Query("page"))
	start, end, p := paginate(len(list), page, CatalogPageSize)
	s.render(c, http.StatusOK, "site_cabins.html", "cabins", content, gin.H{
		"Cabins": list[start:end],
		"Total":  len(list),
		"Pager":  p,
	})
}

func (s *SiteModule) cabin(c *gin.Context) {
	content := s.content(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		s.notFound(c, content, "Домик не найден")
		return
	}
	cabin, err := s.Cabins.Get(c.Request.Context(), uint(id))
	if errors.Is(err, cabins.ErrNotFound) {
		s.notFound(c, content, "Домик не найден")
		return
	}
	if err != nil {
		s.failPage(c, "site_cabin.html", "cabins", content, nil, "Не удалось загрузить домик", err)
		return
	}

	if s.Visits != nil {
		s.Visits.TrackVisit(c, cabin.ID)
	}

	guests, _ := strconv.Atoi(c.Query("guests"))
	if guests < 0 {
		guests = 0
	}
	checkIn, checkOut := c.Query("check_in"), c.Query("check_out")

	s.render(c, http.StatusOK, "site_cabin.html", "cabins", content, gin.H{
		"Cabin":       cabin,
		"Description": s.markdown(cabin.Description),
		"Booking":     BookingLink(content.Contacts.BookingPhone(), *cabin, checkIn, checkOut, guests),
		"CheckIn":     checkIn,
		"CheckOut":    checkOut,
		"Guests":      guests,
	})
}

func (s *SiteModule) markdown(source string) template.HTML {
	html, err := renderMarkdown(source)
	if err != nil {
		s.Log.Warn("failed to render markdown", zap.Error(err))
		return template.HTML(template.HTMLEscapeString(source))
	}
	return html
}

func (s *SiteModule) contacts(c *gin.Context) {
	content := s.content(c)
	s.render(c, http.StatusOK, "site_contacts.html", "contacts", content, gin.H{
		"WhatsApp": WhatsAppLink(content.Contacts.BookingPhone(), "Здравствуйте! У меня вопрос о домиках."),
	})
}

func (s *SiteModule) about(c *gin.Context) {
	content := s.content(c)
	s.render(c, http.StatusOK, "site_about.html", "about", content, gin.H{
		"Body": s.markdown(content.About.Body),
	})
}

var ratings = []int{5, 4, 3, 2, 1}

func (s *SiteModule) reviews(c *gin.Context) {
	s.renderReviews(c, http.StatusOK, reviews.Input{Rating: 5}, "")
}

// renderReviews shows approved reviews and the submission form. A fresh
// challenge is issued on every render.
func (s *SiteModule) renderReviews(c *gin.Context, status int, form reviews.Input, formError string) {
	content := s.content(c)
	form.Captcha = ""
	data := gin.H{
		"Form":      form,
		"FormError": formError,
		"Sent":      c.Query("sent") == "1",
		"Ratings":   ratings,
	}

	challenge, err := reviews.IssueChallenge(sessions.Default(c))
	if err != nil {
		s.Log.Error("failed to issue review challenge", zap.Error(err))
		data["FormError"] = "Форма временно недоступна, попробуйте позже"
	} else {
		data["Question"] = challenge.Question()
	}

	list, err := s.Reviews.Approved(c.Request.Context())
	if err != nil {
		s.failPage(c, "site_reviews.html", "reviews", content, data, "Не удалось загрузить отзывы", err)
		return
	}
	data["Reviews"] = list
	s.render(c, status, "site_reviews.html", "reviews", content, data)
}

func (s *SiteModule) submitReview(c *gin.Context) {
	var in reviews.Input
	if err := c.ShouldBind(&in); err != nil {
		s.renderReviews(c, http.StatusBadRequest, in, "Проверьте правильность заполнения формы")
		return
	}

	_, err := s.Submitter.Submit(c, in)
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, "/reviews?sent=1#review-form")
	case errors.Is(err, reviews.ErrChallengeFailed):
		s.renderReviews(c, http.StatusBadRequest, in, "Неверный ответ на пример, попробуйте ещё раз")
	case errors.Is(err, reviews.ErrInvalid):
		s.renderReviews(c, http.StatusBadRequest, in, "Укажите имя и оценку от 1 до 5, корректный email и отзыв не длиннее 1000 символов")
	default:
		s.Log.Error("failed to submit review", zap.Error(err))
		s.renderReviews(c, http.StatusInternalServerError, in, "Не удалось отправить отзыв, попробуйте позже")
	}
}

func (s *SiteModule) sitemap(c *gin.Context) {
	domain := strings.TrimSuffix(s.Domain, "/")

	var sitemap strings.Builder
	sitemap.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sitemap.WriteString("\n")
	sitemap.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	sitemap.WriteString("\n")

	writeURL := func(path, lastmod, changefreq, priority string) {
		sitemap.WriteString("  <url>\n")
		sitemap.WriteString("    <loc>" + template.HTMLEscapeString(domain+path) + "</loc>\n")
		if lastmod != "" {
			sitemap.WriteString("    <lastmod>" + lastmod + "</lastmod>\n")
		}
		sitemap.WriteString("    <changefreq>" + changefreq + "</changefreq>\n")
		sitemap.WriteString("    <priority>" + priority + "</priority>\n")
		sitemap.WriteString("  </url>\n")
	}

	writeURL("/", "", "weekly", "1.0")
	writeURL("/cabins", "", "weekly", "0.9")
	writeURL("/reviews", "", "daily", "0.6")
	writeURL("/contacts", "", "monthly", "0.5")
	writeURL("/about", "", "monthly", "0.5")

	list, err := s.Cabins.List(c.Request.Context())
	if err != nil {
		s.Log.Warn("sitemap without cabins", zap.Error(err))
	}
	for _, cabin := range list {
		writeURL("/cabins/"+strconv.FormatUint(uint64(cabin.ID), 10), cabin.UpdatedAt.Format(time.RFC3339), "monthly", "0.8")
	}

	sitemap.WriteString("</urlset>\n")

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, sitemap.String())
}
