package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cabinsite/analytics"
	"cabinsite/cabins"
	"cabinsite/database"
	"cabinsite/models"
	"cabinsite/reviews"
	"cabinsite/settings"
	"cabinsite/upload"
)

// ConsolePrefix is where console routes are registered. Browsers reach them
// through the configurable admin path, never directly.
const ConsolePrefix = "/" + database.ConsoleSegment

const (
	flashOK    = "flash_ok"
	flashError = "flash_error"

	statsWindow = 30 * 24 * time.Hour
	statsDays   = 14
)

type tab struct {
	Name  string
	Title string
}

var tabs = []tab{
	{"listings", "Домики"},
	{"gallery", "Галерея"},
	{"content", "Тексты"},
	{"settings", "Контакты"},
	{"reviews", "Отзывы"},
	{"identity", "Доступ"},
}

func isTab(name string) bool {
	for _, t := range tabs {
		if t.Name == name {
			return true
		}
	}
	return false
}

// VisitStats is the part of analytics shown on the listings tab.
type VisitStats interface {
	ViewCounts(ctx context.Context, since time.Time) (map[uint]int64, error)
	VisitsByDay(ctx context.Context, days int) ([]analytics.DayVisits, error)
}

type ConsoleDeps struct {
	Identity *IdentityService
	Cabins   *cabins.Service
	Settings *settings.Service
	Reviews  *reviews.Service
	Uploads  *upload.Service
	Stats    VisitStats
	Drafts   DraftStore
	Log      *zap.Logger
}

type ConsoleModule struct {
	ConsoleDeps
}

func NewConsoleModule(deps ConsoleDeps) *ConsoleModule {
	return &ConsoleModule{ConsoleDeps: deps}
}

func (m *ConsoleModule) RegisterRoutes(router *gin.Engine, middleware ...gin.HandlerFunc) {
	g := router.Group(ConsolePrefix, middleware...)
	g.GET("/", m.index)
	g.POST("/login", m.loginPost)
	g.POST("/logout", m.logout)

	auth := g.Group("", m.requireConsole)
	{
		auth.GET("/listings", m.listings)
		auth.GET("/listings/new", m.newCabin)
		auth.POST("/listings", m.createCabin)
		auth.GET("/listings/:id", m.editCabin)
		auth.POST("/listings/:id", m.updateCabin)
		auth.POST("/listings/:id/delete", m.deleteCabin)

		auth.GET("/gallery", m.gallery)
		auth.POST("/gallery", m.updateGallery)
		auth.POST("/gallery/upload", m.uploadGalleryImage)

		auth.GET("/content", m.content)
		auth.POST("/content", m.updateContent)

		auth.GET("/settings", m.contacts)
		auth.POST("/settings", m.updateContacts)

		auth.POST("/save", m.save)
		auth.POST("/discard", m.discard)

		auth.GET("/reviews", m.reviews)
		auth.POST("/reviews/:id/approve", m.approveReview)
		auth.POST("/reviews/:id/delete", m.deleteReview)

		auth.GET("/identity", m.identity)
		auth.POST("/identity/credentials", m.updateCredentials)
		auth.POST("/identity/path", m.updatePath)
	}
}

// url builds a public console URL for the current admin path.
func (m *ConsoleModule) url(tab string) string {
	return "/" + m.Identity.CurrentPath() + "/" + tab
}

func (m *ConsoleModule) requireConsole(c *gin.Context) {
	if !IsLoggedIn(c) {
		c.Redirect(http.StatusFound, m.url(""))
		c.Abort()
		return
	}
	c.Next()
}

func (m *ConsoleModule) render(c *gin.Context, status int, name, active string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	session := sessions.Default(c)
	data["Notices"] = session.Flashes(flashOK)
	data["Errors"] = session.Flashes(flashError)
	if err := session.Save(); err != nil {
		m.Log.Warn("failed to save session", zap.Error(err))
	}
	data["Base"] = "/" + m.Identity.CurrentPath()
	data["Tabs"] = tabs
	data["Active"] = active
	c.HTML(status, name, data)
}

func (m *ConsoleModule) errorPage(c *gin.Context, status int, msg string, err error) {
	if err != nil {
		m.Log.Error(msg, zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	m.render(c, status, "admin_error.html", "", gin.H{"Message": msg})
}

func (m *ConsoleModule) flash(c *gin.Context, kind, msg string) {
	session := sessions.Default(c)
	session.AddFlash(msg, kind)
	if err := session.Save(); err != nil {
		m.Log.Warn("failed to save flash", zap.Error(err))
	}
}

func (m *ConsoleModule) redirect(c *gin.Context, tab string) {
	c.Redirect(http.StatusFound, m.url(tab))
}

func (m *ConsoleModule) index(c *gin.Context) {
	if IsLoggedIn(c) {
		m.redirect(c, "listings")
		return
	}
	m.render(c, http.StatusOK, "admin_login.html", "", nil)
}

func (m *ConsoleModule) loginPost(c *gin.Context) {
	username := c.PostForm("username")
	ok, err := m.Identity.Login(c.Request.Context(), username, c.PostForm("password"))
	if err != nil {
		m.errorPage(c, http.StatusInternalServerError, "Не удалось проверить учётные данные", err)
		return
	}
	if !ok {
		m.Log.Warn("console login failed", zap.String("ip", c.ClientIP()))
		m.render(c, http.StatusUnauthorized, "admin_login.html", "", gin.H{
			"Error":    "Неверное имя пользователя или пароль",
			"Username": username,
		})
		return
	}
	if err := startSession(c); err != nil {
		m.errorPage(c, http.StatusInternalServerError, "Не удалось начать сессию", err)
		return
	}
	m.redirect(c, "listings")
}

func (m *ConsoleModule) logout(c *gin.Context) {
	id, err := endSession(c)
	if err != nil {
		m.Log.Warn("failed to end session", zap.Error(err))
	}
	if id != "" {
		if err := m.Drafts.Delete(c.Request.Context(), id); err != nil {
			m.Log.Warn("failed to drop settings draft", zap.Error(err))
		}
	}
	c.Redirect(http.StatusFound, "/")
}

// Listings

type listingRow struct {
	Cabin models.Cabin
	Views int64
}

func (m *ConsoleModule) listings(c *gin.Context) {
	ctx := c.Request.Context()
	list, err := m.Cabins.List(ctx)
	if err != nil {
		m.errorPage(c, http.StatusInternalServerError, "Не удалось загрузить домики", err)
		return
	}

	counts := map[uint]int64{}
	var days []analytics.DayVisits
	if m.Stats != nil {
		if counts, err = m.Stats.ViewCounts(ctx, time.Now().Add(-statsWindow)); err != nil {
			m.Log.Warn("failed to load view counts", zap.Error(err))
			counts = map[uint]int64{}
		}
		if days, err = m.Stats.VisitsByDay(ctx, statsDays); err != nil {
			m.Log.Warn("failed to load daily visits", zap.Error(err))
		}
	}

	rows := make([]listingRow, len(list))
	for i, cabin := range list {
		rows[i] = listingRow{Cabin: cabin, Views: counts[cabin.ID]}
	}
	m.render(c, http.StatusOK, "admin_listings.html", "listings", gin.H{"Rows": rows, "Days": days})
}

func (m *ConsoleModule) newCabin(c *gin.Context) {
	m.renderCabinForm(c, http.StatusOK, 0, cabins.Input{}, "")
}

func (m *ConsoleModule) renderCabinForm(c *gin.Context, status int, id uint, in cabins.Input, errMsg string) {
	action := m.url("listings")
	if id != 0 {
		action = m.url("listings/" + strconv.FormatUint(uint64(id), 10))
	}
	m.render(c, status, "admin_cabin_form.html", "listings", gin.H{
		"ID":     id,
		"Input":  in,
		"Action": action,
		"Error":  errMsg,
	})
}

func (m *ConsoleModule) createCabin(c *gin.Context) {
	in, err := m.cabinFromForm(c)
	if err == nil {
		var cabin *models.Cabin
		if cabin, err = m.Cabins.Create(c.Request.Context(), in); err == nil {
			m.Log.Info("cabin created from console", zap.Uint("id", cabin.ID))
			m.flash(c, flashOK, "Домик «"+cabin.Name+"» добавлен")
			m.redirect(c, "listings")
			return
		}
	}
	m.cabinFormFailed(c, 0, in, err)
}

func (m *ConsoleModule) editCabin(c *gin.Context) {
	id, ok := m.parseID(c)
	if !ok {
		return
	}
	cabin, err := m.Cabins.Get(c.Request.Context(), id)
	if errors.Is(err, cabins.ErrNotFound) {
		m.errorPage(c, http.StatusNotFound, "Домик не найден", nil)
		return
	}
	if err != nil {
		m.errorPage(c, http.StatusInternalServerError, "Не удалось загрузить домик", err)
		return
	}
	m.renderCabinForm(c, http.StatusOK, id, cabins.InputFrom(*cabin), "")
}

func (m *ConsoleModule) updateCabin(c *gin.Context) {
	id, ok := m.parseID(c)
	if !ok {
		return
	}
	in, err := m.cabinFromForm(c)
	if err == nil {
		if _, err = m.Cabins.Update(c.Request.Context(), id, in); err == nil {
			m.flash(c, flashOK, "Изменения сохранены")
			m.redirect(c, "listings")
			return
		}
	}
	m.cabinFormFailed(c, id, in, err)
}

func (m *ConsoleModule) cabinFormFailed(c *gin.Context, id uint, in cabins.Input, err error) {
	var fe formError
	switch {
	case errors.As(err, &fe):
		m.renderCabinForm(c, http.StatusBadRequest, id, in, fe.Error())
	case errors.Is(err, cabins.ErrInvalid):
		m.renderCabinForm(c, http.StatusBadRequest, id, in, err.Error())
	case errors.Is(err, cabins.ErrNotFound):
		m.errorPage(c, http.StatusNotFound, "Домик не найден", nil)
	default:
		m.errorPage(c, http.StatusInternalServerError, "Не удалось сохранить домик", err)
	}
}

func (m *ConsoleModule) deleteCabin(c *gin.Context) {
	id, ok := m.parseID(c)
	if !ok {
		return
	}
	err := m.Cabins.Delete(c.Request.Context(), id)
	switch {
	case errors.Is(err, cabins.ErrNotFound):
		m.flash(c, flashError, "Домик уже удалён")
	case err != nil:
		m.errorPage(c, http.StatusInternalServerError, "Не удалось удалить домик", err)
		return
	default:
		m.Log.Info("cabin deleted from console", zap.Uint("id", id))
		m.flash(c, flashOK, "Домик удалён")
	}
	m.redirect(c, "listings")
}

type formError string

func (e formError) Error() string { return string(e) }

// cabinFromForm reads the listing form; an attached image is uploaded and
// appended to the image list.
func (m *ConsoleModule) cabinFromForm(c *gin.Context) (cabins.Input, error) {
	in := cabins.Input{
		Name:        strings.TrimSpace(c.PostForm("name")),
		Description: c.PostForm("description"),
		Location:    c.PostForm("location"),
		Amenities:   splitList(c.PostForm("amenities"), true),
		Images:      splitList(c.PostForm("images"), false),
		Featured:    c.PostForm("featured") != "",
	}

	numbers := []struct {
		field string
		label string
		dst   *int
	}{
		{"price", "Цена", &in.Price},
		{"bedrooms", "Спальни", &in.Bedrooms},
		{"bathrooms", "Ванные", &in.Bathrooms},
		{"max_guests", "Гости", &in.MaxGuests},
	}
	for _, n := range numbers {
		raw := strings.TrimSpace(c.PostForm(n.field))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return in, formError(n.label + ": нужно неотрицательное целое число")
		}
		*n.dst = v
	}

	fh, err := c.FormFile(upload.FieldName)
	if err != nil || fh.Size == 0 {
		return in, nil
	}
	url, err := m.Uploads.Save(c.Request.Context(), fh)
	if upload.IsClientError(err) {
		return in, formError("Изображение: " + err.Error())
	}
	if err != nil {
		return in, err
	}
	in.Images = append(in.Images, url)
	return in, nil
}

// splitList splits textarea input into trimmed non-empty entries. Commas
// separate entries too when commas is set.
func splitList(raw string, commas bool) []string {
	sep := func(r rune) bool { return r == '\n' || r == '\r' || (commas && r == ',') }
	out := []string{}
	for _, s := range strings.FieldsFunc(raw, sep) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (m *ConsoleModule) parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		m.errorPage(c, http.StatusNotFound, "Запись не найдена", nil)
		return 0, false
	}
	return uint(id), true
}

// Settings draft

// loadDraft returns the session's draft, seeding it from stored settings on
// first use. dirty reports whether the draft already existed.
func (m *ConsoleModule) loadDraft(c *gin.Context) (content settings.Content, id string, dirty bool, err error) {
	ctx := c.Request.Context()
	if id, err = draftID(c); err != nil {
		return content, "", false, err
	}
	content, dirty, err = m.Drafts.Get(ctx, id)
	if err != nil || dirty {
		return content, id, dirty, err
	}
	content, err = m.Settings.Content(ctx)
	return content, id, false, err
}

func (m *ConsoleModule) renderDraft(c *gin.Context, name, active string, extra gin.H) {
	content, _, dirty, err := m.loadDraft(c)
	if err != nil {
		m.errorPage(c, http.StatusInternalServerError, "Не удалось загрузить настройки", err)
		return
	}
	data := gin.H{
		"Draft":        content,
		"Dirty":        dirty,
		"GalleryText":  strings.Join(content.Gallery, "\n"),
		"FeaturesText": formatFeatures(content.Features),
	}
	for k, v := range extra {
		data[k] = v
	}
	m.render(c, http.StatusOK, name, active, data)
}

// editDraft applies change to the session draft and stores it without
// touching persisted settings.
func (m *ConsoleModule) editDraft(c *gin.Context, tab string, change func(*settings.Content) error) {
	content, id, _, err := m.loadDraft(c)
	if err != nil {
		m.errorPage(c, http.StatusInternalServerError, "Не удалось загрузить настройки", err)
		return
	}
	if err := change(&content); err != nil {
		var fe formError
		if errors.As(err, &fe) {
			m.flash(c, flashError, fe.Error())
			m.redirect(c, tab)
			return
		}
		m.errorPage(c, http.StatusInternalServerError, "Не удалось обработать запрос", err)
		return
	}
	if err := m.Drafts.Put(c.Request.Context(), id, content); err != nil {
		m.errorPage(c, http.StatusInternalServerError, "Не удалось сохранить черновик", err)
		return
	}
	m.flash(c, flashOK, "Черновик обновлён. Нажмите «Сохранить», чтобы опубликовать изменения")
	m.redirect(c, tab)
}

func (m *ConsoleModule) gallery(c *gin.Context) {
	m.renderDraft(c, "admin_gallery.html", "gallery", nil)
}

func (m *ConsoleModule) updateGallery(c *gin.Context) {
	m.editDraft(c, "gallery", func(content *settings.Content) error {
		content.Gallery = splitList(c.PostForm("images"), false)
		return nil
	})
}

func (m *ConsoleModule) uploadGalleryImage(c *gin.Context) {
	m.editDraft(c, "gallery", func(content *settings.Content) error {
		url, err := m.Uploads.FromRequest(c)
		if upload.IsClientError(err) {
			return formError("Изображение: " + err.Error())
		}
		if err != nil {
			return err
		}
		content.Gallery = append(content.Gallery, url)
		return nil
	})
}

func (m *ConsoleModule) content(c *gin.Context) {
	m.renderDraft(c, "admin_content.html", "content", nil)
}

func (m *ConsoleModule) updateContent(c *gin.Context) {
	m.editDraft(c, "content", func(content *settings.Content) error {
		content.Hero = settings.Hero{
			Title:      strings.TrimSpace(c.PostForm("hero_title")),
			Subtitle:   strings.TrimSpace(c.PostForm("hero_subtitle")),
			Image:      strings.TrimSpace(c.PostForm("hero_image")),
			ButtonText: strings.TrimSpace(c.PostForm("hero_button")),
		}
		content.Footer = settings.Footer{
			Text:      strings.TrimSpace(c.PostForm("footer_text")),
			Copyright: strings.TrimSpace(c.PostForm("footer_copyright")),
		}
		content.About = settings.About{
			Title: strings.TrimSpace(c.PostForm("about_title")),
			Body:  c.PostForm("about_body"),
			Image: strings.TrimSpace(c.PostForm("about_image")),
		}
		content.Features = parseFeatures(c.PostForm("features"))
		return nil
	})
}

// parseFeatures reads one feature per line as "icon | title | description".
func parseFeatures(raw string) []settings.Feature {
	features := []settings.Feature{}
	for _, line := range splitList(raw, false) {
		parts := strings.SplitN(line, "|", 3)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		var f settings.Feature
		switch len(parts) {
		case 1:
			f.Title = parts[0]
		case 2:
			f.Title, f.Description = parts[0], parts[1]
		default:
			f.Icon, f.Title, f.Description = parts[0], parts[1], parts[2]
		}
		if f.Title != "" {
			features = append(features, f)
		}
	}
	return features
}

func formatFeatures(features []settings.Feature) string {
	lines := make([]string, len(features))
	for i, f := range features {
		lines[i] = f.Icon + " | " + f.Title + " | " + f.Description
	}
	return strings.Join(lines, "\n")
}

func (m *ConsoleModule) contacts(c *gin.Context) {
	stored, err := m.Settings.All(c.Request.Context())
	if err != nil {
		m.errorPage(c, http.StatusInternalServerError, "Не удалось загрузить настройки", err)
		return
	}

	type storedKey struct {
		Key   string
		Value string
	}
	keys := make([]storedKey, 0, len(stored))
	for k, v := range stored {
		keys = append(keys, storedKey{Key: k, Value: compactJSON(v)})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Key < keys[j].Key })

	m.renderDraft(c, "admin_settings.html", "settings", gin.H{"Stored": keys})
}

func compactJSON(raw json.RawMessage) string {
	out, err := json.Marshal(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func (m *ConsoleModule) updateContacts(c *gin.Context) {
	m.editDraft(c, "settings", func(content *settings.Content) error {
		content.Contacts = settings.Contacts{
			Phone:    strings.TrimSpace(c.PostForm("phone")),
			WhatsApp: strings.TrimSpace(c.PostForm("whatsapp")),
			Email:    strings.TrimSpace(c.PostForm("email")),
			Address:  strings.TrimSpace(c.PostForm("address")),
			Telegram: strings.TrimSpace(c.PostForm("telegram")),
			Hours:    strings.TrimSpace(c.PostForm("hours")),
		}
		return nil
	})
}

// save publishes the draft. On failure the draft is kept and stored
// settings are left as they were.
func (m *ConsoleModule) save(c *gin.Context) {
	back := c.PostForm("tab")
	if !isTab(back) {
		back = "content"
	}

	content, id, _, err := m.loadDraft(c)
	if err != nil {
		m.errorPage(c, http.StatusInternalServerError, "Не удалось загрузить черновик", err)
		return
	}
	if err := m.Settings.SaveContent(c.Request.Context(), content); err != nil {
		m.Log.Error("failed to save settings", zap.Error(err))
		m.flash(c, flashError, "Не удалось сохранить настройки, опубликованная версия не изменилась")
		m.redirect(c, back)
		return
	}
	if err := m.Drafts.Delete(c.Request.Context(), id); err != nil {
		m.Log.Warn("failed to drop saved draft", zap.Error(err))
	}
	m.Log.Info("settings saved from console")
	m.flash(c, flashOK, "Настройки сохранены")
	m.redirect(c, back)
}

func (m *ConsoleModule) discard(c *gin.Context) {
	back := c.PostForm("tab")
	if !isTab(back) {
		back = "content"
	}
	if id, err := draftID(c); err == nil {
		if err := m.Drafts.Delete(c.Request.Context(), id); err != nil {
			m.Log.Warn("failed to drop draft", zap.Error(err))
		}
	}
	m.flash(c, flashOK, "Черновик сброшен")
	m.redirect(c, back)
}

// Reviews

func (m *ConsoleModule) reviews(c *gin.Context) {
	list, err := m.Reviews.All(c.Request.Context())
	if err != nil {
		m.errorPage(c, http.StatusInternalServerError, "Не удалось загрузить отзывы", err)
		return
	}
	m.render(c, http.StatusOK, "admin_reviews.html", "reviews", gin.H{"Reviews": list})
}

func (m *ConsoleModule) approveReview(c *gin.Context) {
	id, ok := m.parseID(c)
	if !ok {
		return
	}
	_, err := m.Reviews.Approve(c.Request.Context(), id)
	switch {
	case errors.Is(err, reviews.ErrNotFound):
		m.flash(c, flashError, "Отзыв не найден")
	case err != nil:
		m.errorPage(c, http.StatusInternalServerError, "Не удалось одобрить отзыв", err)
		return
	default:
		m.flash(c, flashOK, "Отзыв опубликован")
	}
	m.redirect(c, "reviews")
}

func (m *ConsoleModule) deleteReview(c *gin.Context) {
	id, ok := m.parseID(c)
	if !ok {
		return
	}
	err := m.Reviews.Delete(c.Request.Context(), id)
	switch {
	case errors.Is(err, reviews.ErrNotFound):
		m.flash(c, flashError, "Отзыв не найден")
	case err != nil:
		m.errorPage(c, http.StatusInternalServerError, "Не удалось удалить отзыв", err)
		return
	default:
		m.flash(c, flashOK, "Отзыв удалён")
	}
	m.redirect(c, "reviews")
}

// Identity

func (m *ConsoleModule) identity(c *gin.Context) {
	m.render(c, http.StatusOK, "admin_identity.html", "identity", gin.H{"Path": m.Identity.CurrentPath()})
}

func (m *ConsoleModule) updateCredentials(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if password != c.PostForm("password_confirm") {
		m.render(c, http.StatusBadRequest, "admin_identity.html", "identity", gin.H{
			"Path":            m.Identity.CurrentPath(),
			"CredentialError": "Пароли не совпадают",
			"Username":        username,
		})
		return
	}

	err := m.Identity.UpdateCredentials(c.Request.Context(), username, password)
	if errors.Is(err, ErrInvalidCredentials) {
		m.render(c, http.StatusBadRequest, "admin_identity.html", "identity", gin.H{
			"Path":            m.Identity.CurrentPath(),
			"CredentialError": "Укажите имя пользователя и пароль",
			"Username":        username,
		})
		return
	}
	if err != nil {
		m.errorPage(c, http.StatusInternalServerError, "Не удалось обновить учётные данные", err)
		return
	}
	m.Log.Info("admin credentials updated from console")
	m.flash(c, flashOK, "Учётные данные обновлены")
	m.redirect(c, "identity")
}

func (m *ConsoleModule) updatePath(c *gin.Context) {
	path := strings.TrimSpace(c.PostForm("path"))
	err := m.Identity.UpdatePath(c.Request.Context(), path)
	if errors.Is(err, ErrInvalidPath) {
		m.render(c, http.StatusBadRequest, "admin_identity.html", "identity", gin.H{
			"Path":      m.Identity.CurrentPath(),
			"PathError": err.Error(),
			"NewPath":   path,
		})
		return
	}
	if err != nil {
		m.errorPage(c, http.StatusInternalServerError, "Не удалось изменить адрес панели", err)
		return
	}
	m.Log.Info("admin path updated from console", zap.String("path", path))
	m.flash(c, flashOK, "Адрес панели изменён")
	// url() already reflects the new path
	m.redirect(c, "identity")
}
