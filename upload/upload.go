package upload

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cabinsite/common"
)

// FieldName is the multipart field carrying the image.
const FieldName = "image"

var (
	ErrNoFile   = errors.New("no image file provided")
	ErrNotImage = errors.New("only image files are allowed")
	ErrTooLarge = errors.New("image is too large")
)

type Service struct {
	storage  FileStorage
	maxBytes int64
	now      func() time.Time
}

func NewService(storage FileStorage, maxBytes int64) *Service {
	return &Service{storage: storage, maxBytes: maxBytes, now: time.Now}
}

func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Save validates the file and stores it under a generated name. Rejected
// files never reach the storage backend.
func (s *Service) Save(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", ErrNoFile
	}
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return "", ErrNotImage
	}
	if fh.Size > s.maxBytes {
		return "", ErrTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	return s.storage.Put(ctx, s.fileName(fh.Filename), f, fh.Size, contentType)
}

// fileName builds image-{unixMillis}-{random}{.ext}; only the extension of
// the client supplied name survives.
func (s *Service) fileName(original string) string {
	return fmt.Sprintf("%s-%d-%d%s", FieldName, s.now().UnixMilli(), uuid.New().ID(), extension(original))
}

func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

type UploadModule struct {
	service *Service
	log     *zap.Logger
}

func NewUploadModule(service *Service, log *zap.Logger) *UploadModule {
	return &UploadModule{service: service, log: log}
}

func (m *UploadModule) RegisterRoutes(api *gin.RouterGroup, requireAdmin gin.HandlerFunc) {
	api.POST("/upload", requireAdmin, m.upload)
}

func (m *UploadModule) upload(c *gin.Context) {
	url, err := m.service.FromRequest(c)
	if err != nil {
		if IsClientError(err) {
			common.BadRequest(c, err.Error())
			return
		}
		common.ServerError(c, m.log, "failed to store upload", err)
		return
	}
	m.log.Info("image uploaded", zap.String("url", url))
	c.JSON(http.StatusOK, gin.H{"imageUrl": url})
}

// FromRequest reads the image field of a multipart request and stores it.
// The body is capped a little above the image limit to leave room for the
// multipart framing.
func (s *Service) FromRequest(c *gin.Context) (string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBytes+64<<10)

	fh, err := c.FormFile(FieldName)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", ErrTooLarge
		}
		return "", ErrNoFile
	}
	return s.Save(c.Request.Context(), fh)
}

// IsClientError reports whether err came from validating the upload.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoFile) || errors.Is(err, ErrNotImage) || errors.Is(err, ErrTooLarge)
}
