package cache

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Pages serves GET requests from the cache and stores successful HTML
// responses. The key is the path plus the raw query.
func Pages(p *PageCache, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.Path + "?" + c.Request.URL.RawQuery
		if body, ok := p.Read(key); ok {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "text/html; charset=utf-8", body)
			c.Abort()
			return
		}

		c.Header("X-Cache", "MISS")
		generation := p.Generation()
		writer := &responseWriter{ResponseWriter: c.Writer, body: bytes.NewBuffer(nil)}
		c.Writer = writer

		c.Next()

		if c.Writer.Status() == http.StatusOK && strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/html") {
			if err := p.Write(key, writer.body.Bytes(), generation); err != nil {
				log.Warn("failed to write page cache", zap.String("key", key), zap.Error(err))
			}
		}
	}
}

// InvalidateOnWrite clears the cache after every successful mutating request.
func InvalidateOnWrite(p *PageCache, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if p == nil {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		if c.Writer.Status() >= http.StatusBadRequest {
			return
		}
		if err := p.Clear(); err != nil {
			log.Warn("failed to clear page cache", zap.Error(err))
		}
	}
}
