package middlewares

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

// gzipWriter обертка над gin.ResponseWriter для сжатия ответов в формате gzip.
// Сжатие включается при первой записи тела, ответы без тела (редиректы, 202) уходят как есть.
type gzipWriter struct {
	gin.ResponseWriter
	writer *gzip.Writer
}

func (g *gzipWriter) Write(data []byte) (int, error) {
	if g.writer == nil {
		h := g.Header()
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")
		h.Del("Content-Length")
		g.writer = gzip.NewWriter(g.ResponseWriter)
	}
	return g.writer.Write(data) //nolint:wrapcheck
}

// WriteString перекрывает метод gin.ResponseWriter, иначе строковые ответы уходили бы несжатыми.
func (g *gzipWriter) WriteString(s string) (int, error) {
	return g.Write([]byte(s))
}

func (g *gzipWriter) close() error {
	if g.writer == nil {
		return nil
	}
	return g.writer.Close() //nolint:wrapcheck
}

// GzipMiddleware создает middleware для сжатия ответов и распаковки запросов в формате gzip.
//
// Для ответов:
//   - Проверяет поддержку gzip в заголовке Accept-Encoding
//   - При поддержке сжимает тело ответа и выставляет Content-Encoding: gzip, Vary: Accept-Encoding
//
// Для запросов:
//   - Обрабатывает только POST, PUT, PATCH запросы с заголовком Content-Encoding: gzip
//   - Битое тело дает 400 Bad Request
func GzipMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !readGzip(ctx) {
			return
		}
		writeGzip(ctx)
	}
}

// writeGzip настраивает сжатие ответа и передает управление следующим обработчикам.
func writeGzip(ctx *gin.Context) {
	if !strings.Contains(ctx.Request.Header.Get("Accept-Encoding"), "gzip") {
		ctx.Next()
		return
	}

	gzWriter := &gzipWriter{ResponseWriter: ctx.Writer}
	ctx.Writer = gzWriter
	defer func() {
		if closeErr := gzWriter.close(); closeErr != nil {
			_ = ctx.Error(fmt.Errorf("close gzip writer: %w", closeErr))
		}
	}()
	ctx.Next()
}

// readGzip распаковывает сжатое тело запроса. Возвращает false, если запрос прерван.
func readGzip(ctx *gin.Context) bool {
	if !slices.Contains([]string{http.MethodPost, http.MethodPut, http.MethodPatch}, ctx.Request.Method) {
		return true
	}
	if !strings.Contains(ctx.Request.Header.Get("Content-Encoding"), "gzip") {
		return true
	}

	gzReader, gzErr := gzip.NewReader(ctx.Request.Body)
	if gzErr != nil {
		_ = ctx.Error(fmt.Errorf("read gzip: %w", gzErr))
		ctx.AbortWithStatus(http.StatusBadRequest)
		return false
	}
	defer func() {
		if closeErr := gzReader.Close(); closeErr != nil {
			_ = ctx.Error(fmt.Errorf("close gzip reader: %w", closeErr))
		}
	}()
	bodyBytes, err := io.ReadAll(gzReader)
	if err != nil {
		_ = ctx.Error(fmt.Errorf("read gzip: %w", err))
		ctx.AbortWithStatus(http.StatusBadRequest)
		return false
	}

	ctx.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	ctx.Request.Header.Del("Content-Encoding")
	ctx.Request.ContentLength = int64(len(bodyBytes))
	return true
}
