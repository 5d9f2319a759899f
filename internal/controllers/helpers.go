package controllers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	DefaultRequestTimeout = 3 * time.Second
)

// isJSONRequest Определяет тип запроса (json или нет) по заголовку Content-Type.
func isJSONRequest(ctx *gin.Context) bool {
	ct := ctx.Request.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/json")
}

// shortURL собирает полную короткую ссылку: из базового адреса, если он задан,
// иначе из схемы и хоста текущего запроса.
func shortURL(baseURL *url.URL, r *http.Request, code string) string {
	if baseURL != nil {
		return fmt.Sprintf("%s/%s", baseURL.String(), code)
	}
	var scheme = "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, r.Host, code)
}

// respondError отвечает ошибкой в формате запроса и сохраняет исходную ошибку для логгера.
func respondError(ctx *gin.Context, err error, asJSON bool) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		_ = ctx.Error(err)
	}
	msg := errorMessage(status, err)
	if asJSON {
		ctx.AbortWithStatusJSON(status, gin.H{"error": msg})
		return
	}
	ctx.Abort()
	ctx.String(status, msg)
}
