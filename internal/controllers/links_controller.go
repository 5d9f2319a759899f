package controllers

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fsdevblog/shortlinks/internal/codegen"
	"github.com/fsdevblog/shortlinks/internal/models"
	"github.com/fsdevblog/shortlinks/internal/services"
	"github.com/gin-gonic/gin"
)

// CreateLinkRequest тело запроса POST /api/shorten.
type CreateLinkRequest struct {
	URL string `json:"url" binding:"required"`
	TTL string `json:"ttl"` // "72h", "never" или пусто для срока по умолчанию
}

// LinkResponse ответ на создание ссылки.
type LinkResponse struct {
	Result    string     `json:"result"`
	ShortCode string     `json:"shortCode"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt"`
	Clicks    int64      `json:"clicks"`
}

// ResolveResponse ответ GET /api/:shortCode.
type ResolveResponse struct {
	OriginalURL string    `json:"originalUrl"`
	Clicks      int64     `json:"clicks"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ClickEventResponse struct {
	Timestamp time.Time `json:"timestamp"`
	UserAgent string    `json:"userAgent"`
	Source    string    `json:"source"`
}

// StatsResponse ответ GET /api/:shortCode/stats.
type StatsResponse struct {
	ShortCode   string               `json:"shortCode"`
	OriginalURL string               `json:"originalUrl"`
	Clicks      int64                `json:"clicks"`
	CreatedAt   time.Time            `json:"createdAt"`
	ExpiresAt   *time.Time           `json:"expiresAt"`
	ArchivedAt  *time.Time           `json:"archivedAt,omitempty"`
	Events      []ClickEventResponse `json:"events"`
}

type LinksController struct {
	registry LinkRegistry
	baseURL  *url.URL
}

func NewLinksController(registry LinkRegistry, baseURL *url.URL) *LinksController {
	return &LinksController{
		registry: registry,
		baseURL:  baseURL,
	}
}

// CreateShortURL обрабатывает POST / и POST /api/shorten.
//
// Plain запрос: тело содержит ссылку, срок жизни передается параметром ?ttl=, ответ текстом.
// JSON запрос: тело CreateLinkRequest, ответ LinkResponse.
//
// Возвращает:
//   - HTTP 201 Created с короткой ссылкой
//   - HTTP 422 Unprocessable Entity при некорректной ссылке или сроке жизни
//   - HTTP 503 Service Unavailable, если не удалось подобрать свободный код
func (s *LinksController) CreateShortURL(ctx *gin.Context) {
	asJSON := isJSONRequest(ctx)

	var rawURL, rawTTL string
	if asJSON {
		var req CreateLinkRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		rawURL, rawTTL = req.URL, req.TTL
	} else {
		body, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			_ = ctx.Error(err)
			ctx.String(http.StatusBadRequest, "failed to read body")
			return
		}
		rawURL, rawTTL = strings.TrimSpace(string(body)), ctx.Query("ttl")
	}

	ttl, err := services.ParseTTLPolicy(rawTTL)
	if err != nil {
		respondError(ctx, err, asJSON)
		return
	}

	link, err := s.registry.Create(ctx.Request.Context(), rawURL, ttl)
	if err != nil {
		respondError(ctx, err, asJSON)
		return
	}

	result := shortURL(s.baseURL, ctx.Request, link.ShortCode)
	if !asJSON {
		ctx.String(http.StatusCreated, result)
		return
	}
	ctx.JSON(http.StatusCreated, LinkResponse{
		Result:    result,
		ShortCode: link.ShortCode,
		CreatedAt: link.CreatedAt,
		ExpiresAt: link.ExpiresAt,
		Clicks:    link.Clicks,
	})
}

// Redirect обрабатывает GET /:shortCode.
//
// Возвращает:
//   - HTTP 307 Temporary Redirect на исходную ссылку
//   - HTTP 404 Not Found, если код неизвестен
//   - HTTP 410 Gone, если срок действия ссылки истек
func (s *LinksController) Redirect(ctx *gin.Context) {
	decision, ok := s.resolve(ctx, false)
	if !ok {
		return
	}
	ctx.Redirect(http.StatusTemporaryRedirect, decision.TargetURL)
}

// Resolve обрабатывает GET /api/:shortCode. Переход засчитывается так же, как при редиректе.
func (s *LinksController) Resolve(ctx *gin.Context) {
	decision, ok := s.resolve(ctx, true)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, ResolveResponse{
		OriginalURL: decision.TargetURL,
		Clicks:      decision.Clicks,
		CreatedAt:   decision.CreatedAt,
	})
}

// Stats обрабатывает GET /api/:shortCode/stats. Статистика доступна и для истекших ссылок.
func (s *LinksController) Stats(ctx *gin.Context) {
	code := ctx.Param("shortCode")
	if !codegen.Valid(code) {
		ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": ErrRecordNotFound.Error()})
		return
	}

	stats, err := s.registry.GetStats(ctx.Request.Context(), code)
	if err != nil {
		respondError(ctx, err, true)
		return
	}

	ctx.JSON(http.StatusOK, newStatsResponse(stats))
}

// Delete обрабатывает DELETE /api/:shortCode.
func (s *LinksController) Delete(ctx *gin.Context) {
	code := ctx.Param("shortCode")
	if !codegen.Valid(code) {
		ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": ErrRecordNotFound.Error()})
		return
	}
	if err := s.registry.Delete(ctx.Request.Context(), code); err != nil {
		respondError(ctx, err, true)
		return
	}
	ctx.Status(http.StatusAccepted)
}

func (s *LinksController) resolve(ctx *gin.Context, asJSON bool) (*models.RedirectDecision, bool) {
	code := ctx.Param("shortCode")
	if !codegen.Valid(code) {
		if asJSON {
			ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": ErrRecordNotFound.Error()})
		} else {
			ctx.String(http.StatusNotFound, ErrRecordNotFound.Error())
		}
		return nil, false
	}

	decision, err := s.registry.Resolve(ctx.Request.Context(), code, services.ClickMeta{
		UserAgent: ctx.Request.UserAgent(),
		Source:    ctx.ClientIP(),
	})
	if err != nil {
		respondError(ctx, err, asJSON)
		return nil, false
	}
	return decision, true
}

func newStatsResponse(stats *models.LinkStats) StatsResponse {
	events := make([]ClickEventResponse, len(stats.Events))
	for i, ev := range stats.Events {
		events[i] = ClickEventResponse{
			Timestamp: ev.Timestamp,
			UserAgent: ev.UserAgent,
			Source:    ev.Source,
		}
	}
	return StatsResponse{
		ShortCode:   stats.Link.ShortCode,
		OriginalURL: stats.Link.OriginalURL,
		Clicks:      stats.Link.Clicks,
		CreatedAt:   stats.Link.CreatedAt,
		ExpiresAt:   stats.Link.ExpiresAt,
		ArchivedAt:  stats.Link.ArchivedAt,
		Events:      events,
	}
}
