package controllers

import (
	"context"

	"github.com/fsdevblog/shortlinks/internal/models"
	"github.com/fsdevblog/shortlinks/internal/services"
)

//go:generate mockgen -source=interfaces.go -destination=mocksctrl/registry.go -package=mocksctrl

type ConnectionChecker interface {
	CheckConnection(ctx context.Context) error
}

// LinkRegistry операции реестра ссылок, которые публикует HTTP слой.
type LinkRegistry interface {
	Create(ctx context.Context, rawURL string, ttl services.TTLPolicy) (*models.Link, error)
	Resolve(ctx context.Context, code string, meta services.ClickMeta) (*models.RedirectDecision, error)
	GetStats(ctx context.Context, code string) (*models.LinkStats, error)
	Delete(ctx context.Context, code string) error
}
