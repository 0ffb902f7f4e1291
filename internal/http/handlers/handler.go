package handlers

import (
	"go.uber.org/zap"

	"tableside-pos/internal/config"
	"tableside-pos/internal/layout"
	"tableside-pos/internal/menu"
	"tableside-pos/internal/rates"
	"tableside-pos/internal/session"
)

type Handler struct {
	Logger   *zap.Logger
	Config   config.Config
	Sessions *session.Manager
	Rates    *rates.Catalog
	Menu     *menu.Catalog
	// Layout is nil when no floor plan service is configured.
	Layout *layout.Client
}
