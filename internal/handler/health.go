package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pinforge/pin-server-go/internal/config"
	"github.com/pinforge/pin-server-go/internal/repository"
)

const serviceName = "pin-server"

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db      Pinger
	pinRepo repository.PinRepository
}

func NewHealthHandler(db Pinger, pinRepo repository.PinRepository) *HealthHandler {
	return &HealthHandler{db: db, pinRepo: pinRepo}
}

// GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"ok":      true,
		"service": serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
		defer cancel()
		body["database"] = h.db.Ping(ctx) == nil
	}

	if h.pinRepo != nil {
		if count, err := h.pinRepo.CountLive(r.Context()); err == nil {
			body["livePins"] = count
		} else {
			log.Warn().Err(err).Msg("health: failed to count live pins")
		}
	}

	writeJSON(w, http.StatusOK, body)
}
