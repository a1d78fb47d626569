package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/pinforge/pin-server-go/internal/audit"
	apperrors "github.com/pinforge/pin-server-go/internal/errors"
	"github.com/pinforge/pin-server-go/internal/service"
	"github.com/pinforge/pin-server-go/internal/util"
)

type PinHandler struct {
	pinService *service.PinService
	adminAuth  func(http.Handler) http.Handler
	rateLimit  func(http.Handler) http.Handler
}

func NewPinHandler(
	pinService *service.PinService,
	adminAuth func(http.Handler) http.Handler,
	rateLimit func(http.Handler) http.Handler,
) *PinHandler {
	return &PinHandler{
		pinService: pinService,
		adminAuth:  adminAuth,
		rateLimit:  rateLimit,
	}
}

func (h *PinHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.adminAuth).Post("/", h.Create)
	r.With(h.rateLimit).Post("/verify", h.Verify)

	return r
}

type createPinRequest struct {
	OwnerID    string `json:"ownerId"`
	TTLMinutes int    `json:"ttlMinutes"`
}

// POST /pins
func (h *PinHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Request body must be valid JSON"))
		return
	}

	pin, err := h.pinService.Issue(r.Context(), req.OwnerID, req.TTLMinutes)
	if err != nil {
		logServiceError(err, "issue pin")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventPinIssued,
		OwnerID: req.OwnerID,
		Details: map[string]interface{}{"pin": util.MaskCode(pin.Code)},
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":        true,
		"pin":       pin.Code,
		"expiresAt": pin.ExpiresAt,
		"ownerId":   pin.OwnerID,
	})
}

type verifyPinRequest struct {
	Pin string `json:"pin"`
}

// POST /pins/verify
func (h *PinHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyPinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Request body must be valid JSON"))
		return
	}

	pin, err := h.pinService.Redeem(r.Context(), req.Pin)
	if err != nil {
		logServiceError(err, "redeem pin")
		if code := apperrors.GetCode(err); code == apperrors.ErrCodePinExpired ||
			code == apperrors.ErrCodePinAlreadyUsed ||
			code == apperrors.ErrCodeNotFound {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRedeemRejected,
				Details: map[string]interface{}{"reason": string(code)},
			})
		}
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventPinRedeemed,
		Details: map[string]interface{}{"pin": util.MaskCode(pin.Code)},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"pin":       pin.Code,
		"ownerId":   pin.OwnerID,
		"createdAt": pin.CreatedAt,
		"expiresAt": pin.ExpiresAt,
		"usedAt":    pin.UsedAt,
	})
}

// logServiceError keeps 5xx causes in the server log without echoing
// internals to the client.
func logServiceError(err error, op string) {
	if appErr, ok := apperrors.AsAppError(err); ok {
		switch appErr.Code {
		case apperrors.ErrCodeDatabase, apperrors.ErrCodeInternal,
			apperrors.ErrCodeInconsistentRow, apperrors.ErrCodeGenerationExhausted:
			log.Error().Err(err).Msgf("failed to %s", op)
		default:
			log.Debug().Err(err).Msgf("%s rejected", op)
		}
		return
	}
	log.Error().Err(err).Msgf("failed to %s", op)
}
