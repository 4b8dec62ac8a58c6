package subscriptions

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"panacea/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/notifications/subscription", getSubscriptionHandler(svc))
	r.Post("/notifications/subscribe", subscribeHandler(svc))
	r.Post("/notifications/unsubscribe", unsubscribeHandler(svc))
}

// subscribeRequest: webhook usa endpoint, telegram usa chat_id.
type subscribeRequest struct {
	Channel  string `json:"channel" enums:"webhook,telegram"`
	Endpoint string `json:"endpoint" example:"https://example.com/hooks/panacea"`
	ChatID   int64  `json:"chat_id"`
	Enabled  *bool  `json:"enabled"`
}

type subscriptionResponse struct {
	Channel   Channel   `json:"channel"`
	Endpoint  string    `json:"endpoint,omitempty"`
	ChatID    int64     `json:"chat_id,omitempty"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// getSubscriptionHandler godoc
// @Summary Ver suscripción de notificaciones
// @Tags notifications
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {object} subscriptionResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "subscription not found"
// @Router /notifications/subscription [get]
func getSubscriptionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		sub, err := svc.Get(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(sub))
	}
}

// subscribeHandler godoc
// @Summary Suscribirse a recordatorios
// @Description Registra o reemplaza el canal por el que llegan los recordatorios de tomas. `enabled=false` conserva el canal pero pausa los envíos.
// @Tags notifications
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body subscribeRequest true "Canal"
// @Success 200 {object} subscriptionResponse
// @Failure 400 {string} string "invalid json / validación"
// @Failure 401 {string} string "unauthorized"
// @Router /notifications/subscribe [post]
func subscribeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req subscribeRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		sub, err := svc.Subscribe(r.Context(), userID, SubscribeInput{
			Channel:  Channel(req.Channel),
			Endpoint: req.Endpoint,
			ChatID:   req.ChatID,
			Enabled:  req.Enabled,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(sub))
	}
}

// unsubscribeHandler godoc
// @Summary Desuscribirse
// @Tags notifications
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 204
// @Failure 401 {string} string "unauthorized"
// @Router /notifications/unsubscribe [post]
func unsubscribeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		if err := svc.Unsubscribe(r.Context(), userID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func toResponse(s Subscription) subscriptionResponse {
	return subscriptionResponse{
		Channel:   s.Channel,
		Endpoint:  s.Endpoint,
		ChatID:    s.ChatID,
		Enabled:   s.Enabled,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return claims.UserID, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "subscription not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
