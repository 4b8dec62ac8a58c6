package doses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"panacea/internal/domain/medications"
	"panacea/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/medications/schedule/today", dailyScheduleHandler(svc))
	r.Post("/medications/dose/take", takeDoseHandler(svc))
	r.Post("/medications/dose/skip", skipDoseHandler(svc))
}

// doseRequest identifica una toma por su clave natural.
type doseRequest struct {
	MedicationID  string `json:"medication_id"`
	ScheduledTime string `json:"scheduled_time" example:"20:00"`
	Date          string `json:"date" example:"2025-01-31"` // YYYY-MM-DD, opcional (default hoy)
}

// doseResponse representa una toma del ledger.
type doseResponse struct {
	ID            string     `json:"id"`
	MedicationID  string     `json:"medication_id"`
	Date          string     `json:"date"`
	ScheduledTime string     `json:"scheduled_time"`
	Status        Status     `json:"status" enums:"upcoming,taken,missed,skipped"`
	TakenAt       *time.Time `json:"taken_at,omitempty"`
}

// scheduleItemResponse es una entrada de la agenda: toma + snapshot del medicamento.
type scheduleItemResponse struct {
	doseResponse
	Medication medications.MedicationResponse `json:"medication"`
}

// dailyScheduleHandler godoc
// @Summary Agenda diaria de tomas
// @Description Devuelve las tomas del día ordenadas por hora. Las que no existían se crean en el momento: `missed` si la hora ya pasó, `upcoming` si no. Llamarlo varias veces no duplica tomas.
// @Tags doses
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param date query string false "Fecha YYYY-MM-DD (default hoy)"
// @Success 200 {array} scheduleItemResponse
// @Failure 400 {string} string "date inválida"
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "internal error"
// @Router /medications/schedule/today [get]
func dailyScheduleHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		items, err := svc.DailySchedule(r.Context(), userID, r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, err)
			return
		}

		out := make([]scheduleItemResponse, 0, len(items))
		for _, it := range items {
			out = append(out, scheduleItemResponse{
				doseResponse: toDoseResponse(it.Event),
				Medication:   medications.ToResponse(it.Medication),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// takeDoseHandler godoc
// @Summary Marcar toma como tomada
// @Description Marca la toma (medicamento, fecha, hora) como `taken` con la hora actual, aunque estuviera `missed`, y descuenta 1 del stock restante (nunca por debajo de 0). Si la toma no existía se crea directamente como `taken`.
// @Tags doses
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body doseRequest true "Clave de la toma"
// @Success 200 {object} doseResponse
// @Failure 400 {string} string "invalid json / validación"
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "medication not found"
// @Router /medications/dose/take [post]
func takeDoseHandler(svc *Service) http.HandlerFunc {
	return doseTransitionHandler(svc.TakeDose)
}

// skipDoseHandler godoc
// @Summary Marcar toma como salteada
// @Description Marca la toma como `skipped`. No modifica el stock.
// @Tags doses
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body doseRequest true "Clave de la toma"
// @Success 200 {object} doseResponse
// @Failure 400 {string} string "invalid json / validación"
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "medication not found"
// @Router /medications/dose/skip [post]
func skipDoseHandler(svc *Service) http.HandlerFunc {
	return doseTransitionHandler(svc.SkipDose)
}

type transitionFunc func(ctx context.Context, in TakeDoseInput) (DoseEvent, error)

func doseTransitionHandler(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req doseRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		e, err := fn(r.Context(), TakeDoseInput{
			UserID:        userID,
			MedicationID:  req.MedicationID,
			ScheduledTime: req.ScheduledTime,
			Date:          req.Date,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoseResponse(e))
	}
}

func toDoseResponse(e DoseEvent) doseResponse {
	return doseResponse{
		ID:            e.ID,
		MedicationID:  e.MedicationID,
		Date:          e.Date,
		ScheduledTime: e.ScheduledTime,
		Status:        e.Status,
		TakenAt:       e.TakenAt,
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
	case errors.Is(err, medications.ErrNotFound):
		http.Error(w, "medication not found", http.StatusNotFound)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "dose not found", http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
