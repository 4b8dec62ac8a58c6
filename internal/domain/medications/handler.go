package medications

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"panacea/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes monta el CRUD. Las rutas de agenda/tomas las agrega doses
// sobre el mismo prefijo /medications.
func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/medications", listMedicationsHandler(svc))
	r.Post("/medications", createMedicationHandler(svc))
	r.Get("/medications/{medicationID}", getMedicationHandler(svc))
	r.Put("/medications/{medicationID}", updateMedicationHandler(svc))
	r.Delete("/medications/{medicationID}", deleteMedicationHandler(svc))
}

// createMedicationRequest es el cuerpo para registrar un medicamento.
type createMedicationRequest struct {
	Name         string   `json:"name"`
	Dosage       string   `json:"dosage"`
	Timings      []string `json:"timings" example:"08:00,20:00"`
	TotalStock   int      `json:"total_stock"`
	Instructions string   `json:"instructions"`
}

// updateMedicationRequest: punteros para update parcial real (nil = no tocar).
type updateMedicationRequest struct {
	Name           *string  `json:"name"`
	Dosage         *string  `json:"dosage"`
	Timings        []string `json:"timings"`
	TotalStock     *int     `json:"total_stock"`
	RemainingStock *int     `json:"remaining_stock"`
	Instructions   *string  `json:"instructions"`
	Active         *bool    `json:"active"`
}

// MedicationResponse representa un medicamento devuelto por la API.
type MedicationResponse struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	Dosage          string    `json:"dosage"`
	Timings         []string  `json:"timings"`
	Instructions    string    `json:"instructions"`
	TotalStock      int       `json:"total_stock"`
	RemainingStock  int       `json:"remaining_stock"`
	StockPercentage int       `json:"stock_percentage"`
	LowStock        bool      `json:"low_stock"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// createMedicationHandler godoc
// @Summary Registrar medicamento
// @Description Crea un medicamento con su horario diario (1 a 6 horas HH:MM únicas) y siembra las tomas de hoy: las horas ya pasadas quedan como `missed`, el resto como `upcoming`.
// @Tags medications
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body createMedicationRequest true "Datos del medicamento"
// @Success 201 {object} MedicationResponse
// @Failure 400 {string} string "invalid json / validación"
// @Failure 401 {string} string "unauthorized"
// @Router /medications [post]
func createMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req createMedicationRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		m, err := svc.Create(r.Context(), userID, CreateInput{
			Name:         req.Name,
			Dosage:       req.Dosage,
			Timings:      req.Timings,
			TotalStock:   req.TotalStock,
			Instructions: req.Instructions,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, ToResponse(m))
	}
}

// listMedicationsHandler godoc
// @Summary Listar medicamentos
// @Description Lista los medicamentos del usuario (activos e inactivos), más recientes primero.
// @Tags medications
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {array} MedicationResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "internal error"
// @Router /medications [get]
func listMedicationsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		items, err := svc.ListByUser(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}

		out := make([]MedicationResponse, 0, len(items))
		for _, m := range items {
			out = append(out, ToResponse(m))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// getMedicationHandler godoc
// @Summary Obtener medicamento
// @Tags medications
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param medicationID path string true "ID del medicamento"
// @Success 200 {object} MedicationResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "medication not found"
// @Router /medications/{medicationID} [get]
func getMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		m, err := svc.GetByID(r.Context(), userID, chi.URLParam(r, "medicationID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ToResponse(m))
	}
}

// updateMedicationHandler godoc
// @Summary Actualizar medicamento
// @Description Update parcial: sólo se tocan los campos enviados. `active=false` excluye el medicamento de la agenda y de los recordatorios (el historial se conserva). El stock restante nunca supera al total.
// @Tags medications
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param medicationID path string true "ID del medicamento"
// @Param payload body updateMedicationRequest true "Campos a modificar"
// @Success 200 {object} MedicationResponse
// @Failure 400 {string} string "invalid json / validación"
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "medication not found"
// @Router /medications/{medicationID} [put]
func updateMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req updateMedicationRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		m, err := svc.Update(r.Context(), userID, chi.URLParam(r, "medicationID"), UpdateInput{
			Name:           req.Name,
			Dosage:         req.Dosage,
			Timings:        req.Timings,
			TotalStock:     req.TotalStock,
			RemainingStock: req.RemainingStock,
			Instructions:   req.Instructions,
			Active:         req.Active,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ToResponse(m))
	}
}

// deleteMedicationHandler godoc
// @Summary Borrar medicamento
// @Description Borra el medicamento y todas sus tomas registradas.
// @Tags medications
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param medicationID path string true "ID del medicamento"
// @Success 204
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "medication not found"
// @Router /medications/{medicationID} [delete]
func deleteMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), userID, chi.URLParam(r, "medicationID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ToResponse también lo usa doses para el snapshot de la agenda.
func ToResponse(m Medication) MedicationResponse {
	timings := m.Timings
	if timings == nil {
		timings = []string{}
	}
	return MedicationResponse{
		ID:              m.ID,
		UserID:          m.UserID,
		Name:            m.Name,
		Dosage:          m.Dosage,
		Timings:         timings,
		Instructions:    m.Instructions,
		TotalStock:      m.TotalStock,
		RemainingStock:  m.RemainingStock,
		StockPercentage: m.StockPercentage(),
		LowStock:        m.LowStock(),
		Active:          m.Active,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
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
		http.Error(w, "medication not found", http.StatusNotFound)
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
