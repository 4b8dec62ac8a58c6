package medications

import "time"

const (
	MaxTimings = 6
	// Umbral (en %) a partir del cual el stock se considera bajo.
	LowStockPercent = 20
)

// Medication es la definición de un medicamento y su horario diario.
type Medication struct {
	ID     string
	UserID string

	Name         string
	Dosage       string   // "500mg", "10ml"
	Timings      []string // HH:MM, únicos, ordenados
	Instructions string

	TotalStock     int
	RemainingStock int

	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasTiming indica si el medicamento se toma exactamente a hhmm.
func (m Medication) HasTiming(hhmm string) bool {
	for _, t := range m.Timings {
		if t == hhmm {
			return true
		}
	}
	return false
}

// StockPercentage devuelve 0-100.
func (m Medication) StockPercentage() int {
	if m.TotalStock <= 0 {
		return 0
	}
	return int(float64(m.RemainingStock)/float64(m.TotalStock)*100 + 0.5)
}

func (m Medication) LowStock() bool {
	return m.StockPercentage() <= LowStockPercent
}

// clampStock mantiene 0 <= remaining <= total en cada escritura.
func (m *Medication) clampStock() {
	if m.TotalStock < 0 {
		m.TotalStock = 0
	}
	if m.RemainingStock < 0 {
		m.RemainingStock = 0
	}
	if m.RemainingStock > m.TotalStock {
		m.RemainingStock = m.TotalStock
	}
}
