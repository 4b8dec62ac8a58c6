// Package dosetime reúne los formatos de fecha/hora compartidos por el registro
// de medicamentos, el ledger de dosis y los sweeps.
//
// Las horas se manejan como strings "HH:MM" con cero a la izquierda: así la
// comparación lexicográfica coincide con la cronológica.
package dosetime

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var ErrInvalidTiming = errors.New("invalid timing")

// ParseHHMM valida un "HH:MM" de 24h estricto (dos dígitos en cada parte).
func ParseHHMM(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) != 5 || s[2] != ':' {
		return "", fmt.Errorf("%w: %q", ErrInvalidTiming, s)
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTiming, s)
	}
	return t.Format(TimeLayout), nil
}

// NormalizeTimings valida, rechaza duplicados y ordena ascendente.
func NormalizeTimings(in []string, max int) ([]string, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: at least one timing is required", ErrInvalidTiming)
	}
	if max > 0 && len(in) > max {
		return nil, fmt.Errorf("%w: at most %d timings allowed", ErrInvalidTiming, max)
	}

	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		t, err := ParseHHMM(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[t]; dup {
			return nil, fmt.Errorf("%w: duplicated %q", ErrInvalidTiming, t)
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// ParseDate valida "YYYY-MM-DD".
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q", s)
	}
	return t.Format(DateLayout), nil
}

// Clock resuelve "hoy" y "ahora" en la zona horaria del servicio.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return Clock{Now: time.Now, Location: loc}
}

func (c Clock) now() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc)
}

// Current devuelve (fecha, HH:MM, instante) del momento actual.
func (c Clock) Current() (date string, hhmm string, at time.Time) {
	n := c.now()
	return n.Format(DateLayout), n.Format(TimeLayout), n
}

func (c Clock) Today() string {
	d, _, _ := c.Current()
	return d
}

// CutoffFor devuelve el HH:MM contra el que se clasifican las tomas de `date`:
// hoy => hora actual; fechas pasadas => "24:00" (todo quedó atrás);
// fechas futuras => "" (nada quedó atrás).
func (c Clock) CutoffFor(date string) string {
	today, hhmm, _ := c.Current()
	switch {
	case date == today:
		return hhmm
	case date < today:
		return "24:00"
	default:
		return ""
	}
}
