// Package period decides which service period (lunch or dinner) a visit belongs to.
package period

import (
	"time"

	"github.com/vogiaan1904/tablequeue/internal/models"
	"github.com/vogiaan1904/tablequeue/pkg/util"
)

// Service windows in minutes after local midnight, inclusive at both ends.
const (
	lunchStart  = 11 * 60
	lunchEnd    = 16 * 60
	dinnerStart = 19 * 60
	dinnerEnd   = 23 * 60
)

// Resolve returns override when it names a known period, otherwise the period
// whose window contains now. Times outside both windows resolve to lunch.
// now should already be in the widget's local time zone.
func Resolve(override string, now time.Time) models.ServicePeriod {
	if p := models.ServicePeriod(override); p.Valid() {
		return p
	}
	p, _ := Infer(now)
	return p
}

// Infer maps now to a period window. ok is false when no window matched and
// the lunch fallback was used.
func Infer(now time.Time) (p models.ServicePeriod, ok bool) {
	m := util.MinutesOfDay(now)
	switch {
	case m >= lunchStart && m <= lunchEnd:
		return models.PeriodLunch, true
	case m >= dinnerStart && m <= dinnerEnd:
		return models.PeriodDinner, true
	default:
		return models.PeriodLunch, false
	}
}
