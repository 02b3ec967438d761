package forecast

import (
	"errors"
	"fmt"
)

// ErrNoHistory is returned when a forecast is requested for a user
// with no transactions at all. It is distinct from a history of zero
// amounts, which forecasts normally.
var ErrNoHistory = errors.New("no transaction history")

// ErrInvalidHorizon is returned when the requested horizon falls
// outside [MinHorizonMonths, MaxHorizonMonths].
var ErrInvalidHorizon = fmt.Errorf("horizon must be between %d and %d months", MinHorizonMonths, MaxHorizonMonths)

// IsNoHistory reports whether err signals an empty transaction history.
func IsNoHistory(err error) bool {
	return errors.Is(err, ErrNoHistory)
}
