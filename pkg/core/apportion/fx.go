package apportion

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/duneshique/sharex-settlement/pkg/models"
)

// Rates maps "YYYY-MM" to the KRW per USD rate applied that month.
type Rates map[string]float64

// Convert returns amountUSD in KRW for month. When the month has no rate the
// latest configured rate is used and a *models.ExchangeRateMissingError is
// returned alongside the amount. With no rates at all the error wraps
// models.ErrNoExchangeRates and the amount is zero.
func (r Rates) Convert(amountUSD float64, month string) (float64, *models.ExchangeRateMissingError, error) {
	if rate, ok := r[month]; ok && rate > 0 {
		return amountUSD * rate, nil, nil
	}
	latest, rate, ok := r.Latest()
	if !ok {
		return 0, nil, eris.Wrapf(models.ErrNoExchangeRates, "converting %s", month)
	}
	return amountUSD * rate, &models.ExchangeRateMissingError{Month: month, FallbackMonth: latest, Rate: rate}, nil
}

// Latest returns the most recent month with a positive rate.
func (r Rates) Latest() (string, float64, bool) {
	months := make([]string, 0, len(r))
	for m, v := range r {
		if v > 0 {
			months = append(months, m)
		}
	}
	if len(months) == 0 {
		return "", 0, false
	}
	sort.Strings(months)
	last := months[len(months)-1]
	return last, r[last], true
}
