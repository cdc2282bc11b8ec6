package currency

import (
	"database/sql/driver"
	"errors"
	"strings"
)

type Currency string

const (
	CurrencyRUB Currency = "RUB"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyKZT Currency = "KZT"
)

var ErrInvalidCurrency = errors.New("invalid currency")

func (c Currency) String() string {
	return string(c)
}

func (c Currency) Value() (driver.Value, error) {
	return c.String(), nil
}

func ParseCurrency(s string) (Currency, error) {
	switch c := Currency(strings.ToUpper(s)); c {
	case CurrencyRUB, CurrencyUSD, CurrencyEUR, CurrencyKZT:
		return c, nil
	default:
		return "", ErrInvalidCurrency
	}
}
