package redis

import (
	shopspring "github.com/shopspring/decimal"
)

func decimal(v string) shopspring.Decimal {
	return shopspring.RequireFromString(v)
}
