package product

import (
	"github.com/shopspring/decimal"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func panIntegral() Draft {
	return Draft{
		Name:     "Pan Integral",
		Category: CategoryBread,
		Representations: []Representation{
			Package{Price: d("1.50"), UnitLabel: "paquete"},
			PerUnit{Price: d("0.50"), UnitsPerPackage: 3},
		},
	}
}

func papas() Draft {
	return Draft{
		Name:     "Papas",
		Category: CategoryVegetables,
		Representations: []Representation{
			PerWeight{
				Pound: decimal.NewNullDecimal(d("1.00")),
				Kilo:  decimal.NewNullDecimal(d("2.20")),
			},
		},
	}
}
