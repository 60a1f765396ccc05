package product

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveUnitPrice(t *testing.T) {
	full := Product{
		ID:       7,
		Name:     "Churros rellenos",
		Category: CategoryChurros,
		Representations: []Representation{
			Package{Price: d("3.00"), UnitLabel: "docena"},
			PerUnit{Price: d("0.30"), UnitsPerPackage: 12},
			PoundPrice(d("1.00")),
		},
	}
	noWeight := Product{
		ID:              8,
		Name:            "Pan Integral",
		Category:        CategoryBread,
		Representations: []Representation{Package{Price: d("1.50"), UnitLabel: "paquete"}},
	}

	tests := []struct {
		name    string
		product Product
		sel     Selection
		want    string
		wantErr bool
	}{
		{name: "package", product: full, sel: Package{}.Selection(), want: "3.00"},
		{name: "per unit", product: full, sel: PerUnit{}.Selection(), want: "0.30"},
		{name: "per pound", product: full, sel: ByWeight(Pound), want: "1.00"},
		// 1.00 / 0.453592 to 16 digits.
		{name: "per kilo derived", product: full, sel: ByWeight(Kilo), want: "2.2046244201837775"},
		{name: "weight without unit", product: full, sel: Selection{Kind: KindPerWeight}, wantErr: true},
		{name: "package with unit", product: full, sel: Selection{Kind: KindPackage, Unit: Pound}, wantErr: true},
		{name: "weight absent", product: noWeight, sel: ByWeight(Pound), wantErr: true},
		{name: "unit absent", product: noWeight, sel: PerUnit{}.Selection(), wantErr: true},
		{name: "unknown kind", product: full, sel: Selection{Kind: Kind(9)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveUnitPrice(tt.product, tt.sel)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrRepresentationUnavailable)
				var uerr *UnavailableError
				require.True(t, errors.As(err, &uerr))
				assert.Equal(t, tt.product.ID, uerr.ProductID)
				assert.True(t, got.IsZero())
				return
			}
			require.NoError(t, err)
			assert.True(t, d(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestPerWeightDerivation(t *testing.T) {
	kilo := KiloPrice(d("2.20"))
	assert.True(t, d("0.9979024").Equal(kilo.PerPound()))
	assert.True(t, d("2.20").Equal(kilo.PerKilo()))

	both := PerWeight{Pound: decimal.NewNullDecimal(d("1.00")), Kilo: decimal.NewNullDecimal(d("2.20"))}
	assert.True(t, d("1.00").Equal(both.PerPound()))
	assert.True(t, d("2.20").Equal(both.PerKilo()))
	assert.Equal(t, "Weight: $1.00 per lb ($2.20 per kg)", both.Label())
}

func TestPerWeightConsistency(t *testing.T) {
	tests := []struct {
		name  string
		pound string
		kilo  string
		want  bool
	}{
		{name: "exact conversion", pound: "1.00", kilo: "2.20", want: true},
		{name: "one cent off", pound: "1.00", kilo: "2.21", want: true},
		{name: "operator typo", pound: "1.00", kilo: "2.50", want: false},
		{name: "kilo cheaper than pound", pound: "3.00", kilo: "1.00", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := PerWeight{Pound: decimal.NewNullDecimal(d(tt.pound)), Kilo: decimal.NewNullDecimal(d(tt.kilo))}
			assert.Equal(t, tt.want, w.consistent())
		})
	}
}

func TestCountAvailable(t *testing.T) {
	assert.Equal(t, 0, CountAvailable(Product{}))
	p, err := panIntegral().Validate()
	require.NoError(t, err)
	assert.Equal(t, 2, CountAvailable(Product{Representations: p.Representations}))
}

func TestOptions(t *testing.T) {
	p := Product{
		Representations: []Representation{
			Package{Price: d("1.50"), UnitLabel: "paquete"},
			PerUnit{Price: d("0.50"), UnitsPerPackage: 3},
			PoundPrice(d("1.00")),
		},
	}

	opts := Options(p)
	require.Len(t, opts, 4)
	assert.Equal(t, Package{}.Selection(), opts[0].Selection)
	assert.Equal(t, "Package: $1.50 per paquete", opts[0].Label)
	assert.Equal(t, PerUnit{}.Selection(), opts[1].Selection)
	assert.Equal(t, "Unit: $0.50 each (3 per package)", opts[1].Label)
	assert.Equal(t, ByWeight(Pound), opts[2].Selection)
	assert.Equal(t, ByWeight(Kilo), opts[3].Selection)
	assert.Equal(t, "Weight: $2.20 per kg", opts[3].Label)

	for _, o := range opts {
		price, err := ResolveUnitPrice(p, o.Selection)
		require.NoError(t, err)
		assert.True(t, price.Equal(o.UnitPrice))
	}
}

func TestParseKindAndUnit(t *testing.T) {
	for _, k := range []Kind{KindPackage, KindPerUnit, KindPerWeight} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("bulk")
	require.Error(t, err)

	for _, u := range []WeightUnit{NoUnit, Pound, Kilo} {
		got, err := ParseWeightUnit(u.String())
		require.NoError(t, err)
		assert.Equal(t, u, got)
	}
	got, err := ParseWeightUnit("kg")
	require.NoError(t, err)
	assert.Equal(t, Kilo, got)
	_, err = ParseWeightUnit("stone")
	require.Error(t, err)
}

func TestWeightUnitConvert(t *testing.T) {
	assert.True(t, d("0.907184").Equal(Pound.Convert(d("2"), Kilo)))
	assert.True(t, d("2").Equal(Kilo.Convert(d("0.907184"), Pound)))
	assert.True(t, d("1.5").Equal(Pound.Convert(d("1.5"), Pound)))
}
