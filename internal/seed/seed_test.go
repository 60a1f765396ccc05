package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-kart/internal/domain/product"
	"github.com/xenking/storefront-kart/internal/kv"
)

const breads = `[
	{"name":"Pan Integral","category":"bread","prices":[
		{"kind":"package","price":"1.50","unit_label":"paquete"},
		{"kind":"per_unit","price":"0.50","units_per_package":3}]},
	{"name":"Papas","category":"vegetables","prices":[
		{"kind":"per_weight","price_per_pound":"1.00"}]}
]`

const more = `[
	{"name":"  papas ","category":"vegetables","prices":[
		{"kind":"per_weight","price_per_kilo":"2.00"}]},
	{"name":"Churros","category":"churros","prices":[
		{"kind":"package","price":"3.00","unit_label":"bolsa"}]},
	{"name":"","category":"other","prices":[
		{"kind":"package","price":"1.00","unit_label":"x"}]},
	{"name":"Churros Rellenos","category":"churros","prices":[
		{"kind":"package","price":"4.00","unit_label":"bolsa"}]}
]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeGzip(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestReadFiles(t *testing.T) {
	ctx := context.Background()
	paths := []string{
		writeFile(t, "breads.json", breads),
		writeGzip(t, "more.json.gz", more),
	}

	files, err := ReadFiles(ctx, paths)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, paths[0], files[0].Path)
	assert.Len(t, files[0].Drafts, 2)
	assert.Len(t, files[1].Drafts, 4)
	assert.Equal(t, "Churros", files[1].Drafts[1].Name)

	_, err = ReadFiles(ctx, []string{paths[0], filepath.Join(t.TempDir(), "missing.json")})
	require.Error(t, err)

	_, err = ReadFile(ctx, writeFile(t, "bad.json", `[{"name":1}]`))
	require.Error(t, err)

	_, err = ReadFile(ctx, writeFile(t, "bad.json.gz", breads))
	require.Error(t, err, "not gzip")
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	store := product.NewStore(kv.NewMemory(0))
	require.NoError(t, store.Load(ctx))

	_, err := store.Add(ctx, product.Draft{
		Name:     "Churros Rellenos",
		Category: product.CategoryChurros,
		Representations: []product.Representation{
			product.Package{Price: decimal.RequireFromString("4.00"), UnitLabel: "bolsa"},
		},
	})
	require.NoError(t, err)

	files, err := ReadFiles(ctx, []string{
		writeFile(t, "breads.json", breads),
		writeFile(t, "more.json", more),
	})
	require.NoError(t, err)

	res, err := Apply(ctx, store, files)
	require.NoError(t, err)
	assert.Equal(t, Result{Added: 3, Duplicates: 2, Invalid: 1}, res)

	var names []string
	for _, p := range store.ListByCategory(product.AnyCategory) {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Churros Rellenos", "Pan Integral", "Papas", "Churros"}, names)

	res, err = Apply(ctx, store, files)
	require.NoError(t, err)
	assert.Equal(t, Result{Duplicates: 5, Invalid: 1}, res)
}

func TestApply_StorageError(t *testing.T) {
	ctx := context.Background()
	store := product.NewStore(kv.NewMemory(1))

	files, err := ReadFiles(ctx, []string{writeFile(t, "breads.json", breads)})
	require.NoError(t, err)

	res, err := Apply(ctx, store, files)
	require.ErrorIs(t, err, kv.ErrStorageFull)
	assert.Equal(t, 0, res.Added)
}

func TestDeduper(t *testing.T) {
	d := NewDeduper()
	assert.False(t, d.Seen("Pan Dulce"))
	d.Add("Pan Dulce")
	assert.True(t, d.Seen("pan  dulce"))
	assert.True(t, d.Seen(" PAN DULCE "))
	assert.False(t, d.Seen("Pan"))
}
