package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/eorimag/internal/model"
)

func TestNew_AppliesPrices(t *testing.T) {
	c := New(Default(), map[string]string{"eori_ro": "price_ro"})

	e, ok := c.Lookup("eori_ro")
	require.True(t, ok)
	assert.Equal(t, "price_ro", e.PriceRef)
	assert.True(t, e.Available())

	e, ok = c.Lookup("gb_eori")
	require.True(t, ok)
	assert.False(t, e.Available())

	_, ok = c.Lookup("unknown")
	assert.False(t, ok)
	assert.Empty(t, c.PriceRef("unknown"))
}

func TestNew_DuplicateKeyKeepsOrder(t *testing.T) {
	c := New([]model.ServiceEntry{
		{Key: "a", Label: "first"},
		{Key: "b", Label: "second"},
		{Key: "a", Label: "replaced"},
	}, nil)

	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "replaced", entries[0].Label)
	assert.Equal(t, "second", entries[1].Label)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `services:
  - key: eori_ro
    label: Persoană Fizică
    price: 80 RON
    price_ref: price_file
  - key: express
    label: Procesare urgentă
    price: 199 RON
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	entries, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "price_file", entries[0].PriceRef)
	assert.Equal(t, "express", entries[1].Key)

	c := New(entries, map[string]string{"express": "price_express"})
	assert.Equal(t, "price_file", c.PriceRef("eori_ro"))
	assert.Equal(t, "price_express", c.PriceRef("express"))
}

func TestLoadFile_EmptyKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("services:\n  - label: nameless\n"), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
}
