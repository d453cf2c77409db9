package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProduct(t *testing.T) {
	t.Run("creates active product", func(t *testing.T) {
		p, err := NewProduct("SKU-001", "Widget", "EA", decimal.NewFromFloat(9.99))
		require.NoError(t, err)

		assert.True(t, p.IsActive())
		assert.False(t, p.TracksExpiry())
	})

	t.Run("defaults unit to EA", func(t *testing.T) {
		p, err := NewProduct("SKU-001", "Widget", "", decimal.Zero)
		require.NoError(t, err)
		assert.Equal(t, "EA", p.Unit)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := NewProduct("", "Widget", "EA", decimal.Zero)
		assert.Error(t, err)

		_, err = NewProduct("SKU-001", "", "EA", decimal.Zero)
		assert.Error(t, err)

		_, err = NewProduct("SKU-001", "Widget", "EA", decimal.NewFromInt(-1))
		assert.Error(t, err)
	})
}

func TestProductDiscontinue(t *testing.T) {
	p, err := NewProduct("SKU-001", "Widget", "EA", decimal.Zero)
	require.NoError(t, err)

	p.Discontinue()
	assert.False(t, p.IsActive())
}

func TestNewPackagingMaterial(t *testing.T) {
	t.Run("creates material", func(t *testing.T) {
		m, err := NewPackagingMaterial("BOX-M", "Medium box", "EA")
		require.NoError(t, err)
		assert.Equal(t, "BOX-M", m.Code)
	})

	t.Run("rejects missing code", func(t *testing.T) {
		_, err := NewPackagingMaterial("", "Medium box", "EA")
		assert.Error(t, err)
	})
}
