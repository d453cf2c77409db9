package partner

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWarehouse(t *testing.T) {
	t.Run("creates active warehouse", func(t *testing.T) {
		wh, err := NewWarehouse("WH-01", "Central", "1 Dock Road")
		require.NoError(t, err)

		assert.True(t, wh.IsActive())
		assert.Equal(t, "WH-01", wh.Code)
	})

	t.Run("rejects missing code or name", func(t *testing.T) {
		_, err := NewWarehouse("", "Central", "")
		assert.Error(t, err)

		_, err = NewWarehouse("WH-01", "", "")
		assert.Error(t, err)
	})
}

func TestWarehouseLifecycle(t *testing.T) {
	wh, err := NewWarehouse("WH-01", "Central", "")
	require.NoError(t, err)

	wh.Deactivate()
	assert.False(t, wh.IsActive())

	wh.Activate()
	assert.True(t, wh.IsActive())
}

func TestWarehouseAddLocation(t *testing.T) {
	t.Run("adds location", func(t *testing.T) {
		wh, err := NewWarehouse("WH-01", "Central", "")
		require.NoError(t, err)

		loc, err := wh.AddLocation("A-01-01", "Aisle A bin 1")
		require.NoError(t, err)

		assert.Equal(t, wh.ID, loc.WarehouseID)
		assert.Len(t, wh.Locations, 1)
	})

	t.Run("rejects empty code", func(t *testing.T) {
		wh, err := NewWarehouse("WH-01", "Central", "")
		require.NoError(t, err)

		_, err = wh.AddLocation("", "Aisle A bin 1")
		assert.Error(t, err)
	})
}

func TestNewLocation(t *testing.T) {
	_, err := NewLocation(uuid.Nil, "A-01", "Aisle A")
	assert.Error(t, err)
}
