package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInventory_Counts(t *testing.T) {
	var inv Inventory

	inv.Consume(Cash, 100.5)
	inv.ReceiveOrProduce(Cash, 10)
	inv.ReceiveOrProduce(People, 10)

	assert.InDelta(t, -90.5, inv.HasHowMany(Cash), 1e-4)
	assert.InDelta(t, 10, inv.HasHowMany(People), 1e-4)
	assert.Zero(t, inv.HasHowMany(Food))

	inv.ResetToZero(People)
	assert.Zero(t, inv.HasHowMany(People))
}

func TestGoodType_String(t *testing.T) {
	assert.Equal(t, "cash", Cash.String())
	assert.Equal(t, "food", Food.String())
	assert.Equal(t, "people", People.String())
	assert.Equal(t, "good(7)", GoodType(7).String())
}
