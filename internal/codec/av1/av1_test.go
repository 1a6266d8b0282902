package av1

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantizer(t *testing.T) {
	assert.EqualValues(t, 0, quantizer(-1))
	assert.EqualValues(t, 0, quantizer(0))
	assert.EqualValues(t, 12, quantizer(50))
	assert.EqualValues(t, 25, quantizer(100))
	assert.EqualValues(t, 63, quantizer(255))
	assert.EqualValues(t, 63, quantizer(400))
}

func TestTileColumnsLog2(t *testing.T) {
	assert.Equal(t, 0, tileColumnsLog2(0))
	assert.Equal(t, 0, tileColumnsLog2(1))
	assert.Equal(t, 2, tileColumnsLog2(4))
	assert.Equal(t, 3, tileColumnsLog2(8))
	assert.Equal(t, 6, tileColumnsLog2(1000))
}
