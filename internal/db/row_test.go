package db

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsInt64RejectsOverflow(t *testing.T) {
	n, err := asInt64(uint64(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	n, err = asInt64(float64(-7))
	require.NoError(t, err)
	assert.Equal(t, int64(-7), n)

	for _, v := range []any{uint64(math.MaxUint64), float64(1e20), float64(-1e20), 1.5, math.NaN()} {
		_, err := asInt64(v)
		assert.Error(t, err, "%v", v)
	}
}
