package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISO6709(t *testing.T) {
	g := parseISO6709("+13.7563+100.5018+012.000/")
	require.NotNil(t, g)
	assert.InDelta(t, 13.7563, g.Lat, 1e-9)
	assert.InDelta(t, 100.5018, g.Lng, 1e-9)

	g = parseISO6709("+40.7128-074.0060/")
	require.NotNil(t, g)
	assert.InDelta(t, -74.006, g.Lng, 1e-9)

	assert.Nil(t, parseISO6709(""))
	assert.Nil(t, parseISO6709("+00.0000+000.0000/"))
	assert.Nil(t, parseISO6709("+95.0+10.0/"))
	assert.Nil(t, parseISO6709("garbage"))
}
