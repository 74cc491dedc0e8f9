package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccumulatorAdd(t *testing.T) {
	var acc Accumulator
	acc.Add(100, 10, 5.0, 1)
	acc.Add(100, 5, 5.0, 0)
	assert.Equal(t, Accumulator{Impressions: 200, Clicks: 15, Spend: 10.0, Conversions: 1}, acc)
}

func TestOptionalFloat(t *testing.T) {
	var zero OptionalFloat
	_, ok := zero.Get()
	assert.False(t, ok)
	assert.False(t, zero.Present())
	assert.Equal(t, zero, None())

	v, ok := Some(0).Get()
	assert.True(t, ok)
	assert.Zero(t, v)

	v, ok = Some(12.5).Get()
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)
}
