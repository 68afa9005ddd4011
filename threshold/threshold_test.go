package threshold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwoFPlusOneIsMet(t *testing.T) {
	assert.False(t, TwoFPlusOne.IsMet(1, 3))
	assert.False(t, TwoFPlusOne.IsMet(2, 3))
	assert.True(t, TwoFPlusOne.IsMet(3, 3))

	assert.False(t, TwoFPlusOne.IsMet(6, 10))
	assert.True(t, TwoFPlusOne.IsMet(7, 10))
}

func TestFPlusOneIsMet(t *testing.T) {
	assert.False(t, FPlusOne.IsMet(3, 10))
	assert.True(t, FPlusOne.IsMet(4, 10))
}

func TestIsMetOverflowPanics(t *testing.T) {
	require.Panics(t, func() {
		TwoFPlusOne.IsMet(1, ^uint64(0))
	})
}

func TestMinExpected(t *testing.T) {
	assert.Equal(t, VotingPower(7), TwoFPlusOne.MinExpected(10))
	assert.True(t, TwoFPlusOne.IsMet(TwoFPlusOne.MinExpected(10), 10))
	assert.False(t, TwoFPlusOne.IsMet(TwoFPlusOne.MinExpected(10)-1, 10))
}
