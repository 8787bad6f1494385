package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidNIC(t *testing.T) {
	assert.True(t, IsValidNIC("35202-1234567-1"))
	assert.True(t, IsValidNIC("3520212345671"))
	assert.False(t, IsValidNIC("35202-1234567"))
	assert.False(t, IsValidNIC("35202_1234567_1"))
	assert.False(t, IsValidNIC("352021234567"))
	assert.False(t, IsValidNIC(""))
}

func TestIsValidPersonName(t *testing.T) {
	assert.True(t, IsValidPersonName("Ayesha Malik"))
	assert.True(t, IsValidPersonName("M. O'Neil-Khan"))
	assert.False(t, IsValidPersonName("   "))
	assert.False(t, IsValidPersonName("R2D2"))
	assert.False(t, IsValidPersonName(strings.Repeat("a", MaxNameLength+1)))
}

func TestWithinLength(t *testing.T) {
	assert.True(t, WithinLength(strings.Repeat("é", MaxRemarksLength), MaxRemarksLength))
	assert.False(t, WithinLength(strings.Repeat("x", MaxRemarksLength+1), MaxRemarksLength))
}

func TestCoordinates(t *testing.T) {
	assert.True(t, IsValidLatitude(31.5204))
	assert.False(t, IsValidLatitude(90.1))
	assert.True(t, IsValidLongitude(-180))
	assert.False(t, IsValidLongitude(181))
}
