package bootstrap

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WithoutBackingServices(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("APP_ENV", "test")

	app, err := New()
	require.NoError(t, err)
	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Setenv("CODE_ALLOCATOR", "zookeeper")
	_, err := New()
	assert.Error(t, err)
}
