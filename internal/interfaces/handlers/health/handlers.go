package health

import (
	"encoding/json"
	"strconv"
	"time"

	healthsvc "estate-backend/internal/application/health"
	"estate-backend/internal/middleware"
	"estate-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Handlers holds dependencies for health endpoints.
type Handlers struct {
	Rdb            *redis.Client
	DB             healthsvc.DBPinger
	HealthAdminKey string
	// Probes are external endpoints reported under dependencies (name -> URL).
	Probes map[string]string
}

// Reset clears health stats in Redis. Requires query key=HEALTH_ADMIN_KEY.
func (h *Handlers) Reset(c *fiber.Ctx) error {
	key := c.Query("key")
	if key == "" || key != h.HealthAdminKey {
		return response.Error(c, "Unauthorized", fiber.StatusForbidden, nil)
	}
	if h.Rdb == nil {
		return response.Error(c, "Redis is not configured", fiber.StatusServiceUnavailable, nil)
	}
	ctx := c.UserContext()
	keys := []string{middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyResTime, middleware.KeyResCount, middleware.KeyStartTime, middleware.KeyLastReq, middleware.KeyErrorLog}
	if err := h.Rdb.Del(ctx, keys...).Err(); err != nil {
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
	if err := h.Rdb.Set(ctx, middleware.KeyStartTime, strconv.FormatInt(time.Now().UnixMilli(), 10), 0).Err(); err != nil {
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Stats reset successfully", fiber.Map{"success": true}, nil)
}

// JSON returns health data: service + status, runtime, traffic, dependencies.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	result := healthsvc.CollectHealth(c.UserContext(), h.Rdb, h.DB, h.Probes)
	out := map[string]interface{}{
		"service":      healthsvc.ServiceName,
		"status":       result.Status,
		"runtime":      result.Runtime,
		"traffic":      result.Traffic,
		"dependencies": result.Dependencies,
	}
	if result.Status != "ok" {
		c.Status(fiber.StatusServiceUnavailable)
	}
	return c.JSON(out)
}

// Errors returns the last 50 error log entries recorded by HealthMarker.
func (h *Handlers) Errors(c *fiber.Ctx) error {
	if h.Rdb == nil {
		return c.JSON([]interface{}{})
	}
	entries, err := h.Rdb.LRange(c.UserContext(), middleware.KeyErrorLog, 0, 49).Result()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON([]interface{}{})
	}
	errors := make([]map[string]interface{}, 0, len(entries))
	for _, s := range entries {
		var m map[string]interface{}
		if _ = json.Unmarshal([]byte(s), &m); m != nil {
			errors = append(errors, m)
		}
	}
	return c.JSON(errors)
}
