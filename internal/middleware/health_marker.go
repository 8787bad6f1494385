package middleware

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis keys for request stats. Exported for use by health handlers (reset, collectHealth).
const (
	KeyReqTotal  = "health:global:req_total"
	KeyReqErrors = "health:global:req_errors"
	KeyResTime   = "health:global:res_time_total"
	KeyResCount  = "health:global:res_count"
	KeyStartTime = "health:global:start_time"
	KeyLastReq   = "health:global:last_request"
	KeyErrorLog  = "health:global:error_log"
)

// HealthMarker records request stats in Redis (skip /, /health*, /metrics, favicon).
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if rdb == nil || path == "/" || strings.HasPrefix(path, "/health") || path == "/metrics" || strings.HasPrefix(path, "/favicon") {
			return c.Next()
		}

		start := time.Now()
		lastReq := map[string]interface{}{
			"time":   start,
			"ip":     c.IP(),
			"path":   c.OriginalURL(),
			"method": c.Method(),
		}
		b, _ := json.Marshal(lastReq)
		ctx := c.UserContext()
		pipe := rdb.Pipeline()
		pipe.Set(ctx, KeyLastReq, b, 0)
		pipe.Incr(ctx, KeyReqTotal)
		pipe.SetNX(ctx, KeyStartTime, start.UnixMilli(), 0)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Warn().Err(err).Msg("health marker: recording request failed")
		}

		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		pipe = rdb.Pipeline()
		pipe.Incr(ctx, KeyResCount)
		pipe.IncrByFloat(ctx, KeyResTime, float64(time.Since(start).Milliseconds()))
		if status >= 500 {
			pipe.Incr(ctx, KeyReqErrors)
			entry, _ := json.Marshal(map[string]interface{}{
				"time":     time.Now(),
				"path":     c.OriginalURL(),
				"status":   status,
				"trace_id": GetTraceID(c),
			})
			pipe.LPush(ctx, KeyErrorLog, entry)
			pipe.LTrim(ctx, KeyErrorLog, 0, 49)
		}
		if _, perr := pipe.Exec(ctx); perr != nil {
			log.Warn().Err(perr).Msg("health marker: recording response failed")
		}
		return err
	}
}
