package health

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"estate-backend/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// ServiceName is reported by /health/json.
const ServiceName = "estate-possession-api"

const probeTimeout = 3 * time.Second

// DBPinger is optional for health check. If nil, database is reported as disconnected.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// CollectResult is the /health/json payload minus the service name.
type CollectResult struct {
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

type RuntimeInfo struct {
	UptimeSeconds int64      `json:"uptimeSeconds"`
	Memory        MemoryInfo `json:"memory"`
	Goroutines    int        `json:"goroutines"`
	Platform      string     `json:"platform"`
	GoVersion     string     `json:"goVersion"`
}

type MemoryInfo struct {
	Alloc    int `json:"alloc"`
	HeapUsed int `json:"heapUsed"`
}

type TrafficInfo struct {
	TotalRequests   int         `json:"totalRequests"`
	SuccessCount    int         `json:"successCount"`
	FailedCount     int         `json:"failedCount"`
	SuccessRate     string      `json:"successRate"`
	AvgResponseTime interface{} `json:"avgResponseTime"`
	LastRequest     interface{} `json:"lastRequest"`
}

type DepStatus struct {
	Status string      `json:"status"`
	PingMs interface{} `json:"pingMs"`
}

// CollectHealth gathers health data from Redis, the optional DB and the optional HTTP probes
// (name -> URL, e.g. the document store endpoint). Only the database and Redis decide "ok".
func CollectHealth(ctx context.Context, rdb *redis.Client, db DBPinger, probes map[string]string) CollectResult {
	result := CollectResult{
		Dependencies: make(map[string]DepStatus),
	}

	dbStatus := "disconnected"
	var dbPingMs *int64
	if db != nil {
		start := time.Now()
		if err := db.PingContext(ctx); err == nil {
			ms := time.Since(start).Milliseconds()
			dbPingMs = &ms
			dbStatus = "connected"
		} else {
			dbStatus = "error"
		}
	}
	result.Dependencies["database"] = DepStatus{Status: dbStatus, PingMs: dbPingMs}

	redisStatus := "disconnected"
	var redisPingMs *int64
	stats := TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"}
	startTimeMs := time.Now().UnixMilli()

	if rdb != nil {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err == nil {
			ms := time.Since(start).Milliseconds()
			redisPingMs = &ms
			redisStatus = "connected"
			startTimeMs = readTraffic(ctx, rdb, &stats, startTimeMs)
		} else {
			redisStatus = "error"
		}
	}
	result.Dependencies["redis"] = DepStatus{Status: redisStatus, PingMs: redisPingMs}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptimeSec := (time.Now().UnixMilli() - startTimeMs) / 1000
	if uptimeSec < 0 {
		uptimeSec = 0
	}
	result.Runtime = RuntimeInfo{
		UptimeSeconds: uptimeSec,
		Memory:        MemoryInfo{Alloc: int(m.Alloc / 1024 / 1024), HeapUsed: int(m.HeapInuse / 1024 / 1024)},
		Goroutines:    runtime.NumGoroutine(),
		Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
		GoVersion:     runtime.Version(),
	}
	result.Traffic = stats

	for name, url := range probes {
		if url == "" {
			continue
		}
		status := "unreachable"
		ping := httpPing(ctx, url)
		if ping != nil {
			status = "reachable"
		}
		result.Dependencies[name] = DepStatus{Status: status, PingMs: ping}
	}

	if dbStatus == "connected" && redisStatus == "connected" {
		result.Status = "ok"
	} else {
		result.Status = "issue"
	}
	return result
}

// readTraffic fills stats from the HealthMarker counters and returns the recorded start time.
func readTraffic(ctx context.Context, rdb *redis.Client, stats *TrafficInfo, startTimeMs int64) int64 {
	vals, _ := rdb.MGet(ctx,
		middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyResTime,
		middleware.KeyResCount, middleware.KeyStartTime, middleware.KeyLastReq,
	).Result()
	str := func(i int) string {
		if i >= len(vals) {
			return ""
		}
		s, _ := vals[i].(string)
		return s
	}

	if t, err := strconv.ParseInt(str(4), 10, 64); err == nil {
		startTimeMs = t
	} else {
		rdb.SetNX(ctx, middleware.KeyStartTime, startTimeMs, 0)
	}

	stats.TotalRequests, _ = strconv.Atoi(str(0))
	stats.FailedCount, _ = strconv.Atoi(str(1))
	stats.SuccessCount = stats.TotalRequests - stats.FailedCount
	if stats.TotalRequests > 0 {
		stats.SuccessRate = strconv.FormatFloat(float64(stats.SuccessCount)/float64(stats.TotalRequests)*100, 'f', 1, 64)
	}
	timeSum, _ := strconv.ParseFloat(str(2), 64)
	countSum, _ := strconv.Atoi(str(3))
	if countSum > 0 {
		stats.AvgResponseTime = strconv.FormatFloat(timeSum/float64(countSum), 'f', 2, 64)
	}
	if last := str(5); last != "" {
		var lastReq map[string]interface{}
		_ = json.Unmarshal([]byte(last), &lastReq)
		stats.LastRequest = lastReq
	}
	return startTimeMs
}

func httpPing(ctx context.Context, url string) *int64 {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil
	}
	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	ms := time.Since(start).Milliseconds()
	return &ms
}
