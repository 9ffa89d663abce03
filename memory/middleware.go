package memory

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/aurora-http/aurora/api"
)

// Middleware returns the request-gating form described in §4.5: on every
// request it re-checks the monitor, and if the path does not match a bypass
// glob and the state is Critical, responds 503 with Retry-After and a JSON
// body, short-circuiting the pipeline.
func Middleware(m *Monitor) api.Middleware {
	return func(ctx api.Context) {
		if m.Check() != Critical || bypassed(ctx.Request().Path, m.cfg.BypassPaths) {
			ctx.Next()
			return
		}
		m.recordRejection()
		rejectCritical(ctx, m.cfg.RetryAfterSeconds)
	}
}

func bypassed(path string, globs []string) bool {
	for _, g := range globs {
		if strings.HasSuffix(g, "*") {
			if strings.HasPrefix(path, strings.TrimSuffix(g, "*")) {
				return true
			}
			continue
		}
		if path == g {
			return true
		}
	}
	return false
}

func rejectCritical(ctx api.Context, retryAfter int) {
	body, _ := json.Marshal(struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}{Error: "server is under memory pressure", Reason: "memory_critical"})

	resp := ctx.Response()
	resp.Header.Set("Content-Type", "application/json")
	resp.Header.Set("Retry-After", strconv.Itoa(retryAfter))
	resp.WriteHeader(503)
	resp.Write(body)
	ctx.Abort()
}
