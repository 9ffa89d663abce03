package server

import (
	"strconv"

	"github.com/aurora-http/aurora/api"
	"github.com/aurora-http/aurora/internal/httpwire"
	"github.com/aurora-http/aurora/internal/reactor"
)

// rejectWithServiceUnavailable implements the Reject503 overload behavior
// ("respond 503 Service Unavailable with Retry-After: N, close connection")
// and the identical shutdown-time backlog rejection: it writes a minimal
// response directly to the raw fd, best-effort, before closing it. The
// connection never reaches a worker's Connection state machine, so there is
// no pooled buffer or parser to involve for a response this small.
func rejectWithServiceUnavailable(fd int, retryAfterSeconds int) {
	resp := api.ResponseWriter{StatusCode: 503}
	resp.Header.Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	resp.Header.Set("Connection", "close")
	out, _ := httpwire.BuildInto(nil, &resp)

	raw := reactor.Conn{Fd: fd}
	for len(out) > 0 {
		n, state, err := raw.Write(out)
		if err != nil || state != reactor.IOOk {
			break
		}
		out = out[n:]
	}
	raw.Close()
}
