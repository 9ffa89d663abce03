package httpwire

import (
	"strconv"

	"github.com/aurora-http/aurora/api"
)

// reasonPhrases covers the status codes this runtime itself ever emits
// (§4.6, §4.7); application handlers may still set arbitrary codes, falling
// back to a generic reason.
var reasonPhrases = map[int]string{
	200: "OK",
	201: "Created",
	204: "No Content",
	400: "Bad Request",
	404: "Not Found",
	405: "Method Not Allowed",
	413: "Payload Too Large",
	431: "Request Header Fields Too Large",
	500: "Internal Server Error",
	503: "Service Unavailable",
}

func reasonFor(code int) string {
	if r, ok := reasonPhrases[code]; ok {
		return r
	}
	return "Unknown"
}

// BuildInto serializes resp into dst per the §3 Response builder contract:
// `buildInto(buffer) -> bytes_written|0-if-too-small`. The common case
// writes in place within dst's capacity; if dst has a non-zero capacity and
// the rendered response exceeds it, BuildInto returns nil, false. A dst with
// zero capacity is grown as needed and always succeeds.
func BuildInto(dst []byte, resp *api.ResponseWriter) ([]byte, bool) {
	if resp.Reason == "" {
		resp.Reason = reasonFor(resp.StatusCode)
	}
	if !resp.Header.Has("Content-Length") {
		resp.Header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	}

	out := dst[:0]
	out = appendStatusLine(out, resp.StatusCode, resp.Reason)
	resp.Header.Each(func(name, value string) {
		out = append(out, name...)
		out = append(out, ':', ' ')
		out = append(out, value...)
		out = append(out, '\r', '\n')
	})
	out = append(out, '\r', '\n')
	out = append(out, resp.Body...)

	if cap(dst) != 0 && len(out) > cap(dst) {
		return nil, false
	}
	return out, true
}

func appendStatusLine(out []byte, code int, reason string) []byte {
	out = append(out, "HTTP/1.1 "...)
	out = strconv.AppendInt(out, int64(code), 10)
	out = append(out, ' ')
	out = append(out, reason...)
	out = append(out, '\r', '\n')
	return out
}
