package conn

import (
	"strings"

	"github.com/aurora-http/aurora/api"
)

// parseQuery percent-decodes the request's raw query string into
// c.queryParams, done lazily on first QueryParam/QueryParams access rather
// than eagerly for every request — most handlers never read query
// parameters. Escaped key/value pairs are decoded into the connection's
// per-request arena (§4.3) instead of a freshly heap-allocated buffer, so a
// request with no escapes at all costs nothing and one with escapes costs
// one bounded arena slice rather than a growing heap buffer.
func (c *Connection) parseQuery() {
	if c.queryParsed {
		return
	}
	c.queryParsed = true

	raw := c.req.Query
	for raw != "" {
		pair := raw
		if idx := strings.IndexByte(raw, '&'); idx >= 0 {
			pair, raw = raw[:idx], raw[idx+1:]
		} else {
			raw = ""
		}
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		c.queryParams = append(c.queryParams, api.RouteParam{
			Key:   c.decodeQueryComponent(key),
			Value: c.decodeQueryComponent(value),
		})
	}
}

// decodeQueryComponent percent-decodes s, treating '+' as a space per
// application/x-www-form-urlencoded convention. It returns s unmodified
// (no allocation) when there is nothing to decode.
func (c *Connection) decodeQueryComponent(s string) string {
	if strings.IndexByte(s, '%') < 0 && strings.IndexByte(s, '+') < 0 {
		return s
	}
	buf, ok := c.arena.Allocate(len(s), 1)
	if !ok {
		buf = make([]byte, len(s))
	}
	n := 0
	for i := 0; i < len(s); i++ {
		switch b := s[i]; b {
		case '+':
			buf[n] = ' '
		case '%':
			if hi, lo, ok := hexPair(s, i); ok {
				buf[n] = hi<<4 | lo
				i += 2
			} else {
				buf[n] = '%'
			}
		default:
			buf[n] = b
		}
		n++
	}
	return string(buf[:n])
}

func hexPair(s string, percentIdx int) (hi, lo byte, ok bool) {
	if percentIdx+2 >= len(s) {
		return 0, 0, false
	}
	hv, ok1 := hexVal(s[percentIdx+1])
	lv, ok2 := hexVal(s[percentIdx+2])
	return hv, lv, ok1 && ok2
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
