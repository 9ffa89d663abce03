package api

// ParseOutcome is the result of feeding bytes into a streaming HTTP/1
// parser (§6 Parser contract, external collaborator).
type ParseOutcome int

const (
	// ParseConsumed means n bytes were consumed and more input is needed
	// before further progress (set on ParseResult.N).
	ParseConsumed ParseOutcome = iota
	// ParseNeedMore means no further progress is possible until more bytes
	// arrive; the caller must read again.
	ParseNeedMore
	// ParseComplete means the message (headers, and body if any) finished
	// parsing; accessors on the parser are now valid.
	ParseComplete
	// ParseError means the input is malformed; Code carries the HTTP status
	// the caller should respond with (400, 431, ...).
	ParseError
)

// ParseResult is returned by each call to HTTPParser.Parse.
type ParseResult struct {
	Outcome ParseOutcome
	N       int // bytes consumed this call
	Code    int // valid when Outcome == ParseError
}

// HTTPParser is the streaming HTTP/1 request parser contract the connection
// state machine (§4.6) drives. The implementation in internal/httpwire copies
// the bytes passed to Parse into its own buffer, so the caller may reuse that
// memory; the returned Header and Body share the parser's storage and are
// invalid after Reset. A parser instance is resumable across partial
// reads and must be Reset before starting a new message on the same
// connection (keep-alive).
type HTTPParser interface {
	// Parse feeds additional bytes (the unconsumed tail of the connection's
	// read buffer) into the parser.
	Parse(data []byte) ParseResult

	// Reset prepares the parser to parse a new message, e.g. after a
	// keep-alive reuse.
	Reset()

	// HeaderBytes reports how many bytes of the header block have been
	// consumed so far, for max_header_size enforcement mid-parse.
	HeaderBytes() int

	// The following accessors are valid only after Parse returns
	// ParseComplete (or, for HeadersComplete, once the header block has
	// been fully consumed even if a body follows).
	HeadersComplete() bool
	Method() string
	Path() string
	Query() string
	Version() string
	Header() *Header
	Body() []byte
	KeepAlive() bool
	// ContentLength returns the declared length, or -1 if absent/chunked.
	ContentLength() int64
	Chunked() bool
}
