package supervisor

import (
	"bytes"
	"sync"

	"github.com/rs/zerolog"
)

// maxLineBytes caps a buffered partial line; longer runs are logged in pieces.
const maxLineBytes = 16 << 10

// lineLogger forwards complete lines of worker output to the structured log.
// A lone carriage return also ends a line, so progress bars do not pile up.
type lineLogger struct {
	mu     sync.Mutex
	log    zerolog.Logger
	stream string
	buf    []byte
}

func newLineLogger(log zerolog.Logger, stream string) *lineLogger {
	return &lineLogger{log: log, stream: stream}
}

func (lw *lineLogger) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.buf = append(lw.buf, p...)
	for {
		idx := bytes.IndexAny(lw.buf, "\r\n")
		if idx < 0 {
			break
		}
		lw.emit(lw.buf[:idx])
		lw.buf = lw.buf[idx+1:]
	}
	for len(lw.buf) >= maxLineBytes {
		lw.emit(lw.buf[:maxLineBytes])
		lw.buf = lw.buf[maxLineBytes:]
	}
	if len(lw.buf) == 0 {
		lw.buf = nil
	}
	return len(p), nil
}

// Flush logs a trailing partial line, if any.
func (lw *lineLogger) Flush() {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.emit(lw.buf)
	lw.buf = nil
}

func (lw *lineLogger) emit(line []byte) {
	if len(line) == 0 {
		return
	}
	lw.log.Info().Str("stream", lw.stream).Msg(string(line))
}
