package procmgr

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
)

// OutputSink receives process output one line at a time
type OutputSink interface {
	Line(id ProcessID, stream Stream, line string)
}

// OutputSinkFunc adapts a function to OutputSink
type OutputSinkFunc func(id ProcessID, stream Stream, line string)

// Line implements OutputSink
func (f OutputSinkFunc) Line(id ProcessID, stream Stream, line string) {
	f(id, stream, line)
}

// LogSink forwards output lines to a logger as "instance_output" records.
// stderr lines are logged at warn level.
type LogSink struct {
	Logger *slog.Logger
}

// Line implements OutputSink
func (s LogSink) Line(id ProcessID, stream Stream, line string) {
	level := slog.LevelInfo
	if stream == StreamStderr {
		level = slog.LevelWarn
	}
	s.Logger.Log(context.Background(), level, "instance_output",
		"instance", string(id),
		"stream", string(stream),
		"line", line)
}

// lineWriter splits written bytes into lines for an OutputSink
type lineWriter struct {
	mu     sync.Mutex
	id     ProcessID
	stream Stream
	sink   OutputSink
	buf    bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(w.buf.Next(i+1), "\r\n"))
		w.sink.Line(w.id, w.stream, line)
	}
	return len(p), nil
}

// flush emits a trailing partial line
func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		w.sink.Line(w.id, w.stream, w.buf.String())
		w.buf.Reset()
	}
}
