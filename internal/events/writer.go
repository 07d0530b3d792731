package events

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"

	"github.com/containerd/log"
	"github.com/klauspost/compress/zstd"
)

// Envelope is one line of the JSON event stream.
type Envelope struct {
	Type string `json:"type"`
	Data Event  `json:"data"`
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(data []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	n, err := ew.w.Write(data)
	if err != nil {
		ew.err = err
	}
	return n, err
}

// Writer streams events as JSON lines, optionally zstd-compressed. Each
// event is flushed as soon as it is written. After the first write error
// the stream goes quiet: the error is logged once and Emit keeps returning.
type Writer struct {
	mu  sync.Mutex
	bw  *bufio.Writer
	zw  *zstd.Encoder
	ew  *errWriter
	enc *json.Encoder

	reported bool
}

// WriterOption configures a Writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	compress bool
}

// WithCompression wraps the stream in a zstd frame.
func WithCompression() WriterOption {
	return func(c *writerConfig) { c.compress = true }
}

// NewWriter creates a JSON-lines sink writing to out.
func NewWriter(out io.Writer, opts ...WriterOption) (*Writer, error) {
	var cfg writerConfig
	for _, o := range opts {
		o(&cfg)
	}

	w := &Writer{bw: bufio.NewWriterSize(out, 64*1024)}
	var dst io.Writer = w.bw
	if cfg.compress {
		zw, err := zstd.NewWriter(w.bw)
		if err != nil {
			return nil, err
		}
		w.zw = zw
		dst = zw
	}
	w.ew = &errWriter{w: dst}
	w.enc = json.NewEncoder(w.ew)
	return w, nil
}

func (w *Writer) Emit(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ew.err != nil {
		return
	}
	if err := w.enc.Encode(Envelope{Type: ev.EventKind(), Data: ev}); err != nil && w.ew.err == nil {
		// Marshalling errors do not poison the stream.
		log.L.WithError(err).WithField("type", ev.EventKind()).Warn("cannot encode event")
		return
	}
	w.flushLocked()
	w.reportLocked()
}

func (w *Writer) flushLocked() {
	if w.ew.err != nil {
		return
	}
	if w.zw != nil {
		if err := w.zw.Flush(); err != nil {
			w.ew.err = err
			return
		}
	}
	if err := w.bw.Flush(); err != nil {
		w.ew.err = err
	}
}

func (w *Writer) reportLocked() {
	if w.ew.err != nil && !w.reported {
		w.reported = true
		log.L.WithError(w.ew.err).Warn("event stream write failed, dropping further events")
	}
}

// Err returns the first write error, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ew.err
}

// Close terminates the compressed frame (if any) and flushes the buffer.
// It does not close the underlying writer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.zw != nil {
		if err := w.zw.Close(); err != nil && w.ew.err == nil {
			w.ew.err = err
		}
	}
	if w.ew.err == nil {
		if err := w.bw.Flush(); err != nil {
			w.ew.err = err
		}
	}
	return w.ew.err
}
