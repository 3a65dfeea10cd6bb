package logger

import (
	"bufio"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	coreconfig "github.com/m3rciful/menubot/core/config"

	"gopkg.in/natefinch/lumberjack.v2"
)

// asyncWriter provides buffered asynchronous writes to one or more sinks.
type asyncWriter struct {
	queue    chan []byte
	flushReq chan chan error
	done     chan struct{}
	once     sync.Once
	sinks    []*bufio.Writer
	sinkMu   sync.Mutex
	writeErr error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	sinks := make([]*bufio.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			sinks = append(sinks, bufio.NewWriterSize(w, bufSize))
		}
	}
	aw := &asyncWriter{
		queue:    make(chan []byte, 256),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
		sinks:    sinks,
	}
	go aw.loop()
	return aw
}

func (w *asyncWriter) loop() {
	for {
		select {
		case data, ok := <-w.queue:
			if !ok {
				_ = w.flushAll()
				close(w.done)
				return
			}
			if err := w.writeAll(data); err != nil {
				w.setErr(err)
			}
		case ack := <-w.flushReq:
			ack <- w.flushAll()
		}
	}
}

// Write enqueues a copy of p; it blocks when the queue is full rather than drop lines.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.getErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	data := make([]byte, len(p))
	copy(data, p)
	w.queue <- data
	return nil
}

// Flush waits until everything queued so far reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.getErr(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	w.flushReq <- ack
	return <-ack
}

// Close drains the queue and reports the first encountered write error.
func (w *asyncWriter) Close() error {
	w.once.Do(func() {
		close(w.queue)
	})
	<-w.done
	return w.getErr()
}

func (w *asyncWriter) writeAll(p []byte) error {
	w.sinkMu.Lock()
	defer w.sinkMu.Unlock()
	for _, sink := range w.sinks {
		if _, err := sink.Write(p); err != nil {
			return err
		}
		if err := sink.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushAll() error {
	w.sinkMu.Lock()
	defer w.sinkMu.Unlock()
	var errs []error
	for _, sink := range w.sinks {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) getErr() error {
	w.sinkMu.Lock()
	defer w.sinkMu.Unlock()
	return w.writeErr
}

func (w *asyncWriter) setErr(err error) {
	w.sinkMu.Lock()
	defer w.sinkMu.Unlock()
	if w.writeErr == nil {
		w.writeErr = err
	}
}

// buildOutputs returns stdout plus an optional rotated file sink.
func buildOutputs(cfg *coreconfig.Config) ([]io.Writer, []io.Closer, error) {
	writers := []io.Writer{os.Stdout}
	if cfg == nil {
		return writers, nil, nil
	}
	dir := strings.TrimSpace(cfg.Logging.Dir)
	file := strings.TrimSpace(cfg.Logging.BotFile)
	if dir == "" || file == "" {
		return writers, nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("logger: failed to create log dir %s: %v", dir, err)
		return writers, nil, nil
	}
	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(dir, file),
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}
	return append(writers, rotated), []io.Closer{rotated}, nil
}
