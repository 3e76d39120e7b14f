package logging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SinkOptions configures a Sink.
type SinkOptions struct {
	// Writer receives every record. It is closed when the sink stops if it
	// implements io.Closer.
	Writer io.Writer
	// Console receives records whose verbosity is within Verbosity.
	Console   slog.Handler
	Verbosity int
	Buffer    int
	Now       func() time.Time
	// Started is when the run began; the closing summary measures from it.
	// Zero means the moment the sink is built.
	Started time.Time
}

type sinkMessage struct {
	record    slog.Record
	terminate bool
}

// Sink serializes log records from every component of a run. Exactly one
// goroutine runs it; producers only ever enqueue.
type Sink struct {
	in        chan sinkMessage
	done      chan struct{}
	writer    io.Writer
	console   slog.Handler
	verbosity int
	now       func() time.Time
	started   time.Time

	closeOnce sync.Once
	err       error
}

// NewSink constructs a sink. Call Run in its own goroutine.
func NewSink(opts SinkOptions) *Sink {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 1024
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	writer := opts.Writer
	if writer == nil {
		writer = io.Discard
	}
	console := opts.Console
	if console == nil {
		console = NoopHandler{}
	}
	started := opts.Started
	if started.IsZero() {
		started = now()
	}
	return &Sink{
		in:        make(chan sinkMessage, buffer),
		done:      make(chan struct{}),
		writer:    writer,
		console:   console,
		verbosity: opts.Verbosity,
		now:       now,
		started:   started,
	}
}

// OpenRunLog creates a fresh run log at path. The file must not exist yet.
func OpenRunLog(path string, maxSizeMB int) (io.WriteCloser, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("run log %s already exists", path)
		}
		return nil, fmt.Errorf("create run log: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("create run log: %w", err)
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	return &lumberjack.Logger{Filename: path, MaxSize: maxSizeMB}, nil
}

// Logger returns a logger whose records are delivered to the sink.
func (s *Sink) Logger() *slog.Logger {
	return slog.New(s.Handler())
}

// Handler returns the slog handler that forwards records to the sink.
func (s *Sink) Handler() slog.Handler {
	return &sinkHandler{sink: s}
}

// Done is closed once the sink has written its closing summary.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

// Run consumes records until Close is called. It returns the first error
// encountered writing the durable log.
func (s *Sink) Run() error {
	defer close(s.done)
	for msg := range s.in {
		if msg.terminate {
			s.writeSummary()
			if closer, ok := s.writer.(io.Closer); ok {
				if err := closer.Close(); err != nil && s.err == nil {
					s.err = fmt.Errorf("close run log: %w", err)
				}
			}
			return s.err
		}
		s.deliver(msg.record)
	}
	return s.err
}

// Close sends the terminate sentinel and waits for the sink to exit. Records
// logged after Close are dropped.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		select {
		case s.in <- sinkMessage{terminate: true}:
		case <-s.done:
		}
	})
	<-s.done
	return s.err
}

func (s *Sink) enqueue(record slog.Record) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.in <- sinkMessage{record: record}:
	case <-s.done:
	}
}

func (s *Sink) deliver(record slog.Record) {
	if record.Time.IsZero() {
		record.Time = s.now()
	}
	s.writeLine(record)
	if Verbosity(record.Level) > s.verbosity {
		return
	}
	if !s.console.Enabled(context.Background(), record.Level) {
		return
	}
	_ = s.console.Handle(context.Background(), record)
}

func (s *Sink) writeLine(record slog.Record) {
	kvs := make([]kv, 0, record.NumAttrs())
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, nil, attr)
		return true
	})
	kvs = dedupeKVsByKey(kvs)

	var buf bytes.Buffer
	buf.WriteString(record.Time.Format(sinkTimestampLayout))
	buf.WriteString(" - ")
	for _, kv := range kvs {
		if kv.key == FieldComponent {
			buf.WriteString(plainValue(kv.value))
			buf.WriteString(": ")
			break
		}
	}
	if record.Level >= slog.LevelWarn {
		buf.WriteString(levelLabel(record.Level))
		buf.WriteByte(' ')
	}
	buf.WriteString(strings.TrimSpace(record.Message))
	for _, kv := range kvs {
		if kv.key == FieldComponent {
			continue
		}
		buf.WriteByte(' ')
		buf.WriteString(kv.key)
		buf.WriteByte('=')
		buf.WriteString(quotedValue(kv.value))
	}
	buf.WriteByte('\n')
	s.write(buf.Bytes())
}

func (s *Sink) writeSummary() {
	end := s.now()
	elapsed := end.Sub(s.started)
	line := fmt.Sprintf("%s - analysis complete; total time: %s\n", end.Format(sinkTimestampLayout), formatDurationHuman(elapsed))
	s.write([]byte(line))

	record := slog.NewRecord(end, slog.LevelInfo, "analysis complete", 0)
	record.AddAttrs(slog.Duration("total_time", elapsed), slog.String(FieldEventType, "run_complete"))
	if s.console.Enabled(context.Background(), slog.LevelInfo) {
		_ = s.console.Handle(context.Background(), record)
	}
}

func (s *Sink) write(p []byte) {
	if _, err := s.writer.Write(p); err != nil && s.err == nil {
		s.err = fmt.Errorf("write run log: %w", err)
	}
}

type sinkHandler struct {
	sink   *Sink
	attrs  []slog.Attr
	groups []string
}

func (h *sinkHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *sinkHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	out.AddAttrs(h.attrs...)
	out.AddAttrs(ContextFields(ctx)...)
	own := make([]slog.Attr, 0, record.NumAttrs())
	record.Attrs(func(attr slog.Attr) bool {
		own = append(own, attr)
		return true
	})
	out.AddAttrs(nestGroups(h.groups, own)...)
	h.sink.enqueue(out)
	return nil
}

func (h *sinkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := &sinkHandler{sink: h.sink, groups: h.groups}
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), nestGroups(h.groups, attrs)...)
	return clone
}

func (h *sinkHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &sinkHandler{sink: h.sink, attrs: h.attrs, groups: appendPrefix(h.groups, name)}
}

func nestGroups(groups []string, attrs []slog.Attr) []slog.Attr {
	if len(groups) == 0 || len(attrs) == 0 {
		return attrs
	}
	nested := attrs
	for i := len(groups) - 1; i >= 0; i-- {
		nested = []slog.Attr{slog.Group(groups[i], attrsToArgs(nested)...)}
	}
	return nested
}

// plainValue renders v for display without quoting.
func plainValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		// Audio offsets and rates never need more than millisecond precision.
		return strconv.FormatFloat(math.Round(v.Float64()*1000)/1000, 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return formatTimestamp(v.Time())
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

// quotedValue is plainValue quoted when the result would break key=value
// parsing of a run log line.
func quotedValue(v slog.Value) string {
	s := plainValue(v)
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
