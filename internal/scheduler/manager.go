package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"buzzbatch/internal/logging"
)

// ErrNoWork is returned when no file has a chunk left to analyze.
var ErrNoWork = errors.New("no chunks to assign")

const unbound = -1

type fileState struct {
	path     string
	chunks   []Chunk
	next     int
	finished bool
}

func (f *fileState) pending() int {
	return len(f.chunks) - f.next
}

// Manager is the sole owner of assignment state. Next and Run must be called
// from one goroutine.
type Manager struct {
	files     []*fileState
	bindings  []int
	remaining int
	total     int
	abandoned int
	logger    *slog.Logger
	sampler   *logging.ProgressSampler
}

// New builds a manager for workers analyzer workers. Files with no chunks are
// excluded. Workers are bound round-robin over the remaining files.
func New(files []AudioFile, workers int, logger *slog.Logger) (*Manager, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("scheduler: worker count must be positive, got %d", workers)
	}
	m := &Manager{
		bindings: make([]int, workers),
		logger:   logging.NewComponentLogger(logger, "manager"),
		sampler:  logging.NewProgressSampler(5),
	}
	for _, file := range files {
		if file.Complete() {
			continue
		}
		state := &fileState{path: file.Path, chunks: make([]Chunk, len(file.Chunks))}
		for i, iv := range file.Chunks {
			state.chunks[i] = Chunk{Source: file.Path, Interval: iv}
		}
		m.files = append(m.files, state)
		m.remaining += len(state.chunks)
	}
	if len(m.files) == 0 {
		return nil, ErrNoWork
	}
	m.total = m.remaining
	for w := range m.bindings {
		m.bindings[w] = w % len(m.files)
	}
	return m, nil
}

// Remaining returns the number of chunks not yet assigned.
func (m *Manager) Remaining() int {
	return m.remaining
}

// Total returns the number of chunks planned at construction.
func (m *Manager) Total() int {
	return m.total
}

// Abandoned returns the number of chunks workers reported as failed.
func (m *Manager) Abandoned() int {
	return m.abandoned
}

// Binding returns the path of the file worker is bound to, or "" if unbound.
func (m *Manager) Binding(worker int) string {
	if worker < 0 || worker >= len(m.bindings) || m.bindings[worker] == unbound {
		return ""
	}
	return m.files[m.bindings[worker]].path
}

// InitialBindings returns the worker to file binding as paths, indexed by worker.
func (m *Manager) InitialBindings() []string {
	out := make([]string, len(m.bindings))
	for w := range m.bindings {
		out[w] = m.Binding(w)
	}
	return out
}

// Next answers one request from worker.
func (m *Manager) Next(worker int) (Assignment, error) {
	if worker < 0 || worker >= len(m.bindings) {
		return Assignment{}, fmt.Errorf("scheduler: unknown worker %d", worker)
	}
	if m.remaining == 0 {
		return Terminate(), nil
	}

	idx := m.bindings[worker]
	if idx == unbound || m.files[idx].finished {
		idx = m.leastLoaded()
		m.logger.Debug("worker rebound",
			logging.Int(logging.FieldWorker, worker),
			logging.String(logging.FieldFile, m.files[idx].path),
			logging.String(logging.FieldEventType, "worker_rebound"),
		)
		m.bindings[worker] = idx
	}

	file := m.files[idx]
	chunk := file.chunks[file.next]
	file.next++
	if file.pending() == 0 {
		file.finished = true
		m.logger.Debug("file fully assigned",
			logging.String(logging.FieldFile, file.path),
			logging.Int("chunks", len(file.chunks)),
		)
	}
	m.remaining--
	m.logProgress()
	return Assignment{Kind: AssignChunk, Chunk: chunk}, nil
}

// leastLoaded returns the unfinished file bound to the fewest workers. Counts
// are recomputed on every call; ties go to the earliest file.
func (m *Manager) leastLoaded() int {
	counts := make([]int, len(m.files))
	for _, idx := range m.bindings {
		if idx != unbound && !m.files[idx].finished {
			counts[idx]++
		}
	}
	best := unbound
	for idx, file := range m.files {
		if file.finished {
			continue
		}
		if best == unbound || counts[idx] < counts[best] {
			best = idx
		}
	}
	return best
}

func (m *Manager) logProgress() {
	logging.Trace(m.logger, "chunks remaining", logging.Int("remaining", m.remaining))
	done := m.total - m.remaining
	if m.sampler.ShouldLog(logging.Percent(done, m.total), "assign") {
		m.logger.Info("assignment progress",
			logging.Int("assigned", done),
			logging.Int("chunks", m.total),
			logging.Float64(logging.FieldProgressPercent, logging.Percent(done, m.total)),
		)
	}
}

// Run serves requests until every chunk has been assigned, then sends
// Terminate on every worker's channel. assignments is indexed by worker id.
func (m *Manager) Run(ctx context.Context, requests <-chan Request, assignments []chan<- Assignment) error {
	if len(assignments) != len(m.bindings) {
		return fmt.Errorf("scheduler: %d assignment channels for %d workers", len(assignments), len(m.bindings))
	}
	m.logger.Info("assignment started",
		logging.Int("workers", len(m.bindings)),
		logging.Int("files", len(m.files)),
		logging.Int("chunks", m.total),
	)

	for m.remaining > 0 {
		var req Request
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-requests:
			if !ok {
				return errors.New("scheduler: request channel closed with work remaining")
			}
			req = r
		}
		if req.Abandoned != nil {
			m.abandoned++
			logging.WarnWithContext(m.logger, "chunk abandoned", "chunk_abandoned",
				logging.Int(logging.FieldWorker, req.Worker),
				logging.String(logging.FieldFile, req.Abandoned.Source),
				logging.String("chunk", req.Abandoned.Interval.String()),
				logging.String(logging.FieldImpact, "span stays uncovered until the next run"),
				logging.String(logging.FieldErrorHint, "rerun to retry the span"),
			)
		}
		assignment, err := m.Next(req.Worker)
		if err != nil {
			return err
		}
		if err := send(ctx, assignments[req.Worker], assignment); err != nil {
			return err
		}
	}

	for w, ch := range assignments {
		if err := send(ctx, ch, Terminate()); err != nil {
			return err
		}
		logging.Trace(m.logger, "worker terminated", logging.Int(logging.FieldWorker, w))
	}
	m.logger.Info("assignment finished",
		logging.Int("chunks", m.total),
		logging.Int("abandoned", m.abandoned),
	)
	return nil
}

func send(ctx context.Context, ch chan<- Assignment, a Assignment) error {
	select {
	case ch <- a:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
