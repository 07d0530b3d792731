package scanner

import (
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/sadopc/sizestream/internal/model"
)

// Session is the state shared by every concurrent visit of one scan.
// Each field group has its own lock so no visit ever waits on an unrelated one.
type Session struct {
	id        string
	batchSize int
	heartbeat int

	cancelled atomic.Bool

	statsMu sync.Mutex
	visited uint64
	size    uint64

	// active holds the canonical paths of directories currently being
	// descended; seen holds every object identity visited so far.
	active mapset.Set[string]
	seen   mapset.Set[Identity]

	pathMu      sync.Mutex
	currentPath string

	batchMu sync.Mutex
	batch   []model.CompactNode

	tickMu sync.Mutex
	ticks  int
}

// NewSession creates a session with a fresh ID.
func NewSession(opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		id:        uuid.NewString(),
		batchSize: opts.BatchSize,
		heartbeat: opts.HeartbeatInterval,
		active:    mapset.NewSet[string](),
		seen:      mapset.NewSet[Identity](),
	}
}

func (s *Session) ID() string { return s.id }

// Cancel requests cancellation. The flag is never reset.
func (s *Session) Cancel() { s.cancelled.Store(true) }

func (s *Session) Cancelled() bool { return s.cancelled.Load() }

func (s *Session) IncrementVisited() {
	s.statsMu.Lock()
	s.visited++
	s.statsMu.Unlock()
}

func (s *Session) AddSize(n uint64) {
	s.statsMu.Lock()
	s.size = model.SaturatingAdd(s.size, n)
	s.statsMu.Unlock()
}

// Stats returns the visited count and accumulated size.
func (s *Session) Stats() (visited, size uint64) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.visited, s.size
}

// PushActive marks a directory as being descended. It returns false if the
// path was already active, which means the walk has hit a cycle.
func (s *Session) PushActive(canonical string) bool { return s.active.Add(canonical) }

func (s *Session) PopActive(canonical string) { s.active.Remove(canonical) }

func (s *Session) IsActive(canonical string) bool { return s.active.Contains(canonical) }

// MarkIdentity records an object identity and reports whether it was new.
func (s *Session) MarkIdentity(id Identity) bool { return s.seen.Add(id) }

func (s *Session) SeenIdentity(id Identity) bool { return s.seen.Contains(id) }

func (s *Session) SetCurrentPath(p string) {
	s.pathMu.Lock()
	s.currentPath = p
	s.pathMu.Unlock()
}

func (s *Session) CurrentPath() string {
	s.pathMu.Lock()
	defer s.pathMu.Unlock()
	return s.currentPath
}

// AppendBatch buffers a compact subtree and reports whether the buffer
// has reached the batch threshold.
func (s *Session) AppendBatch(n model.CompactNode) bool {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batch = append(s.batch, n)
	return len(s.batch) >= s.batchSize
}

// DrainBatch empties the buffer and returns its contents.
func (s *Session) DrainBatch() []model.CompactNode {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	out := s.batch
	s.batch = nil
	return out
}

// Tick advances the heartbeat counter and returns true once every
// HeartbeatInterval calls.
func (s *Session) Tick() bool {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	s.ticks++
	if s.ticks >= s.heartbeat {
		s.ticks = 0
		return true
	}
	return false
}
