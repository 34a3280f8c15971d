package memory

import (
	"sync"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/pkg/batch"
)

// Store is an in-process document store holding every collection. Repositories
// share it so cascading deletes and cross-collection checks see one state.
type Store struct {
	mu  sync.RWMutex
	seq uint64

	cameras    map[domain.CameraID]*cameraDoc
	links      map[domain.LinkID]*linkDoc
	sessions   map[domain.SessionRef]*sessionDoc
	candidates map[domain.SessionRef][]*domain.ICECandidate

	now          func() time.Time
	maxBatchSize int
	hub          *hub
}

type cameraDoc struct {
	seq    uint64
	camera *domain.Camera
}

type linkDoc struct {
	seq  uint64
	link *domain.MonitorLink
}

type sessionDoc struct {
	seq     uint64
	session *domain.Session
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the store clock used for server-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithMaxBatchSize overrides the per-batch mutation ceiling.
func WithMaxBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxBatchSize = n
		}
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		cameras:      make(map[domain.CameraID]*cameraDoc),
		links:        make(map[domain.LinkID]*linkDoc),
		sessions:     make(map[domain.SessionRef]*sessionDoc),
		candidates:   make(map[domain.SessionRef][]*domain.ICECandidate),
		now:          time.Now,
		maxBatchSize: batch.DefaultMaxSize,
		hub:          newHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func cameraTopic(id domain.CameraID) string {
	return "camera:" + string(id)
}

func sessionsTopic(id domain.CameraID) string {
	return "sessions:" + string(id)
}

func candidatesTopic(ref domain.SessionRef) string {
	return "candidates:" + ref.String()
}

func linksTopic(userID domain.UserID) string {
	return "links:" + string(userID)
}

// hub fans change notifications out to live queries. Listeners re-run their
// query and publish a full snapshot, so notifications carry no payload.
type hub struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string]map[int]func()
}

func newHub() *hub {
	return &hub{listeners: make(map[string]map[int]func())}
}

func (h *hub) subscribe(topic string, fn func()) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	if h.listeners[topic] == nil {
		h.listeners[topic] = make(map[int]func())
	}
	h.listeners[topic][id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners[topic], id)
		if len(h.listeners[topic]) == 0 {
			delete(h.listeners, topic)
		}
	}
}

// notify must be called without Store.mu held.
func (h *hub) notify(topics ...string) {
	h.mu.Lock()
	var fns []func()
	seen := make(map[string]bool, len(topics))
	for _, topic := range topics {
		if seen[topic] {
			continue
		}
		seen[topic] = true
		for _, fn := range h.listeners[topic] {
			fns = append(fns, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// WatcherCount reports the number of live queries, for leak checks in tests.
func (s *Store) WatcherCount() int {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	n := 0
	for _, l := range s.hub.listeners {
		n += len(l)
	}
	return n
}

func cloneCamera(c *domain.Camera) *domain.Camera {
	cp := *c
	if c.BatteryLevel != nil {
		level := *c.BatteryLevel
		cp.BatteryLevel = &level
	}
	return &cp
}

func cloneLink(l *domain.MonitorLink) *domain.MonitorLink {
	cp := *l
	return &cp
}

func cloneSession(s *domain.Session) *domain.Session {
	cp := *s
	if s.Answer != nil {
		answer := *s.Answer
		cp.Answer = &answer
	}
	if s.AudioEnabled != nil {
		enabled := *s.AudioEnabled
		cp.AudioEnabled = &enabled
	}
	if s.LastHeartbeat != nil {
		hb := *s.LastHeartbeat
		cp.LastHeartbeat = &hb
	}
	return &cp
}

func cloneCandidate(c *domain.ICECandidate) *domain.ICECandidate {
	cp := *c
	if c.SDPMid != nil {
		mid := *c.SDPMid
		cp.SDPMid = &mid
	}
	if c.SDPMLineIndex != nil {
		idx := *c.SDPMLineIndex
		cp.SDPMLineIndex = &idx
	}
	return &cp
}
