package services

import (
	"sync"
	"testing"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/internal/infrastructure/repositories/memory"
	"camrelay/pkg/feed"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap/zaptest"
)

const testSDP = "v=0\r\n" +
	"o=- 4215775240449105457 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 96\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:0\r\n" +
	"a=rtpmap:96 VP8/90000\r\n"

func testOffer() domain.Negotiation {
	return domain.Negotiation{Type: webrtc.SDPTypeOffer, SDP: testSDP}
}

func testAnswer() domain.Negotiation {
	return domain.Negotiation{Type: webrtc.SDPTypeAnswer, SDP: testSDP}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testEnv wires every service to one in-memory store.
type testEnv struct {
	clock      *fakeClock
	store      *memory.Store
	cameras    ports.CameraRepository
	links      ports.LinkRepository
	sessions   ports.SessionRepository
	candidates ports.CandidateRepository

	pairing    ports.PairingService
	session    ports.SessionService
	candidate  ports.CandidateService
	presence   ports.PresenceService
	account    ports.AccountService
	reconciler *ReconcilerService
}

func newTestEnv(t *testing.T, opts ...memory.Option) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	clock := newFakeClock()

	store := memory.NewStore(append([]memory.Option{memory.WithClock(clock.Now)}, opts...)...)
	env := &testEnv{
		clock:      clock,
		store:      store,
		cameras:    memory.NewMemoryCameraRepository(store),
		links:      memory.NewMemoryLinkRepository(store),
		sessions:   memory.NewMemorySessionRepository(store),
		candidates: memory.NewMemoryCandidateRepository(store),
	}
	env.pairing = NewPairingService(env.cameras, env.links, nil, logger)
	env.session = NewSessionService(env.sessions, nil, logger)
	env.candidate = NewCandidateService(env.candidates, nil)
	presence := NewPresenceService(env.cameras, env.pairing, 5*time.Minute, logger).(*presenceService)
	presence.now = clock.Now
	env.presence = presence
	env.account = NewAccountService(env.cameras, env.links, env.sessions, logger)
	env.reconciler = NewReconcilerService(env.cameras, env.sessions, DefaultReconcilerConfig(), nil, logger).
		WithClock(clock.Now)
	return env
}

// waitFor reads snapshots until one satisfies ok. Feeds only keep the latest
// snapshot, so intermediate states may be skipped.
func waitFor[T any](t *testing.T, sub *feed.Subscription[T], ok func(T) bool) T {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case v, open := <-sub.C():
			if !open {
				t.Fatal("subscription closed before the expected snapshot")
			}
			if ok(v) {
				return v
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}
