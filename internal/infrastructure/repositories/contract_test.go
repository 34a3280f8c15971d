package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/internal/infrastructure/repositories/memory"
	redisrepo "camrelay/internal/infrastructure/repositories/redis"
	"camrelay/pkg/feed"

	"github.com/alicebob/miniredis/v2"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const contractSDP = "v=0\r\n" +
	"o=- 4215775240449105457 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 96\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:0\r\n" +
	"a=rtpmap:96 VP8/90000\r\n"

var contractStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// backend is one store implementation under test with a controllable clock.
type backend struct {
	repos   *Repositories
	now     func() time.Time
	advance func(time.Duration)
}

func newMemoryBackend(t *testing.T, maxBatch int) *backend {
	var (
		mu  sync.Mutex
		now = contractStart
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	store := memory.NewStore(memory.WithClock(clock), memory.WithMaxBatchSize(maxBatch))
	return &backend{
		repos: &Repositories{
			Cameras:    memory.NewMemoryCameraRepository(store),
			Links:      memory.NewMemoryLinkRepository(store),
			Sessions:   memory.NewMemorySessionRepository(store),
			Candidates: memory.NewMemoryCandidateRepository(store),
		},
		now: clock,
		advance: func(d time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(d)
		},
	}
}

func newRedisBackend(t *testing.T, maxBatch int) *backend {
	mr := miniredis.RunT(t)
	mr.SetTime(contractStart)
	logger := zaptest.NewLogger(t).Sugar()

	client, err := redisrepo.NewRedisClient(context.Background(), mr.Addr(), "", 0, 10, "test:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisrepo.CloseRedisClient(client) })

	var mu sync.Mutex
	now := contractStart
	store := redisrepo.NewStore(client, "test:", maxBatch, logger)
	return &backend{
		repos: &Repositories{
			Cameras:    redisrepo.NewRedisCameraRepository(store),
			Links:      redisrepo.NewRedisLinkRepository(store),
			Sessions:   redisrepo.NewRedisSessionRepository(store),
			Candidates: redisrepo.NewRedisCandidateRepository(store),
		},
		now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		},
		advance: func(d time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(d)
			mr.SetTime(now)
		},
	}
}

// forEachBackend runs fn against every store implementation.
func forEachBackend(t *testing.T, maxBatch int, fn func(t *testing.T, b *backend)) {
	backends := map[string]func(*testing.T, int) *backend{
		"memory": newMemoryBackend,
		"redis":  newRedisBackend,
	}
	for name, mk := range backends {
		t.Run(name, func(t *testing.T) {
			fn(t, mk(t, maxBatch))
		})
	}
}

func await[T any](t *testing.T, sub *feed.Subscription[T], ok func(T) bool) T {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case v, open := <-sub.C():
			require.True(t, open, "subscription closed early")
			if ok(v) {
				return v
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func contractSession(camera domain.CameraID, id string, status domain.SessionStatus) *domain.Session {
	return &domain.Session{
		ID:                domain.SessionID(id),
		CameraID:          camera,
		MonitorUserID:     "u1",
		MonitorDeviceID:   "d1",
		MonitorDeviceName: "Phone",
		Offer:             domain.Negotiation{Type: webrtc.SDPTypeOffer, SDP: contractSDP},
		Status:            status,
	}
}

func TestContract_Cameras(t *testing.T) {
	forEachBackend(t, 500, func(t *testing.T, b *backend) {
		ctx := context.Background()
		repo := b.repos.Cameras

		cam := &domain.Camera{OwnerUserID: "owner", PairingCode: "ABC123", DeviceName: "Nursery", IsOnline: true}
		require.NoError(t, repo.Create(ctx, cam))
		require.NotEmpty(t, cam.ID)

		got, err := repo.Get(ctx, cam.ID)
		require.NoError(t, err)
		assert.Equal(t, "ABC123", got.PairingCode)
		assert.True(t, got.IsOnline)
		assert.True(t, b.now().Equal(got.CreatedAt))
		assert.Nil(t, got.BatteryLevel)

		b.advance(time.Minute)
		offline := false
		level := 55
		name := "Hall"
		require.NoError(t, repo.Update(ctx, cam.ID, domain.CameraUpdate{
			Online:        &offline,
			TouchLastSeen: true,
			BatteryLevel:  &level,
			DeviceName:    &name,
		}))
		got, err = repo.Get(ctx, cam.ID)
		require.NoError(t, err)
		assert.False(t, got.IsOnline)
		assert.True(t, b.now().Equal(got.LastSeen))
		require.NotNil(t, got.BatteryLevel)
		assert.Equal(t, 55, *got.BatteryLevel)
		assert.Equal(t, "Hall", got.DeviceName)
		assert.Equal(t, "ABC123", got.PairingCode, "unpatched fields survive")

		assert.ErrorIs(t, repo.Update(ctx, "missing", domain.CameraUpdate{Online: &offline}), domain.ErrCameraNotFound)
		_, err = repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrCameraNotFound)

		other := &domain.Camera{ID: "fixed-id", OwnerUserID: "someone", PairingCode: "ZZZ999"}
		require.NoError(t, repo.Create(ctx, other))

		owned, err := repo.ListByOwner(ctx, "owner")
		require.NoError(t, err)
		require.Len(t, owned, 1)
		assert.Equal(t, cam.ID, owned[0].ID)

		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		require.NoError(t, repo.Delete(ctx, cam.ID))
		require.NoError(t, repo.Delete(ctx, cam.ID))
		owned, err = repo.ListByOwner(ctx, "owner")
		require.NoError(t, err)
		assert.Empty(t, owned)
	})
}

func TestContract_CameraWatch(t *testing.T) {
	forEachBackend(t, 500, func(t *testing.T, b *backend) {
		ctx := context.Background()
		repo := b.repos.Cameras

		sub, err := repo.Watch(ctx, "c1")
		require.NoError(t, err)
		defer sub.Cancel()
		await(t, sub, func(c *domain.Camera) bool { return c == nil })

		require.NoError(t, repo.Create(ctx, &domain.Camera{ID: "c1", OwnerUserID: "owner", PairingCode: "ABC123"}))
		await(t, sub, func(c *domain.Camera) bool { return c != nil && c.PairingCode == "ABC123" })

		code := "NEW123"
		require.NoError(t, repo.Update(ctx, "c1", domain.CameraUpdate{PairingCode: &code}))
		await(t, sub, func(c *domain.Camera) bool { return c != nil && c.PairingCode == "NEW123" })

		require.NoError(t, repo.Delete(ctx, "c1"))
		await(t, sub, func(c *domain.Camera) bool { return c == nil })
	})
}

func TestContract_Links(t *testing.T) {
	forEachBackend(t, 500, func(t *testing.T, b *backend) {
		ctx := context.Background()
		repo := b.repos.Links

		id := domain.NewLinkID("u1", "c1")
		require.NoError(t, repo.Upsert(ctx, &domain.MonitorLink{ID: id, MonitorUserID: "u1", CameraID: "c1", CameraName: "Nursery", IsActive: true}))
		require.NoError(t, repo.Upsert(ctx, &domain.MonitorLink{ID: "u1_c2", MonitorUserID: "u1", CameraID: "c2", IsActive: false}))
		require.NoError(t, repo.Upsert(ctx, &domain.MonitorLink{ID: "u2_c1", MonitorUserID: "u2", CameraID: "c1", IsActive: true}))

		b.advance(time.Minute)
		require.NoError(t, repo.Upsert(ctx, &domain.MonitorLink{ID: id, IsActive: true}))
		link, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Nursery", link.CameraName, "upsert merges")
		assert.Equal(t, domain.UserID("u1"), link.MonitorUserID)
		assert.True(t, b.now().Equal(link.PairedAt))

		active, err := repo.ListActiveByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, id, active[0].ID)

		all, err := repo.ListByUser(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		byCamera, err := repo.ListByCamera(ctx, "c1")
		require.NoError(t, err)
		assert.Len(t, byCamera, 2)

		require.NoError(t, repo.SetActive(ctx, id, false))
		assert.ErrorIs(t, repo.SetActive(ctx, "nobody_nothing", false), domain.ErrLinkNotFound)

		require.NoError(t, repo.ApplyBatch(ctx, []domain.LinkMutation{
			{ID: "u2_c1", Kind: domain.LinkSetName, CameraName: "Renamed"},
			{ID: "u1_c2", Kind: domain.LinkDelete},
			{ID: "never-existed", Kind: domain.LinkDelete},
		}))
		link, err = repo.Get(ctx, "u2_c1")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", link.CameraName)
		_, err = repo.Get(ctx, "u1_c2")
		assert.ErrorIs(t, err, domain.ErrLinkNotFound)
		all, err = repo.ListByUser(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestContract_LinkBatchAtomicity(t *testing.T) {
	forEachBackend(t, 3, func(t *testing.T, b *backend) {
		ctx := context.Background()
		repo := b.repos.Links
		assert.Equal(t, 3, repo.MaxBatchSize())

		require.NoError(t, repo.Upsert(ctx, &domain.MonitorLink{ID: "u1_c1", MonitorUserID: "u1", CameraID: "c1", IsActive: true}))

		err := repo.ApplyBatch(ctx, []domain.LinkMutation{
			{ID: "u1_c1", Kind: domain.LinkSetActive, Active: false},
			{ID: "missing", Kind: domain.LinkSetActive, Active: false},
		})
		assert.ErrorIs(t, err, domain.ErrLinkNotFound)
		link, err := repo.Get(ctx, "u1_c1")
		require.NoError(t, err)
		assert.True(t, link.IsActive, "a rejected batch writes nothing")

		tooMany := make([]domain.LinkMutation, 4)
		for i := range tooMany {
			tooMany[i] = domain.LinkMutation{ID: "u1_c1", Kind: domain.LinkSetActive}
		}
		assert.ErrorIs(t, repo.ApplyBatch(ctx, tooMany), domain.ErrBatchTooLarge)
	})
}

func TestContract_LinkWatch(t *testing.T) {
	forEachBackend(t, 500, func(t *testing.T, b *backend) {
		ctx := context.Background()
		repo := b.repos.Links

		sub, err := repo.WatchActiveByUser(ctx, "u1")
		require.NoError(t, err)
		defer sub.Cancel()
		await(t, sub, func(l []*domain.MonitorLink) bool { return len(l) == 0 })

		require.NoError(t, repo.Upsert(ctx, &domain.MonitorLink{ID: "u1_c1", MonitorUserID: "u1", CameraID: "c1", IsActive: true}))
		await(t, sub, func(l []*domain.MonitorLink) bool { return len(l) == 1 })

		require.NoError(t, repo.SetActive(ctx, "u1_c1", false))
		await(t, sub, func(l []*domain.MonitorLink) bool { return len(l) == 0 })
	})
}

func TestContract_Sessions(t *testing.T) {
	forEachBackend(t, 500, func(t *testing.T, b *backend) {
		ctx := context.Background()
		repo := b.repos.Sessions

		s1 := contractSession("c1", "s1", domain.SessionWaiting)
		require.NoError(t, repo.Create(ctx, s1))
		assert.True(t, b.now().Equal(s1.CreatedAt))

		got, err := repo.Get(ctx, s1.Ref())
		require.NoError(t, err)
		assert.Equal(t, domain.SessionWaiting, got.Status)
		assert.Equal(t, contractSDP, got.Offer.SDP)
		assert.Nil(t, got.Answer)
		assert.Nil(t, got.LastHeartbeat)

		b.advance(time.Second)
		answer := domain.Negotiation{Type: webrtc.SDPTypeAnswer, SDP: contractSDP}
		connected := domain.SessionConnected
		audio := true
		require.NoError(t, repo.Update(ctx, s1.Ref(), domain.SessionUpdate{
			Answer:       &answer,
			Status:       &connected,
			AudioEnabled: &audio,
			Heartbeat:    true,
		}))
		got, err = repo.Get(ctx, s1.Ref())
		require.NoError(t, err)
		assert.Equal(t, domain.SessionConnected, got.Status)
		require.NotNil(t, got.Answer)
		assert.Equal(t, webrtc.SDPTypeAnswer, got.Answer.Type)
		require.NotNil(t, got.LastHeartbeat)
		assert.True(t, b.now().Equal(*got.LastHeartbeat))
		require.NotNil(t, got.AudioEnabled)
		assert.True(t, *got.AudioEnabled)

		missing := domain.SessionRef{CameraID: "c1", SessionID: "missing"}
		assert.ErrorIs(t, repo.Update(ctx, missing, domain.SessionUpdate{Status: &connected}), domain.ErrSessionNotFound)
		_, err = repo.Get(ctx, missing)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		require.NoError(t, repo.Create(ctx, contractSession("c1", "s2", domain.SessionWaiting)))
		require.NoError(t, repo.Create(ctx, contractSession("c2", "s3", domain.SessionWaiting)))

		waiting, err := repo.ListByCamera(ctx, "c1", domain.SessionFilter{Statuses: []domain.SessionStatus{domain.SessionWaiting}})
		require.NoError(t, err)
		require.Len(t, waiting, 1)
		assert.Equal(t, domain.SessionID("s2"), waiting[0].ID)

		all, err := repo.ListByCamera(ctx, "c1", domain.SessionFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		require.NoError(t, repo.Delete(ctx, s1.Ref()))
		require.NoError(t, repo.Delete(ctx, s1.Ref()))
		_, err = repo.Get(ctx, s1.Ref())
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}

func TestContract_SessionQuery(t *testing.T) {
	forEachBackend(t, 500, func(t *testing.T, b *backend) {
		ctx := context.Background()
		repo := b.repos.Sessions

		require.NoError(t, repo.Create(ctx, contractSession("c1", "old", domain.SessionWaiting)))
		b.advance(time.Minute)
		boundary := b.now()
		require.NoError(t, repo.Create(ctx, contractSession("c2", "at-boundary", domain.SessionWaiting)))
		b.advance(time.Minute)
		require.NoError(t, repo.Create(ctx, contractSession("c1", "new", domain.SessionWaiting)))
		require.NoError(t, repo.Create(ctx, contractSession("c3", "done", domain.SessionDisconnected)))

		found, err := repo.Query(ctx, domain.SessionQuery{Status: domain.SessionWaiting, CreatedBefore: boundary})
		require.NoError(t, err)
		require.Len(t, found, 1, "CreatedBefore is exclusive")
		assert.Equal(t, domain.SessionID("old"), found[0].ID)

		found, err = repo.Query(ctx, domain.SessionQuery{Status: domain.SessionWaiting})
		require.NoError(t, err)
		assert.Len(t, found, 3)

		found, err = repo.Query(ctx, domain.SessionQuery{})
		require.NoError(t, err)
		assert.Len(t, found, 4)

		require.NoError(t, repo.ApplyBatch(ctx, []domain.SessionMutation{
			{Ref: domain.SessionRef{CameraID: "c1", SessionID: "old"}, Kind: domain.SessionSetStatus, Status: domain.SessionDisconnected},
		}))
		found, err = repo.Query(ctx, domain.SessionQuery{Status: domain.SessionDisconnected})
		require.NoError(t, err)
		assert.Len(t, found, 2, "status indexes follow updates")
	})
}

func TestContract_SessionCreateRejectsExistingID(t *testing.T) {
	forEachBackend(t, 500, func(t *testing.T, b *backend) {
		ctx := context.Background()
		repo := b.repos.Sessions

		original := contractSession("c1", "s1", domain.SessionWaiting)
		original.PairingCode = "ABC123"
		require.NoError(t, repo.Create(ctx, original))
		require.NoError(t, b.repos.Candidates.Add(ctx, original.Ref(), &domain.ICECandidate{
			Candidate: "candidate:1 1 udp 2122260223 10.0.0.2 50000 typ host",
			Sender:    domain.SenderMonitor,
		}))

		intruder := contractSession("c1", "s1", domain.SessionWaiting)
		intruder.MonitorUserID = "u2"
		assert.ErrorIs(t, repo.Create(ctx, intruder), domain.ErrSessionExists)

		got, err := repo.Get(ctx, original.Ref())
		require.NoError(t, err)
		assert.Equal(t, domain.UserID("u1"), got.MonitorUserID)
		assert.Equal(t, "ABC123", got.PairingCode)
		candidates, err := b.repos.Candidates.List(ctx, original.Ref())
		require.NoError(t, err)
		assert.Len(t, candidates, 1)

		require.NoError(t, repo.Delete(ctx, original.Ref()))
		require.NoError(t, repo.Create(ctx, intruder), "a deleted id can be reused")
		candidates, err = b.repos.Candidates.List(ctx, intruder.Ref())
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})
}

func TestContract_SessionDisconnectedIsTerminal(t *testing.T) {
	forEachBackend(t, 500, func(t *testing.T, b *backend) {
		ctx := context.Background()
		repo := b.repos.Sessions

		s := contractSession("c1", "s1", domain.SessionDisconnected)
		require.NoError(t, repo.Create(ctx, s))

		connected := domain.SessionConnected
		answer := domain.Negotiation{Type: webrtc.SDPTypeAnswer, SDP: contractSDP}
		err := repo.Update(ctx, s.Ref(), domain.SessionUpdate{Answer: &answer, Status: &connected})
		assert.ErrorIs(t, err, domain.ErrInvalidSessionStatus)

		disconnected := domain.SessionDisconnected
		require.NoError(t, repo.Update(ctx, s.Ref(), domain.SessionUpdate{Status: &disconnected, Heartbeat: true}))

		require.NoError(t, repo.ApplyBatch(ctx, []domain.SessionMutation{
			{Ref: s.Ref(), Kind: domain.SessionSetStatus, Status: domain.SessionConnected},
		}))

		got, err := repo.Get(ctx, s.Ref())
		require.NoError(t, err)
		assert.Equal(t, domain.SessionDisconnected, got.Status)
		assert.Nil(t, got.Answer)
		found, err := repo.Query(ctx, domain.SessionQuery{Status: domain.SessionConnected})
		require.NoError(t, err)
		assert.Empty(t, found, "status index is untouched by a rejected flip")
	})
}

func TestContract_SessionBatchSkipsMissingTargets(t *testing.T) {
	forEachBackend(t, 500, func(t *testing.T, b *backend) {
		ctx := context.Background()
		repo := b.repos.Sessions

		live := contractSession("c1", "live", domain.SessionConnected)
		require.NoError(t, repo.Create(ctx, live))
		gone := domain.SessionRef{CameraID: "c1", SessionID: "gone"}

		require.NoError(t, repo.ApplyBatch(ctx, []domain.SessionMutation{
			{Ref: gone, Kind: domain.SessionSetStatus, Status: domain.SessionDisconnected},
			{Ref: live.Ref(), Kind: domain.SessionSetStatus, Status: domain.SessionDisconnected},
		}))

		got, err := repo.Get(ctx, live.Ref())
		require.NoError(t, err)
		assert.Equal(t, domain.SessionDisconnected, got.Status)
		_, err = repo.Get(ctx, gone)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "a skipped flip never creates the document")
	})
}

func TestContract_SessionBatchLimit(t *testing.T) {
	forEachBackend(t, 2, func(t *testing.T, b *backend) {
		ctx := context.Background()
		repo := b.repos.Sessions

		var mutations []domain.SessionMutation
		for i := 0; i < 3; i++ {
			s := contractSession("c1", fmt.Sprintf("s%d", i), domain.SessionWaiting)
			require.NoError(t, repo.Create(ctx, s))
			mutations = append(mutations, domain.SessionMutation{Ref: s.Ref(), Kind: domain.SessionDelete})
		}
		assert.ErrorIs(t, repo.ApplyBatch(ctx, mutations), domain.ErrBatchTooLarge)
		require.NoError(t, repo.ApplyBatch(ctx, mutations[:2]))

		left, err := repo.ListByCamera(ctx, "c1", domain.SessionFilter{})
		require.NoError(t, err)
		assert.Len(t, left, 1)
	})
}

func TestContract_SessionWatch(t *testing.T) {
	forEachBackend(t, 500, func(t *testing.T, b *backend) {
		ctx := context.Background()
		repo := b.repos.Sessions

		sub, err := repo.Watch(ctx, "c1", domain.SessionFilter{Statuses: []domain.SessionStatus{domain.SessionWaiting}})
		require.NoError(t, err)
		defer sub.Cancel()
		one, err := repo.WatchOne(ctx, domain.SessionRef{CameraID: "c1", SessionID: "s1"})
		require.NoError(t, err)
		defer one.Cancel()

		await(t, sub, func(s []*domain.Session) bool { return len(s) == 0 })
		await(t, one, func(s *domain.Session) bool { return s == nil })

		s := contractSession("c1", "s1", domain.SessionWaiting)
		require.NoError(t, repo.Create(ctx, s))
		await(t, sub, func(s []*domain.Session) bool { return len(s) == 1 })
		await(t, one, func(s *domain.Session) bool { return s != nil && s.Status == domain.SessionWaiting })

		disconnected := domain.SessionDisconnected
		require.NoError(t, repo.Update(ctx, s.Ref(), domain.SessionUpdate{Status: &disconnected}))
		await(t, sub, func(s []*domain.Session) bool { return len(s) == 0 })
		await(t, one, func(s *domain.Session) bool { return s != nil && s.Status == domain.SessionDisconnected })

		require.NoError(t, repo.Delete(ctx, s.Ref()))
		await(t, one, func(s *domain.Session) bool { return s == nil })
	})
}

func TestContract_Candidates(t *testing.T) {
	forEachBackend(t, 500, func(t *testing.T, b *backend) {
		ctx := context.Background()
		s := contractSession("c1", "s1", domain.SessionWaiting)
		require.NoError(t, b.repos.Sessions.Create(ctx, s))
		repo := b.repos.Candidates

		sub, err := repo.Watch(ctx, s.Ref())
		require.NoError(t, err)
		defer sub.Cancel()
		await(t, sub, func(c []*domain.ICECandidate) bool { return len(c) == 0 })

		mid := "0"
		c := &domain.ICECandidate{Candidate: "candidate:1 1 udp 2122260223 10.0.0.2 50000 typ host", SDPMid: &mid, Sender: domain.SenderCamera}
		require.NoError(t, repo.Add(ctx, s.Ref(), c))
		assert.NotEmpty(t, c.ID)

		got := await(t, sub, func(c []*domain.ICECandidate) bool { return len(c) == 1 })
		assert.Equal(t, c.ID, got[0].ID)
		require.NotNil(t, got[0].SDPMid)
		assert.Nil(t, got[0].SDPMLineIndex)

		missing := domain.SessionRef{CameraID: "c1", SessionID: "gone"}
		assert.ErrorIs(t, repo.Add(ctx, missing, &domain.ICECandidate{Candidate: "candidate:x", Sender: domain.SenderMonitor}), domain.ErrSessionNotFound)

		require.NoError(t, b.repos.Sessions.Delete(ctx, s.Ref()))
		await(t, sub, func(c []*domain.ICECandidate) bool { return len(c) == 0 })
		left, err := repo.List(ctx, s.Ref())
		require.NoError(t, err)
		assert.Empty(t, left, "deleting a session removes its candidates")
	})
}
