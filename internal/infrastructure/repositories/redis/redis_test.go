package redis

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/pkg/circuitbreaker"

	"github.com/alicebob/miniredis/v2"
	"github.com/pion/webrtc/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

const testOfferJSON = `{"type":"offer","sdp":"` +
	`v=0\r\no=- 4215775240449105457 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n` +
	`m=video 9 UDP/TLS/RTP/SAVPF 96\r\nc=IN IP4 0.0.0.0\r\na=mid:0\r\na=rtpmap:96 VP8/90000\r\n"}`

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestMigrate_BackfillsIndexes(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	keys := newKeyspace("test:")

	created := strconv.FormatInt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), 10)
	mr.HSet(keys.camera("c1"), fieldUserID, "owner", fieldIsOnline, "1", fieldLastSeen, created, fieldCreatedAt, created)
	mr.HSet(keys.session(domain.SessionRef{CameraID: "c1", SessionID: "s1"}),
		fieldStatus, "connected", fieldCreatedAt, created, fieldOffer, testOfferJSON)
	mr.HSet(keys.session(domain.SessionRef{CameraID: "c1", SessionID: "s2"}),
		fieldStatus, "bogus", fieldCreatedAt, created)
	_, err := mr.RPush(keys.candidates(domain.SessionRef{CameraID: "c1", SessionID: "s1"}), "{}")
	require.NoError(t, err)

	logger := zaptest.NewLogger(t).Sugar()
	require.NoError(t, Migrate(ctx, client, "test:", logger))

	version, err := client.Get(ctx, schemaVersionKey(keys)).Int()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)

	cameras, err := client.SMembers(ctx, keys.allCameras()).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, cameras, "child keys are not cameras")

	perCamera, err := client.ZRange(ctx, keys.cameraSessions("c1"), 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, perCamera, "sessions with an unknown status are not indexed")

	connected, err := client.ZRange(ctx, keys.statusSessions(domain.SessionConnected), 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"c1/s1"}, connected)

	require.NoError(t, Migrate(ctx, client, "test:", logger), "migrating twice is a no-op")
}

func TestRepositories_UndecodableDocuments(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	store := NewStore(client, "test:", 0, zaptest.NewLogger(t).Sugar())
	sessions := NewRedisSessionRepository(store)
	cameras := NewRedisCameraRepository(store)
	candidates := NewRedisCandidateRepository(store)
	keys := store.keys

	created := strconv.FormatInt(time.Now().UnixMilli(), 10)
	good := domain.SessionRef{CameraID: "c1", SessionID: "good"}
	bad := domain.SessionRef{CameraID: "c1", SessionID: "bad"}
	mr.HSet(keys.session(good), fieldStatus, "waiting", fieldCreatedAt, created, fieldOffer, testOfferJSON,
		fieldAnswer, `{"type":"answer","sdp":"garbage"}`)
	mr.HSet(keys.session(bad), fieldStatus, "waiting", fieldCreatedAt, created, fieldOffer, "not json")
	mr.ZAdd(keys.cameraSessions("c1"), 1, "good")
	mr.ZAdd(keys.cameraSessions("c1"), 2, "bad")

	sess, err := sessions.Get(ctx, good)
	require.NoError(t, err)
	assert.Nil(t, sess.Answer, "a malformed answer is dropped")
	assert.Equal(t, testSDP, sess.Offer.SDP)

	_, err = sessions.Get(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	listed, err := sessions.ListByCamera(ctx, "c1", domain.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, domain.SessionID("good"), listed[0].ID)

	mr.HSet(keys.camera("broken"), fieldIsOnline, "maybe")
	_, err = cameras.Get(ctx, "broken")
	assert.ErrorIs(t, err, domain.ErrCameraNotFound)

	_, err = mr.RPush(keys.candidates(good), "{not json", `{"candidate":"","sender":"camera"}`,
		`{"id":"x","candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host","sender":"camera"}`)
	require.NoError(t, err)
	list, err := candidates.List(ctx, good)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.CandidateID("x"), list[0].ID)
}

func TestStore_UsesServerClock(t *testing.T) {
	mr, client := setupRedis(t)
	serverTime := time.Date(2030, 6, 1, 8, 0, 0, 0, time.UTC)
	mr.SetTime(serverTime)

	store := NewStore(client, "test:", 0, nil)
	sessions := NewRedisSessionRepository(store)
	s := &domain.Session{
		ID:       "s1",
		CameraID: "c1",
		Status:   domain.SessionWaiting,
		Offer:    domain.Negotiation{Type: webrtc.SDPTypeOffer, SDP: testSDP},
	}
	require.NoError(t, sessions.Create(context.Background(), s))
	assert.True(t, serverTime.Equal(s.CreatedAt))
}

func TestIsTransportFailure(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()

	replyErr := client.Do(ctx, "NOSUCHCOMMAND").Err()
	require.Error(t, replyErr)

	assert.False(t, isTransportFailure(nil))
	assert.False(t, isTransportFailure(redis.Nil))
	assert.False(t, isTransportFailure(replyErr))
	assert.False(t, isTransportFailure(context.Canceled))
	assert.True(t, isTransportFailure(errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")))
}

func TestBreakerHook_OpensOnTransportFailures(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()

	cfg := circuitbreaker.DefaultConfig()
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Hour
	client.AddHook(newBreakerHook(cfg, zaptest.NewLogger(t).Sugar()))

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, client.Get(ctx, "missing").Err(), redis.Nil)
	}
	require.NoError(t, client.Set(ctx, "k", "v", 0).Err(), "nil replies do not trip the breaker")

	mr.Close()
	var err error
	for i := 0; i < 5; i++ {
		err = client.Get(ctx, "k").Err()
		if errors.Is(err, domain.ErrStoreUnavailable) {
			break
		}
	}
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Get(ctx, "k")
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
