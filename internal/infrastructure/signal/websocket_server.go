package signal

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/internal/core/services"
	"camrelay/internal/infrastructure/middleware"
	"camrelay/pkg/config"
	apperrors "camrelay/pkg/errors"
	"camrelay/pkg/feed"
	"camrelay/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Feed names a client can subscribe to.
const (
	FeedNewSessions       = "new_sessions"
	FeedConnectedSessions = "connected_sessions"
	FeedAnswer            = "answer"
	FeedSession           = "session"
	FeedCandidates        = "candidates"
	FeedCamera            = "camera"
	FeedPairedCameras     = "paired_cameras"
)

// The outbound buffer holds an initial snapshot for every subscription plus
// headroom; a client that still fills it is disconnected.
const (
	maxSubscriptionsPerConn = 32
	outboundBuffer          = 2 * maxSubscriptionsPerConn
)

// FeedRecorder tracks how many feeds are streamed at once.
type FeedRecorder interface {
	FeedOpened(feed string)
	FeedClosed(feed string)
}

// Services are the core services the feed server subscribes through.
type Services struct {
	Sessions   ports.SessionService
	Candidates ports.CandidateService
	Presence   ports.PresenceService
	Pairing    ports.PairingService
	Auth       services.AuthService
}

// ClientMessage is what apps send over the socket.
type ClientMessage struct {
	Type      string           `json:"type"`
	ID        string           `json:"id"`
	Feed      string           `json:"feed,omitempty"`
	CameraID  domain.CameraID  `json:"cameraId,omitempty"`
	SessionID domain.SessionID `json:"sessionId,omitempty"`
}

// ServerMessage carries either a full feed snapshot or an error for one
// subscription id.
type ServerMessage struct {
	Type    string      `json:"type"`
	ID      string      `json:"id,omitempty"`
	Feed    string      `json:"feed,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

// WebSocketServer streams live feed snapshots to camera and monitor apps.
// Every delivery is the full current result set; clients diff on their side.
type WebSocketServer struct {
	svc      Services
	upgrader websocket.Upgrader
	acquire  func() (func(), bool)
	metrics  FeedRecorder

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration
	maxMessage   int64
	msgRate      rate.Limit
	msgBurst     int

	mu    sync.Mutex
	conns map[*client]struct{}

	logger *zap.SugaredLogger
}

func NewWebSocketServer(svc Services, cfg *config.Config, metrics FeedRecorder, logger *zap.SugaredLogger) *WebSocketServer {
	s := &WebSocketServer{
		svc:          svc,
		acquire:      middleware.NewConnectionLimiter(cfg),
		metrics:      metrics,
		pingInterval: cfg.Signal.PingInterval,
		pongTimeout:  cfg.Signal.PongTimeout,
		writeTimeout: cfg.Signal.WriteTimeout,
		maxMessage:   cfg.RateLimiting.WebSocket.MaxMessageSizeBytes,
		msgRate:      rate.Inf,
		conns:        make(map[*client]struct{}),
		logger:       logger,
	}
	if cfg.RateLimiting.Enabled {
		s.msgRate = rate.Limit(cfg.RateLimiting.WebSocket.MessagesPerSecond)
		s.msgBurst = cfg.RateLimiting.WebSocket.Burst
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.Auth.AllowedOrigins),
	}
	return s
}

// originChecker admits requests without an Origin header (native apps) and
// browser origins on the allow list. "*" allows every origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ConnectionCount reports open sockets.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// HandleWebSocket must run behind middleware.AuthMiddleware.
func (s *WebSocketServer) HandleWebSocket(c *gin.Context) {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": string(apperrors.ErrCodeUnauthorized)})
		return
	}

	release, ok := s.acquire()
	if !ok {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "too many concurrent connections"})
		return
	}
	defer release()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	// The request context ends with the handler; feeds live as long as the socket.
	ctx, cancel := context.WithCancel(services.WithUserID(context.Background(), userID))
	cl := &client{
		server:  s,
		conn:    conn,
		userID:  userID,
		ctx:     ctx,
		cancel:  cancel,
		out:     make(chan ServerMessage, outboundBuffer),
		subs:    make(map[string]*subscription),
		limiter: rate.NewLimiter(s.msgRate, s.msgBurst),
	}

	s.mu.Lock()
	s.conns[cl] = struct{}{}
	s.mu.Unlock()
	s.logger.Infow("feed client connected", "user_id", userID, "remote", c.ClientIP())

	go cl.writeLoop()
	cl.readLoop()

	cl.close()
	s.mu.Lock()
	delete(s.conns, cl)
	s.mu.Unlock()
	s.logger.Infow("feed client disconnected", "user_id", userID)
}

type subscription struct {
	feed string
	sub  *feed.Subscription[interface{}]
}

type client struct {
	server  *WebSocketServer
	conn    *websocket.Conn
	userID  domain.UserID
	ctx     context.Context
	cancel  context.CancelFunc
	out     chan ServerMessage
	limiter *rate.Limiter

	mu   sync.Mutex
	subs map[string]*subscription
	wg   sync.WaitGroup
}

func (cl *client) readLoop() {
	s := cl.server
	if s.maxMessage > 0 {
		cl.conn.SetReadLimit(s.maxMessage)
	}
	_ = cl.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	})

	for {
		var msg ClientMessage
		if err := cl.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("error reading feed message", "user_id", cl.userID, "error", err)
			}
			return
		}
		_ = cl.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))

		if !cl.limiter.Allow() {
			cl.sendError(msg.ID, apperrors.NewRateLimitError())
			continue
		}
		cl.handle(msg)
	}
}

func (cl *client) writeLoop() {
	s := cl.server
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	defer cl.conn.Close()

	for {
		select {
		case msg := <-cl.out:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := cl.conn.WriteJSON(msg); err != nil {
				s.logger.Infow("error writing feed message", "user_id", cl.userID, "error", err)
				cl.cancel()
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.cancel()
				return
			}
		case <-cl.ctx.Done():
			_ = cl.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.writeTimeout))
			return
		}
	}
}

// send queues msg without blocking. A client that lets its outbound buffer
// fill cannot keep up with its feeds and is disconnected.
func (cl *client) send(msg ServerMessage) bool {
	if cl.ctx.Err() != nil {
		return false
	}
	select {
	case cl.out <- msg:
		return true
	default:
		cl.server.logger.Warnw("feed client too slow, disconnecting",
			"user_id", cl.userID,
			"buffered", len(cl.out),
		)
		cl.cancel()
		return false
	}
}

func (cl *client) sendError(id string, appErr *apperrors.AppError) {
	cl.send(ServerMessage{Type: "error", ID: id, Code: string(appErr.Code), Message: appErr.Message})
}

func (cl *client) handle(msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		if err := cl.subscribe(msg); err != nil {
			cl.sendError(msg.ID, apperrors.FromDomain(err))
		}
	case "unsubscribe":
		cl.unsubscribe(msg.ID)
	default:
		cl.sendError(msg.ID, apperrors.NewInvalidInputError(fmt.Sprintf("unknown message type %q", msg.Type)))
	}
}

func (cl *client) subscribe(msg ClientMessage) error {
	if msg.ID == "" {
		return apperrors.NewInvalidInputError("subscription id is required")
	}

	cl.mu.Lock()
	_, exists := cl.subs[msg.ID]
	count := len(cl.subs)
	cl.mu.Unlock()
	if exists {
		return apperrors.NewInvalidInputError("subscription id already in use")
	}
	if count >= maxSubscriptionsPerConn {
		return apperrors.NewInvalidInputError("too many subscriptions on one connection")
	}

	ctx, span := tracing.TraceFeed(cl.ctx, msg.Feed,
		tracing.UserIDKey.String(string(cl.userID)),
		tracing.CameraIDKey.String(string(msg.CameraID)),
		tracing.SessionIDKey.String(string(msg.SessionID)),
		attribute.String("feed.subscription", msg.ID),
	)
	defer span.End()

	sub, err := cl.open(ctx, msg)
	if err != nil {
		tracing.RecordError(ctx, err)
		return err
	}

	cl.mu.Lock()
	cl.subs[msg.ID] = &subscription{feed: msg.Feed, sub: sub}
	cl.mu.Unlock()

	if m := cl.server.metrics; m != nil {
		m.FeedOpened(msg.Feed)
	}

	cl.wg.Add(1)
	go cl.pump(msg.ID, msg.Feed, sub)
	return nil
}

// open checks access and starts the backend watch. Every feed is bound to
// cl.ctx so closing the socket releases it even if Cancel is never reached.
func (cl *client) open(ctx context.Context, msg ClientMessage) (*feed.Subscription[interface{}], error) {
	svc := cl.server.svc
	ref := domain.SessionRef{CameraID: msg.CameraID, SessionID: msg.SessionID}

	switch msg.Feed {
	case FeedNewSessions, FeedConnectedSessions:
		if err := svc.Auth.CheckCameraOwner(ctx, cl.userID, msg.CameraID); err != nil {
			return nil, err
		}
		watch := svc.Sessions.WatchNewSessions
		if msg.Feed == FeedConnectedSessions {
			watch = svc.Sessions.WatchConnectedSessions
		}
		sub, err := watch(cl.ctx, msg.CameraID)
		return erase(sub, err)

	case FeedAnswer:
		if err := svc.Auth.CheckSessionAccess(ctx, cl.userID, ref); err != nil {
			return nil, err
		}
		sub, err := svc.Sessions.WatchAnswer(cl.ctx, ref)
		return erase(sub, err)

	case FeedSession:
		if err := svc.Auth.CheckSessionAccess(ctx, cl.userID, ref); err != nil {
			return nil, err
		}
		sub, err := svc.Sessions.WatchSession(cl.ctx, ref)
		return erase(sub, err)

	case FeedCandidates:
		if err := svc.Auth.CheckSessionAccess(ctx, cl.userID, ref); err != nil {
			return nil, err
		}
		sub, err := svc.Candidates.Watch(cl.ctx, ref)
		return erase(sub, err)

	case FeedCamera:
		if err := svc.Auth.CheckCameraAccess(ctx, cl.userID, msg.CameraID); err != nil {
			return nil, err
		}
		sub, err := svc.Presence.Watch(cl.ctx, msg.CameraID)
		return erase(sub, err)

	case FeedPairedCameras:
		sub, err := svc.Pairing.WatchPairedCameras(cl.ctx, cl.userID)
		return erase(sub, err)
	}
	return nil, apperrors.NewInvalidInputError(fmt.Sprintf("unknown feed %q", msg.Feed))
}

func erase[T any](sub *feed.Subscription[T], err error) (*feed.Subscription[interface{}], error) {
	if err != nil {
		return nil, err
	}
	return feed.Map(sub, func(v T) interface{} { return v }), nil
}

func (cl *client) pump(id, name string, sub *feed.Subscription[interface{}]) {
	defer cl.wg.Done()
	defer func() {
		if m := cl.server.metrics; m != nil {
			m.FeedClosed(name)
		}
	}()

	for snapshot := range sub.C() {
		if !cl.send(ServerMessage{Type: "snapshot", ID: id, Feed: name, Data: snapshot}) {
			sub.Cancel()
			return
		}
	}
}

func (cl *client) unsubscribe(id string) {
	cl.mu.Lock()
	s, ok := cl.subs[id]
	delete(cl.subs, id)
	cl.mu.Unlock()
	if ok {
		s.sub.Cancel()
	}
}

// close cancels every feed and waits for the pumps to drain.
func (cl *client) close() {
	cl.cancel()

	cl.mu.Lock()
	subs := cl.subs
	cl.subs = make(map[string]*subscription)
	cl.mu.Unlock()

	for _, s := range subs {
		s.sub.Cancel()
	}
	cl.wg.Wait()
}
