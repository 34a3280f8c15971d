package services

import (
	"context"
	"errors"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrUnauthorized = errors.New("unauthorized")
)

// AuthService validates identity tokens issued by the identity provider and
// answers the access questions the HTTP layer asks before calling the core.
type AuthService interface {
	GenerateToken(userID domain.UserID) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	// CheckCameraOwner passes when userID registered the camera.
	CheckCameraOwner(ctx context.Context, userID domain.UserID, cameraID domain.CameraID) error
	// CheckCameraAccess passes for the owner and for users with an active link.
	CheckCameraAccess(ctx context.Context, userID domain.UserID, cameraID domain.CameraID) error
	// CheckSessionAccess passes for the camera owner and the session's monitor user.
	CheckSessionAccess(ctx context.Context, userID domain.UserID, ref domain.SessionRef) error
}

type Claims struct {
	UserID domain.UserID `json:"user_id"`
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecret      []byte
	issuer         string
	accessTokenTTL time.Duration
	cameras        ports.CameraRepository
	links          ports.LinkRepository
	sessions       ports.SessionRepository
}

func NewAuthService(
	jwtSecret string,
	issuer string,
	accessTokenTTL time.Duration,
	cameras ports.CameraRepository,
	links ports.LinkRepository,
	sessions ports.SessionRepository,
) AuthService {
	return &authService{
		jwtSecret:      []byte(jwtSecret),
		issuer:         issuer,
		accessTokenTTL: accessTokenTTL,
		cameras:        cameras,
		links:          links,
		sessions:       sessions,
	}
}

func (s *authService) GenerateToken(userID domain.UserID) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   string(userID),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) CheckCameraOwner(ctx context.Context, userID domain.UserID, cameraID domain.CameraID) error {
	camera, err := s.cameras.Get(ctx, cameraID)
	if err != nil {
		return err
	}
	if camera.OwnerUserID != userID {
		return domain.ErrPermissionDenied
	}
	return nil
}

func (s *authService) CheckCameraAccess(ctx context.Context, userID domain.UserID, cameraID domain.CameraID) error {
	err := s.CheckCameraOwner(ctx, userID, cameraID)
	if !errors.Is(err, domain.ErrPermissionDenied) {
		return err
	}

	link, err := s.links.Get(ctx, domain.NewLinkID(userID, cameraID))
	if errors.Is(err, domain.ErrLinkNotFound) {
		return domain.ErrPermissionDenied
	}
	if err != nil {
		return err
	}
	if !link.IsActive {
		return domain.ErrPermissionDenied
	}
	return nil
}

func (s *authService) CheckSessionAccess(ctx context.Context, userID domain.UserID, ref domain.SessionRef) error {
	err := s.CheckCameraOwner(ctx, userID, ref.CameraID)
	if !errors.Is(err, domain.ErrPermissionDenied) {
		return err
	}

	session, err := s.sessions.Get(ctx, ref)
	if err != nil {
		return err
	}
	if session.MonitorUserID != userID {
		return domain.ErrPermissionDenied
	}
	return nil
}

type userIDKey struct{}

// WithUserID stores the authenticated user on ctx.
func WithUserID(ctx context.Context, userID domain.UserID) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

func UserIDFromContext(ctx context.Context) (domain.UserID, error) {
	userID, ok := ctx.Value(userIDKey{}).(domain.UserID)
	if !ok || userID == "" {
		return "", ErrUnauthorized
	}
	return userID, nil
}
