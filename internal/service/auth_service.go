package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/course-planner-api/internal/models"
	"github.com/noah-isme/course-planner-api/internal/repository"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
	"github.com/noah-isme/course-planner-api/pkg/events"
)

const refreshSecretBytes = 48

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type refreshTokenStore interface {
	FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	Create(ctx context.Context, token *models.RefreshToken) error
	Rotate(ctx context.Context, currentID string, next *models.RefreshToken, revokedAt time.Time) error
	RevokeByHash(ctx context.Context, hash string, revokedAt time.Time) (bool, error)
	RevokeAllActiveForUser(ctx context.Context, userID string, revokedAt time.Time) (int64, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
}

// AuthService issues access tokens and drives the refresh-token lifecycle. A refresh secret is
// handed out once and only its SHA-256 hash is stored. Presenting a secret whose row is already
// revoked is treated as theft and revokes every active session of the owner.
type AuthService struct {
	users     authUserRepository
	tokens    refreshTokenStore
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	events    events.Publisher
	metrics   *MetricsService
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserRepository, tokens refreshTokenStore, validate *validator.Validate, logger *zap.Logger, config AuthConfig, publisher events.Publisher, metrics *MetricsService) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &AuthService{
		users:     users,
		tokens:    tokens,
		validator: validate,
		logger:    logger,
		config:    config,
		events:    publisher,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an account with a bcrypt password hash.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.UserInfo, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{Email: req.Email, Username: req.Username, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.ErrEmailTaken
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return userInfo(user), nil
}

// Login verifies credentials and opens a new refresh session.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	secret, token, err := s.newRefreshToken(user.ID, models.ClientMeta{IP: req.IP, UserAgent: req.UserAgent})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	return s.session(user, secret, token.ExpiresAt)
}

// Refresh rotates a refresh secret. Every failure means the caller must drop its cookie.
func (s *AuthService) Refresh(ctx context.Context, secret string, meta models.ClientMeta) (*models.Session, error) {
	session, outcome, err := s.refresh(ctx, secret, meta)
	s.metrics.RecordRefresh(outcome)
	return session, err
}

func (s *AuthService) refresh(ctx context.Context, secret string, meta models.ClientMeta) (*models.Session, string, error) {
	if secret == "" {
		return nil, appErrors.ErrRefreshMissing.Code, appErrors.ErrRefreshMissing
	}

	stored, err := s.tokens.FindByHash(ctx, HashRefreshSecret(secret))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrRefreshMissing.Code, appErrors.ErrRefreshMissing
		}
		return nil, appErrors.ErrInternal.Code, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch refresh token")
	}

	now := s.now()
	switch stored.State(now) {
	case models.TokenRevoked:
		return nil, "REUSE_DETECTED", s.contain(ctx, stored)
	case models.TokenExpired:
		return nil, "EXPIRED", appErrors.ErrRefreshInvalid
	}

	user, err := s.users.FindByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrRefreshInvalid.Code, appErrors.ErrRefreshInvalid
		}
		return nil, appErrors.ErrInternal.Code, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	nextSecret, next, err := s.newRefreshToken(user.ID, meta)
	if err != nil {
		return nil, appErrors.ErrInternal.Code, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}
	if err := s.tokens.Rotate(ctx, stored.ID, next, now); err != nil {
		if errors.Is(err, repository.ErrTokenRevoked) {
			// Lost a race against another presentation of the same secret.
			return nil, "REUSE_DETECTED", s.contain(ctx, stored)
		}
		return nil, appErrors.ErrInternal.Code, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rotate refresh token")
	}

	session, err := s.session(user, nextSecret, next.ExpiresAt)
	if err != nil {
		return nil, appErrors.ErrInternal.Code, err
	}
	return session, "ROTATED", nil
}

// contain revokes every active session of the token owner and reports REFRESH_INVALID.
func (s *AuthService) contain(ctx context.Context, stored *models.RefreshToken) error {
	now := s.now()
	revoked, err := s.tokens.RevokeAllActiveForUser(ctx, stored.UserID, now)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke sessions after refresh reuse")
	}

	s.metrics.RecordReuseDetected()
	s.logger.Warn("refresh token reuse detected",
		zap.String("user_id", stored.UserID),
		zap.String("token_id", stored.ID),
		zap.Int64("revoked", revoked),
	)
	_ = s.events.Publish(ctx, events.New(events.TypeRefreshReuseDetected, events.RefreshReuseDetected{
		UserID:       stored.UserID,
		TokenID:      stored.ID,
		RevokedCount: revoked,
		DetectedAt:   now,
	}))
	return appErrors.ErrRefreshInvalid
}

// Logout revokes the session behind secret when it is still active. Unknown, expired or already
// revoked secrets are not an error.
func (s *AuthService) Logout(ctx context.Context, secret string) error {
	if secret == "" {
		return nil
	}
	if _, err := s.tokens.RevokeByHash(ctx, HashRefreshSecret(secret), s.now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke refresh token")
	}
	return nil
}

// Me returns the account behind an access token subject.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return userInfo(user), nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.AccessTokenSecret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrAccessInvalid.Code, appErrors.ErrAccessInvalid.Status, appErrors.ErrAccessInvalid.Message)
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID() == "" {
		return nil, appErrors.ErrAccessInvalid
	}
	return claims, nil
}

// HashRefreshSecret returns the stored form of a refresh secret.
func HashRefreshSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) session(user *models.User, refreshSecret string, refreshExpiresAt time.Time) (*models.Session, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	return &models.Session{
		AccessToken:      accessToken,
		TokenType:        "Bearer",
		ExpiresIn:        int64(s.config.AccessTokenExpiry.Seconds()),
		RefreshToken:     refreshSecret,
		RefreshExpiresAt: refreshExpiresAt,
		User:             userInfo(user),
	}, nil
}

func (s *AuthService) newRefreshToken(userID string, meta models.ClientMeta) (string, *models.RefreshToken, error) {
	secret, err := generateRefreshSecret()
	if err != nil {
		return "", nil, err
	}
	now := s.now()
	return secret, &models.RefreshToken{
		UserID:    userID,
		TokenHash: HashRefreshSecret(secret),
		ExpiresAt: now.Add(s.config.RefreshTokenExpiry),
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	issuedAt := s.now()
	claims := &models.JWTClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func generateRefreshSecret() (string, error) {
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func userInfo(user *models.User) *models.UserInfo {
	return &models.UserInfo{ID: user.ID, Email: user.Email, Username: user.Username}
}
