package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-planner-api/internal/middleware"
	"github.com/noah-isme/course-planner-api/internal/models"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
	"github.com/noah-isme/course-planner-api/pkg/response"
)

type authService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.UserInfo, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.Session, error)
	Refresh(ctx context.Context, secret string, meta models.ClientMeta) (*models.Session, error)
	Logout(ctx context.Context, secret string) error
	Me(ctx context.Context, userID string) (*models.UserInfo, error)
}

// CookieConfig describes the refresh cookie.
type CookieConfig struct {
	Name   string
	Path   string
	Domain string
	Secure bool
}

// AuthHandler wires HTTP endpoints to the auth service. The refresh secret only travels in an
// httpOnly, path-scoped, SameSite=Lax cookie.
type AuthHandler struct {
	service authService
	cookie  CookieConfig
	now     func() time.Time
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, cookie CookieConfig) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "refresh_token"
	}
	if cookie.Path == "" {
		cookie.Path = "/api/auth"
	}
	return &AuthHandler{service: svc, cookie: cookie, now: time.Now}
}

// Register godoc
// @Summary Register account
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate by email and password. The refresh secret is set as an httpOnly cookie.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	session, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setRefreshCookie(c, session)
	response.Token(c, session.AccessToken, session)
}

// Refresh godoc
// @Summary Rotate refresh token
// @Description Exchange the refresh cookie for a new access token and a rotated cookie.
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	secret, _ := c.Cookie(h.cookie.Name)
	meta := models.ClientMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}

	session, err := h.service.Refresh(c.Request.Context(), secret, meta)
	if err != nil {
		h.clearRefreshCookie(c)
		response.Error(c, err)
		return
	}

	h.setRefreshCookie(c, session)
	response.Token(c, session.AccessToken, session)
}

// Logout godoc
// @Summary Logout current session
// @Description Revoke the refresh cookie's session and clear the cookie. Always succeeds for unknown sessions.
// @Tags Authentication
// @Success 204
// @Failure 500 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	secret, _ := c.Cookie(h.cookie.Name)
	err := h.service.Logout(c.Request.Context(), secret)
	h.clearRefreshCookie(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Me godoc
// @Summary Get current user
// @Description Returns the authenticated user's info
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID := userIDFromContext(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	info, err := h.service.Me(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims := middleware.Claims(c); claims != nil && info.Email == "" {
		info.Email = claims.Email
	}
	response.JSON(c, http.StatusOK, info, nil)
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, session *models.Session) {
	maxAge := int(session.RefreshExpiresAt.Sub(h.now()).Seconds())
	if maxAge <= 0 {
		maxAge = 1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, session.RefreshToken, maxAge, h.cookie.Path, h.cookie.Domain, h.cookie.Secure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, h.cookie.Path, h.cookie.Domain, h.cookie.Secure, true)
}
