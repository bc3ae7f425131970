package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pollpilot/backend/internal/auth"
	"go.uber.org/zap"
)

type registerRequestPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profilePayload struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
}

type sessionResponsePayload struct {
	AccessToken string         `json:"access_token"`
	ExpiresIn   int64          `json:"expires_in"`
	TokenType   string         `json:"token_type"`
	User        profilePayload `json:"user"`
}

func profileToPayload(profile *auth.Profile) profilePayload {
	return profilePayload{
		ID:          profile.ID,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		Roles:       profile.RoleList(),
	}
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	if !h.admitByIP(c, "register") {
		return
	}

	var request registerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	profile, err := h.accounts.Register(c.Request.Context(), request.Name, request.Email, request.Password)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	h.issueSession(c, http.StatusCreated, profile)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	if !h.admitByIP(c, "login") {
		return
	}

	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	profile, err := h.accounts.Authenticate(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	h.issueSession(c, http.StatusOK, profile)
}

// handleLogout acknowledges sign-out. Sessions are stateless JWTs, so the
// server holds nothing to revoke; the client discards its token.
func (h *httpHandler) handleLogout(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleMe(c *gin.Context) {
	actor := currentActor(c)
	profile, err := h.accounts.GetProfile(c.Request.Context(), actor.ID)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profileToPayload(profile)})
}

func (h *httpHandler) issueSession(c *gin.Context, status int, profile *auth.Profile) {
	token, expiresIn, err := h.tokens.IssueSessionToken(profile.ID, profile.RoleList())
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	c.JSON(status, sessionResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		User:        profileToPayload(profile),
	})
}

// admitByIP applies the fixed-window limiter keyed by action and client IP.
// Returns false after writing the 429 response when the window is exhausted.
func (h *httpHandler) admitByIP(c *gin.Context, action string) bool {
	decision := h.limiter.Admit(action+":"+c.ClientIP(), h.loginLimit, h.loginWindow)
	if decision.Allowed {
		return true
	}
	retryAfter := int(time.Until(decision.ResetAt).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	return false
}
