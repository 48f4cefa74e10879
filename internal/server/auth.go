package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/storefront/internal/account/domain"
	authdomain "github.com/smallbiznis/storefront/internal/auth/domain"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	"go.uber.org/zap"
)

const signInPath = "/auth/signin"

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyEmailRequest struct {
	Email string `json:"email"`
}

func (s *Server) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	account, err := s.accountsvc.Register(ctx, accountdomain.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	verificationSent := true
	if _, err := s.accountsvc.RequestVerification(ctx, account.Email); err != nil {
		verificationSent = false
		logger.FromContext(ctx).Warn("verification email after register failed",
			zap.String("account_id", account.ID.String()),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusCreated, gin.H{
		"account":           account,
		"verification_sent": verificationSent,
	})
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	result, err := s.authsvc.Login(ctx, authdomain.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.Token, result.ExpiresAt)
	logger.WithAccount(logger.FromContext(ctx), result.Identity.AccountID.String()).Info("login succeeded")

	c.JSON(http.StatusOK, gin.H{
		"account_id": result.Identity.AccountID.String(),
		"email":      result.Identity.Email,
		"token":      result.Token,
		"expires_at": result.ExpiresAt,
	})
}

func (s *Server) Logout(c *gin.Context) {
	s.sessions.Clear(c)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Me(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	account, err := s.accountsvc.GetByID(c.Request.Context(), identity.AccountID)
	if err != nil {
		if errors.Is(err, accountdomain.ErrNotFound) {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": account})
}

// RequestVerification answers the same way for unknown addresses.
func (s *Server) RequestVerification(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.accountsvc.RequestVerification(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, accountdomain.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"status": "sent"})
			return
		}
		AbortWithError(c, err)
		return
	}

	status := "sent"
	switch {
	case result.AlreadyVerified:
		status = "already_verified"
	case result.Throttled:
		status = "throttled"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// ConfirmVerification is opened from the email link, so outcomes are redirects.
func (s *Server) ConfirmVerification(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	token := strings.TrimSpace(c.Query("token"))

	err := s.accountsvc.ConfirmVerification(c.Request.Context(), email, token)
	switch {
	case err == nil:
		c.Redirect(http.StatusFound, s.siteURL(signInPath, url.Values{"verified": {"true"}}))
	case errors.Is(err, accountdomain.ErrVerificationExpired):
		c.Redirect(http.StatusFound, s.siteURL(signInPath, url.Values{"error": {"expired-verification"}}))
	case errors.Is(err, accountdomain.ErrInvalidVerification),
		errors.Is(err, accountdomain.ErrInvalidEmail),
		errors.Is(err, accountdomain.ErrNotFound):
		c.Redirect(http.StatusFound, s.siteURL(signInPath, url.Values{"error": {"invalid-verification"}}))
	default:
		AbortWithError(c, err)
	}
}

func (s *Server) siteURL(path string, query url.Values) string {
	target := strings.TrimRight(s.cfg.SiteURL, "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}
