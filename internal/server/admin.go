package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	"go.uber.org/zap"
)

type deleteUsersRequest struct {
	Email string `json:"email"`
}

func (s *Server) ListUsers(c *gin.Context) {
	accounts, err := s.accountsvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": accounts})
}

// DeleteUsers removes one account by email, or every unverified account
// when no email is given.
func (s *Server) DeleteUsers(c *gin.Context) {
	var req deleteUsersRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	if email := strings.TrimSpace(c.Query("email")); email != "" {
		req.Email = email
	}

	ctx := c.Request.Context()
	if email := strings.TrimSpace(req.Email); email != "" {
		account, err := s.accountsvc.GetByEmail(ctx, email)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.accountsvc.DeleteByEmail(ctx, email); err != nil {
			AbortWithError(c, err)
			return
		}
		targetID := account.ID.String()
		s.audit(ctx, auditdomain.ActionAccountDeleted, &targetID, map[string]any{"email": account.Email})
		c.JSON(http.StatusOK, gin.H{"deleted": 1})
		return
	}

	deleted, err := s.accountsvc.DeleteUnverified(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.audit(ctx, auditdomain.ActionUnverifiedPurged, nil, map[string]any{"deleted": deleted})
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(strings.TrimSpace(c.Query("limit")))

	logs, err := s.auditsvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		Action: strings.TrimSpace(c.Query("action")),
		Limit:  limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"audit_logs": logs})
}

// audit records an admin action. A failed write never fails the request.
func (s *Server) audit(ctx context.Context, action string, targetID *string, metadata map[string]any) {
	if s.auditsvc == nil {
		return
	}
	if err := s.auditsvc.AuditLog(ctx, auditdomain.ActorTypeAdmin, action, auditdomain.TargetTypeAccount, targetID, metadata); err != nil {
		logger.FromContext(ctx).Warn("admin audit failed", zap.String("action", action), zap.Error(err))
	}
}
