package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
)

type checkoutSessionRequest struct {
	PriceID string `json:"priceId"`
}

type legacyCheckoutRequest struct {
	Product string `json:"product"`
	Mode    string `json:"mode"`
}

func (s *Server) CreateCheckoutSession(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req checkoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	session, err := s.checkoutsvc.CreateSession(c.Request.Context(), checkoutdomain.SessionRequest{
		AccountID: identity.AccountID,
		PriceID:   req.PriceID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": session.URL, "id": session.ID})
}

// CreateLegacyCheckoutSession accepts an empty body and falls back to a one-off DIY purchase.
func (s *Server) CreateLegacyCheckoutSession(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req legacyCheckoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	session, err := s.checkoutsvc.CreateLegacySession(c.Request.Context(), checkoutdomain.LegacySessionRequest{
		AccountID: identity.AccountID,
		Email:     identity.Email,
		Product:   req.Product,
		Mode:      req.Mode,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": session.URL, "id": session.ID})
}
