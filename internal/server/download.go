package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Download redirects to a short-lived signed URL for the asset.
func (s *Server) Download(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	assetID, err := parseID(c.Param("assetId"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	link, err := s.downloadsvc.Authorize(c.Request.Context(), identity.AccountID, assetID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, link.URL)
}
