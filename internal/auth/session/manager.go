package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"go.uber.org/fx"
)

const (
	DefaultCookieName = "_sid"
	bearerPrefix      = "bearer "
)

// Manager carries the signed session token between the storefront and the
// browser. API clients may send the same token as a bearer credential.
type Manager struct {
	cookieName string
	secure     bool
	clock      clock.Clock
}

type Params struct {
	fx.In

	Config config.Config
	Clock  clock.Clock `optional:"true"`
}

func New(p Params) *Manager {
	return NewManager(p.Config, p.Clock)
}

func NewManager(cfg config.Config, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.System()
	}
	return &Manager{
		cookieName: DefaultCookieName,
		secure:     cfg.AuthCookieSecure,
		clock:      clk,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

// ReadToken prefers the session cookie and falls back to the Authorization header.
func (m *Manager) ReadToken(c *gin.Context) (string, bool) {
	if token, err := c.Cookie(m.cookieName); err == nil {
		if token = strings.TrimSpace(token); token != "" {
			return token, true
		}
	}

	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

// Set writes the cookie so the browser drops it when the token expires.
func (m *Manager) Set(c *gin.Context, token string, expiresAt time.Time) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, token, m.maxAge(expiresAt), "/", "", m.secure, true)
}

func (m *Manager) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, "", -1, "/", "", m.secure, true)
}

func (m *Manager) maxAge(expiresAt time.Time) int {
	seconds := int(expiresAt.Sub(m.clock.Now()).Seconds())
	if seconds < 1 {
		// A zero MaxAge would turn the cookie into a browser-session cookie.
		return -1
	}
	return seconds
}
