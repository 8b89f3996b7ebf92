package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/checkout"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sessionKey  = "session"
	identityKey = "identity"

	roleAdmin = "admin"
)

// Claims is the bearer token payload issued by the account service.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// identityMiddleware reads an optional bearer token. Requests without one
// continue as guests; a token that fails to verify is rejected.
func (g *Gateway) identityMiddleware() gin.HandlerFunc {
	secret := []byte(g.config.Auth.JWTSecret)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Set(identityKey, checkout.Identity{})
			c.Next()
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		claims := &Claims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid || claims.UserID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "invalid or expired token"})
			return
		}

		c.Set(identityKey, checkout.Identity{
			UserID: claims.UserID,
			Admin:  claims.Role == roleAdmin,
		})
		c.Next()
	}
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identity(c).Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "login required"})
			return
		}
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identity(c)
		if !id.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "login required"})
			return
		}
		if !id.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "staff only"})
			return
		}
		c.Next()
	}
}

// sessionMiddleware loads the browser session named by the cookie, or starts
// a new one. Handlers save it through reply; anything still dirty when the
// handler returns is saved here.
func (g *Gateway) sessionMiddleware() gin.HandlerFunc {
	cfg := g.config.Session

	return func(c *gin.Context) {
		var session *cart.Session
		if id, err := c.Cookie(cfg.CookieName); err == nil && id != "" {
			loaded, err := g.sessions.Load(c.Request.Context(), id)
			switch {
			case err == nil:
				session = loaded
			case errors.Is(err, cart.ErrSessionNotFound):
			default:
				g.logger.Warn("Failed to load session, starting a new one", zap.Error(err))
			}
		}
		if session == nil {
			session = cart.NewSession(uuid.NewString())
		}

		c.Set(sessionKey, session)
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.CookieName, session.ID, int(cfg.TTL.Seconds()), "/", "", cfg.Secure, true)

		c.Next()

		g.saveSession(c)
	}
}

func (g *Gateway) saveSession(c *gin.Context) {
	session := currentSession(c)
	if session == nil || !session.Dirty() {
		return
	}
	if err := g.sessions.Save(c.Request.Context(), session); err != nil {
		g.logger.Error("Failed to save session", zap.String("session_id", session.ID), zap.Error(err))
	}
}

func currentSession(c *gin.Context) *cart.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	return v.(*cart.Session)
}

func identity(c *gin.Context) checkout.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return checkout.Identity{}
	}
	return v.(checkout.Identity)
}

func viewer(c *gin.Context) checkout.Viewer {
	return checkout.Viewer{Identity: identity(c), Session: currentSession(c)}
}
