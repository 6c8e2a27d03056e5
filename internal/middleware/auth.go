package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"tuition/internal/config"
)

const adminUserKey = "admin_user"

// AdminCredentials verifies the administrative caller's Basic credentials.
type AdminCredentials struct {
	username     string
	passwordHash []byte
}

// NewAdminCredentials builds credentials from config. A plaintext password is
// hashed once here so that every request goes through bcrypt.
func NewAdminCredentials(cfg config.AdminConfig) (*AdminCredentials, error) {
	hash := []byte(cfg.PasswordHash)
	if len(hash) == 0 {
		if cfg.Password == "" {
			return nil, fmt.Errorf("admin password is not configured")
		}
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("invalid admin password hash: %w", err)
	}

	return &AdminCredentials{username: cfg.Username, passwordHash: hash}, nil
}

// Verify reports whether username and password match.
func (a *AdminCredentials) Verify(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil
	return userOK && passOK
}

// AdminAuthMiddleware rejects requests without valid admin Basic credentials.
func AdminAuthMiddleware(creds *AdminCredentials, realm string) gin.HandlerFunc {
	challenge := `Basic realm="` + strings.NewReplacer("\r", "", "\n", "", `"`, "").Replace(strings.TrimSpace(realm)) + `"`

	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok || creds == nil || !creds.Verify(username, password) {
			c.Header("WWW-Authenticate", challenge)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		c.Set(adminUserKey, username)
		c.Next()
	}
}

// AdminUser returns the authenticated admin username, if any.
func AdminUser(c *gin.Context) string {
	return c.GetString(adminUserKey)
}
