package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"attendance/internal/model"
	"attendance/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ctxEmployeeID = "employeeID"
	ctxRole       = "employeeRole"
)

// IssueToken mints an admin API token for employee.
func IssueToken(secret []byte, employee *model.Employee, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  employee.ID.String(),
		"role": string(employee.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates an HMAC-signed token and returns its claims.
func ParseToken(secret []byte, tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// RequireRole Middleware validates the bearer token and checks the role claim against allowedRoles
func RequireRole(secret []byte, allowedRoles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
			return
		}

		claims, err := ParseToken(secret, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token: "+err.Error()))
			return
		}

		role, _ := claims["role"].(string)
		roleAllowed := false
		for _, allowed := range allowedRoles {
			if model.Role(role) == allowed {
				roleAllowed = true
				break
			}
		}
		if !roleAllowed {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		sub, _ := claims["sub"].(string)
		employeeID, err := uuid.Parse(sub)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token subject"))
			return
		}

		c.Set(ctxEmployeeID, employeeID)
		c.Set(ctxRole, model.Role(role))
		c.Next()
	}
}

// CurrentEmployeeID returns the authenticated employee set by RequireRole.
func CurrentEmployeeID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ctxEmployeeID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// RequireCommandToken checks the verification token Mattermost sends with slash commands.
// An empty expected token disables the check.
func RequireCommandToken(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			c.Next()
			return
		}
		got := c.PostForm("token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "invalid command token"))
			return
		}
		c.Next()
	}
}

// ActionClaims is the signed payload of a chat button.
type ActionClaims struct {
	Action string `json:"act"`
	Value  string `json:"val,omitempty"`
	UserID string `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

// ErrActionUser means a button was clicked by someone it was not rendered for.
var ErrActionUser = errors.New("action token belongs to another user")

// ActionSigner signs and verifies button payloads.
type ActionSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewActionSigner(secret []byte, ttl time.Duration) *ActionSigner {
	return &ActionSigner{secret: secret, ttl: ttl}
}

func (s *ActionSigner) SignAction(action, value, userID string) (string, error) {
	claims := ActionClaims{
		Action: action,
		Value:  value,
		UserID: userID,
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(s.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyAction checks the signature and expiry, that the token was issued for action and,
// when it was bound to a user, that userID clicked it.
func (s *ActionSigner) VerifyAction(tokenString, action, userID string) (*ActionClaims, error) {
	var claims ActionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Action != action {
		return nil, fmt.Errorf("action token issued for %q, used for %q", claims.Action, action)
	}
	if claims.UserID != "" && claims.UserID != userID {
		return nil, ErrActionUser
	}
	return &claims, nil
}
