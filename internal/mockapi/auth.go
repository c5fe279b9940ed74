package mockapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Context key for the authenticated user id.
const contextUserIDKey = "userID"

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// jwtClaims is the payload of both token kinds; Type distinguishes them so
// a refresh token cannot be replayed as an access token.
type jwtClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// issuePair mints an access/refresh pair for the user and registers the
// refresh token's jti as the one currently valid for rotation checks.
func (s *Server) issuePair(userID uuid.UUID) (access, refresh string, err error) {
	now := time.Now()

	accessClaims := &jwtClaims{
		Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	access, err = jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString([]byte(s.secret))
	if err != nil {
		return "", "", err
	}

	jti := uuid.NewString()
	refreshClaims := &jwtClaims{
		Type: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	refresh, err = jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString([]byte(s.secret))
	if err != nil {
		return "", "", err
	}

	s.mu.Lock()
	s.validRefresh[jti] = userID
	s.mu.Unlock()
	return access, refresh, nil
}

// parseToken validates signature and expiry and checks the token kind.
func (s *Server) parseToken(tokenString, wantType string) (*jwtClaims, error) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token or missing claims")
	}
	if claims.Type != wantType {
		return nil, fmt.Errorf("wrong token type %q", claims.Type)
	}
	return claims, nil
}

// authMiddleware validates the bearer access token and stores the user id
// in the request context.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithDetail(c, http.StatusUnauthorized, "Authorization header is missing")
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abortWithDetail(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		claims, err := s.parseToken(parts[1], tokenTypeAccess)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortWithDetail(c, http.StatusUnauthorized, "Token has expired")
			} else {
				abortWithDetail(c, http.StatusUnauthorized, "Invalid authentication credentials")
			}
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			abortWithDetail(c, http.StatusUnauthorized, "Invalid authentication credentials")
			return
		}
		c.Set(contextUserIDKey, userID)
		c.Next()
	}
}

func currentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(contextUserIDKey)
	if !exists {
		return uuid.Nil, errors.New("user id not found in context")
	}
	id, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("invalid user id type in context")
	}
	return id, nil
}

// handleLogin implements the OAuth2 password form flow: a form-encoded
// username/password exchanged for a token pair.
func (s *Server) handleLogin(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		abortWithDetail(c, http.StatusBadRequest, "username and password are required")
		return
	}

	s.mu.Lock()
	user := s.usersByEmail[username]
	s.mu.Unlock()
	if user == nil || bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		abortWithDetail(c, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	access, refresh, err := s.issuePair(user.ID)
	if err != nil {
		abortWithDetail(c, http.StatusInternalServerError, "could not issue tokens")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
	})
}

// handleRefresh exchanges a valid refresh token for a new pair. Refresh
// tokens rotate: the presented token's jti is consumed whether or not a new
// pair could be minted, so a replay of an old token always fails.
func (s *Server) handleRefresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusBadRequest, "Refresh token is required")
		return
	}

	claims, err := s.parseToken(req.RefreshToken, tokenTypeRefresh)
	if err != nil {
		abortWithDetail(c, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	s.mu.Lock()
	userID, valid := s.validRefresh[claims.ID]
	if valid {
		delete(s.validRefresh, claims.ID)
	}
	s.mu.Unlock()
	if !valid || userID.String() != claims.Subject {
		abortWithDetail(c, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	access, refresh, err := s.issuePair(userID)
	if err != nil {
		abortWithDetail(c, http.StatusInternalServerError, "could not issue tokens")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
	})
}

// handleMe returns the user behind the access token.
func (s *Server) handleMe(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		abortWithDetail(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.mu.Lock()
	user := s.usersByID[userID]
	s.mu.Unlock()
	if user == nil {
		abortWithDetail(c, http.StatusNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": user.ID, "email": user.Email})
}
