// Package mockapi is an in-memory implementation of the backend HTTP API,
// used by cmd/mockserver for local development and by integration tests.
// It mirrors the real backend's routes, payload shapes and error envelope
// ({"detail": ...}), issues signed HS256 token pairs, and rotates refresh
// tokens so the client's refresh serialization can be exercised for real.
package mockapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"vitalink/health-client/internal/domain"
	"vitalink/health-client/internal/logging"
)

// Server holds the mock backend's state. All stores are in-memory and
// guarded by one mutex; this is a development fixture, not a database.
type Server struct {
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        logging.Logger

	mu           sync.Mutex
	usersByEmail map[string]*mockUser
	usersByID    map[uuid.UUID]*mockUser
	metrics      map[uuid.UUID][]domain.MetricRecord
	enrollments  map[uuid.UUID]*domain.ProtocolEnrollment
	// validRefresh maps a refresh token's jti to its user. Presenting a
	// refresh token consumes its jti: the previous token is invalid the
	// moment a new pair is issued.
	validRefresh map[string]uuid.UUID
}

type mockUser struct {
	ID           uuid.UUID
	Email        string
	PasswordHash []byte
}

// NewServer builds an empty mock backend.
func NewServer(secret string, accessTTL, refreshTTL time.Duration, log logging.Logger) *Server {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Server{
		secret:       secret,
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
		log:          log,
		usersByEmail: make(map[string]*mockUser),
		usersByID:    make(map[uuid.UUID]*mockUser),
		metrics:      make(map[uuid.UUID][]domain.MetricRecord),
		enrollments:  make(map[uuid.UUID]*domain.ProtocolEnrollment),
		validRefresh: make(map[string]uuid.UUID),
	}
}

// SeedUser registers a user the mock will accept at login.
func (s *Server) SeedUser(email, password string) (uuid.UUID, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, err
	}
	user := &mockUser{ID: uuid.New(), Email: email, PasswordHash: hash}
	s.mu.Lock()
	s.usersByEmail[email] = user
	s.usersByID[user.ID] = user
	s.mu.Unlock()
	return user.ID, nil
}

// SeedMetric injects a metric record directly, bypassing the API.
func (s *Server) SeedMetric(record domain.MetricRecord) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	s.mu.Lock()
	s.metrics[record.UserID] = append(s.metrics[record.UserID], record)
	s.mu.Unlock()
}

// Engine builds the gin engine with the full route table.
func (s *Server) Engine() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/login", s.handleLogin)
			authGroup.POST("/refresh", s.handleRefresh)
		}
	}

	protected := apiV1.Group("")
	protected.Use(s.authMiddleware())
	{
		protected.GET("/auth/me", s.handleMe)

		metricGroup := protected.Group("/health-metrics")
		{
			metricGroup.POST("/", s.handleCreateMetric)
			metricGroup.GET("/user/:userID", s.handleListMetrics)
		}

		protocolGroup := protected.Group("/protocols")
		{
			protocolGroup.GET("/templates", s.handleListTemplates)
			protocolGroup.GET("/templates/:templateID", s.handleGetTemplate)
		}

		enrollmentGroup := protected.Group("/user-protocols")
		{
			enrollmentGroup.GET("/", s.handleListEnrollments)
			enrollmentGroup.GET("/active", s.handleActiveEnrollments)
			enrollmentGroup.POST("/enroll", s.handleEnroll)
			enrollmentGroup.POST("/create-and-enroll", s.handleCreateAndEnroll)
			enrollmentGroup.GET("/:id", s.handleGetEnrollment)
			enrollmentGroup.PUT("/:id/status", s.handleUpdateStatus)
			enrollmentGroup.DELETE("/:id", s.handleDeleteEnrollment)
		}
	}

	return router
}

// abortWithDetail mirrors the backend's error envelope.
func abortWithDetail(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"detail": message})
}
