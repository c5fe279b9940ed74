package mockapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vitalink/health-client/internal/domain"
)

// handleListTemplates returns the catalog, optionally filtered by category.
func (s *Server) handleListTemplates(c *gin.Context) {
	category := c.Query("category")
	out := make([]domain.ProtocolTemplate, 0, len(templateCatalog))
	for _, t := range templateCatalog {
		if category == "" || t.Category == category {
			out = append(out, t)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetTemplate(c *gin.Context) {
	template := findTemplate(c.Param("templateID"))
	if template == nil {
		abortWithDetail(c, http.StatusNotFound, "Protocol template not found")
		return
	}
	c.JSON(http.StatusOK, template)
}

// enrollmentRequest covers both the enroll and create-and-enroll payloads.
type enrollmentRequest struct {
	Name             string      `json:"name" binding:"required"`
	Description      string      `json:"description"`
	StartDate        domain.Date `json:"start_date"`
	TargetMetrics    []string    `json:"target_metrics"`
	Steps            []string    `json:"steps"`
	Recommendations  []string    `json:"recommendations"`
	ExpectedOutcomes []string    `json:"expected_outcomes"`
	Category         string      `json:"category"`
	TemplateID       *string     `json:"template_id"`
	DurationDays     *int        `json:"duration_days"`
}

func (s *Server) createEnrollment(c *gin.Context, req enrollmentRequest) {
	userID, err := currentUserID(c)
	if err != nil {
		abortWithDetail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if req.StartDate.IsZero() {
		req.StartDate = domain.Today()
	}
	now := time.Now()
	enrollment := &domain.ProtocolEnrollment{
		ID:               uuid.New(),
		UserID:           userID,
		TemplateID:       req.TemplateID,
		Name:             req.Name,
		Description:      req.Description,
		StartDate:        req.StartDate,
		Status:           domain.StatusActive,
		DurationDays:     req.DurationDays,
		TargetMetrics:    req.TargetMetrics,
		Steps:            req.Steps,
		Recommendations:  req.Recommendations,
		ExpectedOutcomes: req.ExpectedOutcomes,
		Category:         req.Category,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if enrollment.TargetMetrics == nil {
		enrollment.TargetMetrics = []string{}
	}

	s.mu.Lock()
	s.enrollments[enrollment.ID] = enrollment
	s.mu.Unlock()
	c.JSON(http.StatusOK, enrollment)
}

func (s *Server) handleEnroll(c *gin.Context) {
	var req enrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusUnprocessableEntity, "Invalid enrollment payload: "+err.Error())
		return
	}
	s.createEnrollment(c, req)
}

// handleCreateAndEnroll defines an ad-hoc protocol and enrolls the user in
// one round trip.
func (s *Server) handleCreateAndEnroll(c *gin.Context) {
	var req struct {
		enrollmentRequest
		DurationDays int `json:"duration_days"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusUnprocessableEntity, "Invalid protocol payload: "+err.Error())
		return
	}
	inner := req.enrollmentRequest
	if req.DurationDays > 0 {
		inner.DurationDays = &req.DurationDays
	}
	s.createEnrollment(c, inner)
}

func (s *Server) handleListEnrollments(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		abortWithDetail(c, http.StatusInternalServerError, err.Error())
		return
	}
	status := domain.EnrollmentStatus(c.Query("status"))

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ProtocolEnrollment, 0)
	for _, e := range s.enrollments {
		if e.UserID != userID {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		out = append(out, *e)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleActiveEnrollments(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		abortWithDetail(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ProtocolEnrollment, 0)
	for _, e := range s.enrollments {
		if e.UserID == userID && e.Status == domain.StatusActive {
			out = append(out, *e)
		}
	}
	c.JSON(http.StatusOK, out)
}

// findOwnedEnrollment resolves the :id param to an enrollment owned by the
// caller, writing the error response itself when that fails.
func (s *Server) findOwnedEnrollment(c *gin.Context) *domain.ProtocolEnrollment {
	userID, err := currentUserID(c)
	if err != nil {
		abortWithDetail(c, http.StatusInternalServerError, err.Error())
		return nil
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithDetail(c, http.StatusUnprocessableEntity, "Invalid enrollment id")
		return nil
	}
	s.mu.Lock()
	enrollment := s.enrollments[id]
	s.mu.Unlock()
	if enrollment == nil {
		abortWithDetail(c, http.StatusNotFound, "User protocol not found")
		return nil
	}
	if enrollment.UserID != userID {
		abortWithDetail(c, http.StatusForbidden, "Not authorized to access this protocol")
		return nil
	}
	return enrollment
}

func (s *Server) handleGetEnrollment(c *gin.Context) {
	enrollment := s.findOwnedEnrollment(c)
	if enrollment == nil {
		return
	}
	// Snapshot under the lock; a concurrent status update mutates the
	// shared entity.
	s.mu.Lock()
	snapshot := *enrollment
	s.mu.Unlock()
	c.JSON(http.StatusOK, snapshot)
}

// handleUpdateStatus applies a lifecycle transition. Only active
// enrollments may move, and only to a terminal status; leaving active sets
// the end date to today.
func (s *Server) handleUpdateStatus(c *gin.Context) {
	enrollment := s.findOwnedEnrollment(c)
	if enrollment == nil {
		return
	}
	var req struct {
		Status domain.EnrollmentStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusUnprocessableEntity, "Invalid status payload")
		return
	}
	if !req.Status.Valid() {
		abortWithDetail(c, http.StatusBadRequest, "Invalid status")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !enrollment.CanTransitionTo(req.Status) {
		abortWithDetail(c, http.StatusBadRequest, "Invalid status")
		return
	}
	today := domain.Today()
	enrollment.Status = req.Status
	enrollment.EndDate = &today
	enrollment.UpdatedAt = time.Now()
	c.JSON(http.StatusOK, enrollment)
}

func (s *Server) handleDeleteEnrollment(c *gin.Context) {
	enrollment := s.findOwnedEnrollment(c)
	if enrollment == nil {
		return
	}
	s.mu.Lock()
	delete(s.enrollments, enrollment.ID)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "User protocol deleted successfully"})
}
