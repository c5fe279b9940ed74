package mockapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vitalink/health-client/internal/domain"
)

// handleCreateMetric stores a new metric record for the current user.
func (s *Server) handleCreateMetric(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		abortWithDetail(c, http.StatusInternalServerError, err.Error())
		return
	}

	var req struct {
		UserID     uuid.UUID         `json:"user_id" binding:"required"`
		Date       domain.Date       `json:"date"`
		MetricType domain.MetricType `json:"metric_type" binding:"required"`
		Value      any               `json:"value"`
		Source     string            `json:"source"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusUnprocessableEntity, "Invalid metric payload: "+err.Error())
		return
	}
	if req.UserID != userID {
		abortWithDetail(c, http.StatusForbidden, "Not authorized to create metrics for other users")
		return
	}
	if !req.MetricType.Known() {
		abortWithDetail(c, http.StatusUnprocessableEntity,
			"Invalid metric type. Valid types are: sleep, activity, heart_rate, blood_pressure, weight, mood, calories, event")
		return
	}
	if req.Date.IsZero() {
		req.Date = domain.Today()
	}
	if req.Source == "" {
		req.Source = "manual"
	}

	record := domain.MetricRecord{
		ID:      uuid.New(),
		UserID:  userID,
		Date:    req.Date,
		Type:    req.MetricType,
		Payload: req.Value,
		Source:  req.Source,
	}
	s.mu.Lock()
	s.metrics[userID] = append(s.metrics[userID], record)
	s.mu.Unlock()

	c.JSON(http.StatusCreated, record)
}

// handleListMetrics lists a user's records with the backend's filters:
// metric_type, inclusive start_date/end_date, skip and limit.
func (s *Server) handleListMetrics(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		abortWithDetail(c, http.StatusInternalServerError, err.Error())
		return
	}
	pathID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		abortWithDetail(c, http.StatusUnprocessableEntity, "Invalid user id")
		return
	}
	if pathID != userID {
		abortWithDetail(c, http.StatusForbidden, "Not authorized to access metrics for other users")
		return
	}

	var startDate, endDate domain.Date
	if raw := c.Query("start_date"); raw != "" {
		if startDate, err = domain.ParseDate(raw); err != nil {
			abortWithDetail(c, http.StatusUnprocessableEntity, "Invalid start_date")
			return
		}
	}
	if raw := c.Query("end_date"); raw != "" {
		if endDate, err = domain.ParseDate(raw); err != nil {
			abortWithDetail(c, http.StatusUnprocessableEntity, "Invalid end_date")
			return
		}
	}
	metricType := domain.MetricType(c.Query("metric_type"))
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if skip < 0 {
		skip = 0
	}
	if limit < 0 {
		limit = 0
	}

	s.mu.Lock()
	all := append([]domain.MetricRecord(nil), s.metrics[userID]...)
	s.mu.Unlock()

	filtered := make([]domain.MetricRecord, 0, len(all))
	for _, record := range all {
		if metricType != "" && record.Type != metricType {
			continue
		}
		if !startDate.IsZero() && record.Date.Before(startDate) {
			continue
		}
		if !endDate.IsZero() && record.Date.After(endDate) {
			continue
		}
		filtered = append(filtered, record)
	}

	if skip > len(filtered) {
		skip = len(filtered)
	}
	filtered = filtered[skip:]
	if limit > 0 && limit < len(filtered) {
		filtered = filtered[:limit]
	}
	c.JSON(http.StatusOK, filtered)
}
