package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"vitalink/health-client/internal/domain"
)

// Typed wrappers over Call for every backend endpoint the client consumes.
// All of them inherit the pipeline's refresh-and-retry and error
// classification.

// User is the backend's current-user representation.
type User struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	Preferences map[string]any `json:"preferences,omitempty"`
}

// CurrentUser looks up the user behind the current session.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	raw, err := c.Call(ctx, http.MethodGet, "/auth/me", nil, nil, false)
	if err != nil {
		return nil, err
	}
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, &APIError{Status: http.StatusOK, Message: fmt.Sprintf("malformed user response: %v", err)}
	}
	return &user, nil
}

// --- Health metrics ---

// MetricFilter narrows a metric listing. Zero dates mean no bound; both
// bounds are inclusive.
type MetricFilter struct {
	Type      domain.MetricType
	StartDate domain.Date
	EndDate   domain.Date
	Skip      int
	Limit     int
}

// ListMetrics fetches metric records for a user, newest-first order is not
// guaranteed by the backend; the aggregation engine imposes its own order.
func (c *Client) ListMetrics(ctx context.Context, userID uuid.UUID, filter MetricFilter) ([]domain.MetricRecord, error) {
	if userID == uuid.Nil {
		return nil, &ValidationError{Field: "user_id", Message: "cannot be empty"}
	}
	query := url.Values{}
	if filter.Type != "" {
		query.Set("metric_type", string(filter.Type))
	}
	if !filter.StartDate.IsZero() {
		query.Set("start_date", filter.StartDate.String())
	}
	if !filter.EndDate.IsZero() {
		query.Set("end_date", filter.EndDate.String())
	}
	if filter.Skip > 0 {
		query.Set("skip", strconv.Itoa(filter.Skip))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	raw, err := c.Call(ctx, http.MethodGet, "/health-metrics/user/"+userID.String(), query, nil, false)
	if err != nil {
		return nil, err
	}
	var records []domain.MetricRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &APIError{Status: http.StatusOK, Message: fmt.Sprintf("malformed metrics response: %v", err)}
	}
	return records, nil
}

// MetricCreate is the payload for recording a new metric.
type MetricCreate struct {
	UserID     uuid.UUID         `json:"user_id"`
	Date       domain.Date       `json:"date"`
	MetricType domain.MetricType `json:"metric_type"`
	Value      any               `json:"value"`
	Source     string            `json:"source"`
}

// CreateMetric records a new health metric for the current user.
func (c *Client) CreateMetric(ctx context.Context, create MetricCreate) (*domain.MetricRecord, error) {
	raw, err := c.Call(ctx, http.MethodPost, "/health-metrics/", nil, create, false)
	if err != nil {
		return nil, err
	}
	var record domain.MetricRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, &APIError{Status: http.StatusOK, Message: fmt.Sprintf("malformed metric response: %v", err)}
	}
	return &record, nil
}

// --- Protocol catalog ---

// ListTemplates fetches the protocol catalog, optionally filtered by
// category.
func (c *Client) ListTemplates(ctx context.Context, category string) ([]domain.ProtocolTemplate, error) {
	query := url.Values{}
	if category != "" {
		query.Set("category", category)
	}
	raw, err := c.Call(ctx, http.MethodGet, "/protocols/templates", query, nil, false)
	if err != nil {
		return nil, err
	}
	var templates []domain.ProtocolTemplate
	if err := json.Unmarshal(raw, &templates); err != nil {
		return nil, &APIError{Status: http.StatusOK, Message: fmt.Sprintf("malformed templates response: %v", err)}
	}
	return templates, nil
}

// GetTemplate fetches one catalog entry with its full step detail.
func (c *Client) GetTemplate(ctx context.Context, templateID string) (*domain.ProtocolTemplate, error) {
	if templateID == "" {
		return nil, &ValidationError{Field: "template_id", Message: "cannot be empty"}
	}
	raw, err := c.Call(ctx, http.MethodGet, "/protocols/templates/"+url.PathEscape(templateID), nil, nil, false)
	if err != nil {
		return nil, err
	}
	var template domain.ProtocolTemplate
	if err := json.Unmarshal(raw, &template); err != nil {
		return nil, &APIError{Status: http.StatusOK, Message: fmt.Sprintf("malformed template response: %v", err)}
	}
	return &template, nil
}

// --- Protocol enrollments ---

// EnrollmentCreate is the payload for enrolling in a protocol. The
// descriptive fields are the snapshot copied from the template.
type EnrollmentCreate struct {
	Name             string      `json:"name"`
	Description      string      `json:"description,omitempty"`
	StartDate        domain.Date `json:"start_date,omitempty"`
	TargetMetrics    []string    `json:"target_metrics"`
	Steps            []string    `json:"steps,omitempty"`
	Recommendations  []string    `json:"recommendations,omitempty"`
	ExpectedOutcomes []string    `json:"expected_outcomes,omitempty"`
	Category         string      `json:"category,omitempty"`
	TemplateID       *string     `json:"template_id,omitempty"`
	DurationDays     *int        `json:"duration_days,omitempty"`
}

// CreateAndEnroll is the payload for defining an ad-hoc protocol and
// enrolling in it in one round trip.
type CreateAndEnroll struct {
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	DurationDays     int         `json:"duration_days"`
	TargetMetrics    []string    `json:"target_metrics"`
	Steps            []string    `json:"steps,omitempty"`
	Recommendations  []string    `json:"recommendations,omitempty"`
	ExpectedOutcomes []string    `json:"expected_outcomes,omitempty"`
	Category         string      `json:"category,omitempty"`
	StartDate        domain.Date `json:"start_date,omitempty"`
}

// ListEnrollments fetches the user's enrollments, optionally filtered by
// status.
func (c *Client) ListEnrollments(ctx context.Context, status domain.EnrollmentStatus) ([]domain.ProtocolEnrollment, error) {
	query := url.Values{}
	if status != "" {
		if !status.Valid() {
			return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
		}
		query.Set("status", string(status))
	}
	return c.enrollmentList(ctx, "/user-protocols/", query)
}

// ActiveEnrollments fetches only the enrollments still in the active state.
func (c *Client) ActiveEnrollments(ctx context.Context) ([]domain.ProtocolEnrollment, error) {
	return c.enrollmentList(ctx, "/user-protocols/active", nil)
}

func (c *Client) enrollmentList(ctx context.Context, path string, query url.Values) ([]domain.ProtocolEnrollment, error) {
	raw, err := c.Call(ctx, http.MethodGet, path, query, nil, false)
	if err != nil {
		return nil, err
	}
	var enrollments []domain.ProtocolEnrollment
	if err := json.Unmarshal(raw, &enrollments); err != nil {
		return nil, &APIError{Status: http.StatusOK, Message: fmt.Sprintf("malformed enrollments response: %v", err)}
	}
	return enrollments, nil
}

// GetEnrollment fetches one enrollment by id.
func (c *Client) GetEnrollment(ctx context.Context, id uuid.UUID) (*domain.ProtocolEnrollment, error) {
	raw, err := c.Call(ctx, http.MethodGet, "/user-protocols/"+id.String(), nil, nil, false)
	if err != nil {
		return nil, err
	}
	return decodeEnrollment(raw)
}

// Enroll creates an enrollment from a template snapshot.
func (c *Client) Enroll(ctx context.Context, create EnrollmentCreate) (*domain.ProtocolEnrollment, error) {
	if create.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "cannot be empty"}
	}
	raw, err := c.Call(ctx, http.MethodPost, "/user-protocols/enroll", nil, create, false)
	if err != nil {
		return nil, err
	}
	return decodeEnrollment(raw)
}

// CreateAndEnrollProtocol defines a custom protocol and enrolls the user in
// it atomically.
func (c *Client) CreateAndEnrollProtocol(ctx context.Context, create CreateAndEnroll) (*domain.ProtocolEnrollment, error) {
	if create.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "cannot be empty"}
	}
	if create.DurationDays < 0 {
		return nil, &ValidationError{Field: "duration_days", Message: "cannot be negative"}
	}
	raw, err := c.Call(ctx, http.MethodPost, "/user-protocols/create-and-enroll", nil, create, false)
	if err != nil {
		return nil, err
	}
	return decodeEnrollment(raw)
}

// UpdateEnrollmentStatus applies a lifecycle transition server-side and
// returns the updated entity.
func (c *Client) UpdateEnrollmentStatus(ctx context.Context, id uuid.UUID, status domain.EnrollmentStatus) (*domain.ProtocolEnrollment, error) {
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	payload := map[string]string{"status": string(status)}
	raw, err := c.Call(ctx, http.MethodPut, "/user-protocols/"+id.String()+"/status", nil, payload, false)
	if err != nil {
		return nil, err
	}
	return decodeEnrollment(raw)
}

// DeleteEnrollment removes an enrollment entirely.
func (c *Client) DeleteEnrollment(ctx context.Context, id uuid.UUID) error {
	_, err := c.Call(ctx, http.MethodDelete, "/user-protocols/"+id.String(), nil, nil, false)
	return err
}

func decodeEnrollment(raw json.RawMessage) (*domain.ProtocolEnrollment, error) {
	var enrollment domain.ProtocolEnrollment
	if err := json.Unmarshal(raw, &enrollment); err != nil {
		return nil, &APIError{Status: http.StatusOK, Message: fmt.Sprintf("malformed enrollment response: %v", err)}
	}
	return &enrollment, nil
}
