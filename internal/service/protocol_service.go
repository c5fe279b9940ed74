package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"vitalink/health-client/internal/client"
	"vitalink/health-client/internal/domain"
	"vitalink/health-client/internal/logging"
)

// --- Error Definitions ---
var (
	ErrAlreadyEnrolled    = errors.New("already enrolled in this protocol")
	ErrInvalidTransition  = errors.New("protocol status transition not allowed")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
)

// protocolAPI is what the protocol service needs from the request pipeline.
// *client.Client satisfies it; tests substitute a fake.
type protocolAPI interface {
	ListTemplates(ctx context.Context, category string) ([]domain.ProtocolTemplate, error)
	GetTemplate(ctx context.Context, templateID string) (*domain.ProtocolTemplate, error)
	ListEnrollments(ctx context.Context, status domain.EnrollmentStatus) ([]domain.ProtocolEnrollment, error)
	ActiveEnrollments(ctx context.Context) ([]domain.ProtocolEnrollment, error)
	GetEnrollment(ctx context.Context, id uuid.UUID) (*domain.ProtocolEnrollment, error)
	Enroll(ctx context.Context, create client.EnrollmentCreate) (*domain.ProtocolEnrollment, error)
	CreateAndEnrollProtocol(ctx context.Context, create client.CreateAndEnroll) (*domain.ProtocolEnrollment, error)
	UpdateEnrollmentStatus(ctx context.Context, id uuid.UUID, status domain.EnrollmentStatus) (*domain.ProtocolEnrollment, error)
	DeleteEnrollment(ctx context.Context, id uuid.UUID) error
}

// ProtocolService is the protocol lifecycle manager: enrollment CRUD, the
// active/completed/abandoned state machine, and the derived progress values
// screens display. Enrollments are server-owned; the service keeps a
// read-through cache of the active set, updated only when the backend
// confirms a change.
type ProtocolService interface {
	Templates(ctx context.Context, category string) ([]domain.ProtocolTemplate, error)
	Template(ctx context.Context, templateID string) (*domain.ProtocolTemplate, error)
	Enrollments(ctx context.Context, status domain.EnrollmentStatus) ([]domain.ProtocolEnrollment, error)
	Active(ctx context.Context) ([]domain.ProtocolEnrollment, error)
	// IsEnrolled tests membership of a template in the cached active set.
	// It is the duplicate-enrollment guard and makes no network call.
	IsEnrolled(templateID string) bool
	Enroll(ctx context.Context, templateID string, start domain.Date) (*domain.ProtocolEnrollment, error)
	CreateAndEnroll(ctx context.Context, def CustomProtocol) (*domain.ProtocolEnrollment, error)
	Complete(ctx context.Context, enrollmentID uuid.UUID) (*domain.ProtocolEnrollment, error)
	Abandon(ctx context.Context, enrollmentID uuid.UUID) (*domain.ProtocolEnrollment, error)
	Delete(ctx context.Context, enrollmentID uuid.UUID) error
}

// CustomProtocol is an ad-hoc protocol definition for users who want a
// program with no catalog template. Created and enrolled in one round trip.
type CustomProtocol struct {
	Name             string
	Description      string
	DurationDays     int
	TargetMetrics    []string
	Steps            []string
	Recommendations  []string
	ExpectedOutcomes []string
	Category         string
	StartDate        domain.Date
}

type protocolService struct {
	api protocolAPI
	log logging.Logger

	mu     sync.Mutex
	active []domain.ProtocolEnrollment
	loaded bool
}

// NewProtocolService creates the lifecycle manager on top of the pipeline.
func NewProtocolService(api protocolAPI, log logging.Logger) ProtocolService {
	return &protocolService{api: api, log: log}
}

func (s *protocolService) Templates(ctx context.Context, category string) ([]domain.ProtocolTemplate, error) {
	return s.api.ListTemplates(ctx, category)
}

func (s *protocolService) Template(ctx context.Context, templateID string) (*domain.ProtocolTemplate, error) {
	return s.api.GetTemplate(ctx, templateID)
}

func (s *protocolService) Enrollments(ctx context.Context, status domain.EnrollmentStatus) ([]domain.ProtocolEnrollment, error) {
	return s.api.ListEnrollments(ctx, status)
}

// Active fetches the active set from the backend and refreshes the cache.
// The cache holds its own copy; later cache updates never reach a slice a
// caller is still displaying.
func (s *protocolService) Active(ctx context.Context) ([]domain.ProtocolEnrollment, error) {
	active, err := s.api.ActiveEnrollments(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.active = append([]domain.ProtocolEnrollment(nil), active...)
	s.loaded = true
	s.mu.Unlock()
	return active, nil
}

func (s *protocolService) IsEnrolled(templateID string) bool {
	if templateID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.active {
		if e.Status == domain.StatusActive && e.TemplateID != nil && *e.TemplateID == templateID {
			return true
		}
	}
	return false
}

// Enroll enrolls the user in a catalog template. The template's descriptive
// fields are copied into the enrollment so it remains fully described even
// if the catalog entry later changes. Rejected locally when the template is
// already in the active set.
func (s *protocolService) Enroll(ctx context.Context, templateID string, start domain.Date) (*domain.ProtocolEnrollment, error) {
	if templateID == "" {
		return nil, &client.ValidationError{Field: "template_id", Message: "cannot be empty"}
	}
	if err := s.ensureActive(ctx); err != nil {
		return nil, err
	}
	if s.IsEnrolled(templateID) {
		return nil, ErrAlreadyEnrolled
	}

	template, err := s.api.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	create := client.EnrollmentCreate{
		Name:             template.Name,
		Description:      template.Description,
		StartDate:        start,
		TargetMetrics:    template.TargetMetrics,
		Steps:            template.Steps,
		Recommendations:  template.Recommendations,
		ExpectedOutcomes: template.ExpectedOutcomes,
		Category:         template.Category,
		TemplateID:       &template.ID,
		DurationDays:     template.DurationDays,
	}
	enrollment, err := s.api.Enroll(ctx, create)
	if err != nil {
		// No partial local mutation: the cache still reflects the last
		// confirmed backend state.
		return nil, err
	}

	s.cacheAdd(*enrollment)
	s.log.Infof("enrolled in protocol %q (%s)", enrollment.Name, enrollment.ID)
	return enrollment, nil
}

// CreateAndEnroll defines a custom protocol and enrolls atomically.
func (s *protocolService) CreateAndEnroll(ctx context.Context, def CustomProtocol) (*domain.ProtocolEnrollment, error) {
	if def.Name == "" {
		return nil, &client.ValidationError{Field: "name", Message: "cannot be empty"}
	}
	if def.DurationDays < 0 {
		return nil, &client.ValidationError{Field: "duration_days", Message: "cannot be negative"}
	}
	enrollment, err := s.api.CreateAndEnrollProtocol(ctx, client.CreateAndEnroll{
		Name:             def.Name,
		Description:      def.Description,
		DurationDays:     def.DurationDays,
		TargetMetrics:    def.TargetMetrics,
		Steps:            def.Steps,
		Recommendations:  def.Recommendations,
		ExpectedOutcomes: def.ExpectedOutcomes,
		Category:         def.Category,
		StartDate:        def.StartDate,
	})
	if err != nil {
		return nil, err
	}
	s.cacheAdd(*enrollment)
	s.log.Infof("created and enrolled in custom protocol %q (%s)", enrollment.Name, enrollment.ID)
	return enrollment, nil
}

// Complete transitions an active enrollment to completed.
func (s *protocolService) Complete(ctx context.Context, enrollmentID uuid.UUID) (*domain.ProtocolEnrollment, error) {
	return s.transition(ctx, enrollmentID, domain.StatusCompleted)
}

// Abandon transitions an active enrollment to abandoned.
func (s *protocolService) Abandon(ctx context.Context, enrollmentID uuid.UUID) (*domain.ProtocolEnrollment, error) {
	return s.transition(ctx, enrollmentID, domain.StatusAbandoned)
}

// transition applies a lifecycle change. The transition is validated
// against the known state first; the backend remains the authority and the
// local cache is touched only after it confirms.
func (s *protocolService) transition(ctx context.Context, enrollmentID uuid.UUID, next domain.EnrollmentStatus) (*domain.ProtocolEnrollment, error) {
	current, ok := s.cached(enrollmentID)
	if !ok {
		fetched, err := s.api.GetEnrollment(ctx, enrollmentID)
		if err != nil {
			return nil, err
		}
		current = *fetched
	}
	if !current.CanTransitionTo(next) {
		s.log.Warnf("rejected transition %s to %s for enrollment %s", current.Status, next, enrollmentID)
		return nil, ErrInvalidTransition
	}

	updated, err := s.api.UpdateEnrollmentStatus(ctx, enrollmentID, next)
	if err != nil {
		return nil, err
	}
	s.cacheRemove(enrollmentID)
	s.log.Infof("enrollment %s is now %s", enrollmentID, updated.Status)
	return updated, nil
}

func (s *protocolService) Delete(ctx context.Context, enrollmentID uuid.UUID) error {
	if err := s.api.DeleteEnrollment(ctx, enrollmentID); err != nil {
		return err
	}
	s.cacheRemove(enrollmentID)
	return nil
}

// --- Active-set cache ---

// ensureActive populates the cache on first use so the duplicate-enrollment
// guard has a set to consult before the enroll request goes out.
func (s *protocolService) ensureActive(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return nil
	}
	_, err := s.Active(ctx)
	return err
}

func (s *protocolService) cached(id uuid.UUID) (domain.ProtocolEnrollment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.active {
		if e.ID == id {
			return e, true
		}
	}
	return domain.ProtocolEnrollment{}, false
}

func (s *protocolService) cacheAdd(e domain.ProtocolEnrollment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = append(s.active, e)
}

func (s *protocolService) cacheRemove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.active[:0]
	for _, e := range s.active {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	s.active = kept
}
