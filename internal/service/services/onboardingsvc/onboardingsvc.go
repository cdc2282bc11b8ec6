package onboardingsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/iaccountrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/icatalogrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/iregistrationrepo"
	"github.com/corray333/backend-labs/marketplace/internal/metrics"
	"github.com/corray333/backend-labs/marketplace/internal/service/idempotency"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/registration"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrRestaurantNotFound   = errors.New("restaurant not found")
	ErrApproverRequired     = errors.New("approver id is required")
)

// Outcome of a promotion.
type Outcome int

const (
	Promoted Outcome = iota + 1
	AlreadyPromoted
)

func (o Outcome) String() string {
	switch o {
	case Promoted:
		return "promoted"
	case AlreadyPromoted:
		return "already_promoted"
	default:
		return "unknown"
	}
}

// OnboardingService moves approved registrations into the live catalog.
type OnboardingService struct {
	registrations iregistrationrepo.IRegistrationRepository
	catalog       icatalogrepo.ICatalogRepository
	accounts      iaccountrepo.IAccountRepository
	now           func() time.Time
}

// option is a function that configures the OnboardingService.
type option func(*OnboardingService)

// MustNewOnboardingService creates a new OnboardingService.
func MustNewOnboardingService(opts ...option) *OnboardingService {
	s := &OnboardingService{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.registrations == nil || s.catalog == nil {
		panic("onboardingsvc: registration and catalog repositories are required")
	}

	return s
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithRegistrationRepository(repo iregistrationrepo.IRegistrationRepository) option {
	return func(s *OnboardingService) {
		s.registrations = repo
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithCatalogRepository(repo icatalogrepo.ICatalogRepository) option {
	return func(s *OnboardingService) {
		s.catalog = repo
	}
}

// WithAccountRepository enables the owner approval flag. Optional.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithAccountRepository(repo iaccountrepo.IAccountRepository) option {
	return func(s *OnboardingService) {
		s.accounts = repo
	}
}

// Register stores a new pending registration under a fresh id.
func (s *OnboardingService) Register(ctx context.Context, p registration.Pending) (*registration.Pending, error) {
	now := s.now()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.registrations.Create(ctx, p); err != nil {
		return nil, err
	}

	return &p, nil
}

// GetRegistration returns a pending registration.
func (s *OnboardingService) GetRegistration(ctx context.Context, id string) (*registration.Pending, error) {
	id, ok := normalizeID(id)
	if !ok {
		return nil, ErrRegistrationNotFound
	}

	p, err := s.registrations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrRegistrationNotFound
	}

	return p, nil
}

// GetRestaurant returns a live catalog entry.
func (s *OnboardingService) GetRestaurant(ctx context.Context, id string) (*registration.CatalogEntry, error) {
	id, ok := normalizeID(id)
	if !ok {
		return nil, ErrRestaurantNotFound
	}

	e, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrRestaurantNotFound
	}

	return e, nil
}

// Promote copies a pending registration into the catalog under the same id,
// exactly once. The pending row is deleted only after the catalog insert is
// confirmed, so a failed insert leaves it intact for the next attempt.
// Repeated calls return the live entry with AlreadyPromoted.
func (s *OnboardingService) Promote(
	ctx context.Context,
	pendingID, approverID string,
) (*registration.CatalogEntry, Outcome, error) {
	ctx, span := otel.Tracer("onboardingsvc").Start(ctx, "OnboardingService.Promote")
	defer span.End()

	if approverID == "" {
		return nil, 0, ErrApproverRequired
	}
	id, ok := normalizeID(pendingID)
	if !ok {
		return nil, 0, ErrRegistrationNotFound
	}
	span.SetAttributes(attribute.String("registration.id", id))

	pending, err := s.registrations.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}

	entry, created, err := idempotency.CreateIfAbsent(ctx, idempotency.Steps[registration.CatalogEntry]{
		Lookup: func(ctx context.Context) (registration.CatalogEntry, bool, error) {
			live, err := s.catalog.Get(ctx, id)
			if err != nil || live == nil {
				return registration.CatalogEntry{}, false, err
			}

			return *live, true, nil
		},
		Insert: func(ctx context.Context) (registration.CatalogEntry, error) {
			if pending == nil {
				return registration.CatalogEntry{}, ErrRegistrationNotFound
			}
			e := pending.Promote(approverID, s.now())

			return e, s.catalog.Insert(ctx, e)
		},
		IsDuplicate: idempotency.IsPgUniqueViolation,
	})
	if err != nil {
		if !errors.Is(err, ErrRegistrationNotFound) {
			metrics.PromotionTotal.WithLabelValues("error").Inc()
		}

		return nil, 0, err
	}

	outcome := Promoted
	if created == idempotency.AlreadyExists {
		outcome = AlreadyPromoted
	}
	metrics.PromotionTotal.WithLabelValues(outcome.String()).Inc()

	if pending != nil {
		if err := s.registrations.Delete(ctx, id); err != nil {
			return &entry, outcome, fmt.Errorf("promoted but pending registration kept: %w", err)
		}
	}

	s.approveOwner(ctx, entry)

	return &entry, outcome, nil
}

// approveOwner is best effort; the promotion stands either way.
func (s *OnboardingService) approveOwner(ctx context.Context, e registration.CatalogEntry) {
	if s.accounts == nil || e.OwnerAccountID == "" {
		return
	}

	if err := s.accounts.MarkApproved(ctx, e.OwnerAccountID, s.now()); err != nil {
		slog.Warn("Failed to mark owner account approved",
			"restaurant_id", e.ID,
			"account_id", e.OwnerAccountID,
			"error", err,
		)
	}
}

func normalizeID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}

	return parsed.String(), true
}
