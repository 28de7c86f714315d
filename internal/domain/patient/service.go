package patient

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic/internal/platform/apperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func validate(p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" {
		return apperr.Validation("first_name", "first_name is required")
	}
	if p.LastName == "" {
		return apperr.Validation("last_name", "last_name is required")
	}
	if p.PriorityLevel == "" {
		p.PriorityLevel = PriorityNormal
	}
	if !ValidPriorities[p.PriorityLevel] {
		return apperr.Validation("priority_level", "invalid priority_level: %s", p.PriorityLevel)
	}
	if p.VIPTier != nil && *p.VIPTier != "" && !ValidVIPTiers[*p.VIPTier] {
		return apperr.Validation("vip_tier", "invalid vip_tier: %s", *p.VIPTier)
	}
	if p.NextVisitTime != nil && *p.NextVisitTime != "" && !ValidClock(*p.NextVisitTime) {
		return apperr.Validation("next_visit_time", "next_visit_time must be HH:MM")
	}
	return nil
}

// ValidClock reports whether s is a 24-hour HH:MM time.
func ValidClock(s string) bool {
	if len(s) != 5 {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := validate(p); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if err := validate(p); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) SearchPatients(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.Search(ctx, strings.TrimSpace(query), limit, offset)
}

// Exists lets the ledger and scheduler check a patient reference.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.Exists(ctx, id)
}
