package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic/pkg/civil"
)

// Patient is the identity record the ledger, scheduler and clinical records
// hang off. Priority and VIP tier are display metadata only.
type Patient struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	FirstName     string     `db:"first_name" json:"first_name"`
	LastName      string     `db:"last_name" json:"last_name"`
	Phone         *string    `db:"phone" json:"phone,omitempty"`
	Email         *string    `db:"email" json:"email,omitempty"`
	DateOfBirth   civil.Date `db:"date_of_birth" json:"date_of_birth"`
	PriorityLevel string     `db:"priority_level" json:"priority_level"`
	VIPTier       *string    `db:"vip_tier" json:"vip_tier,omitempty"`
	NextVisitDate civil.Date `db:"next_visit_date" json:"next_visit_date"`
	NextVisitTime *string    `db:"next_visit_time" json:"next_visit_time,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var ValidPriorities = map[string]bool{
	PriorityNormal: true, PriorityHigh: true, PriorityUrgent: true,
}

var ValidVIPTiers = map[string]bool{
	"silver": true, "gold": true, "platinum": true,
}
