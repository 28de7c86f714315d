package appointment

import "github.com/clinicops/clinic/internal/platform/apperr"

// transitions lists every permitted status change. completed, cancelled and
// no_show have no entry and are terminal.
var transitions = map[Status][]Status{
	StatusScheduled: {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

var knownStatuses = map[Status]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusCompleted: true,
	StatusCancelled: true, StatusNoShow: true,
}

// Transition returns requested if the move from current is allowed.
func Transition(current, requested Status) (Status, error) {
	if err := ValidateStatus(requested); err != nil {
		return current, err
	}
	for _, next := range transitions[current] {
		if next == requested {
			return requested, nil
		}
	}
	return current, &apperr.InvalidTransitionError{From: string(current), To: string(requested)}
}

func IsTerminal(s Status) bool {
	return knownStatuses[s] && len(transitions[s]) == 0
}

func ValidateStatus(s Status) error {
	if !knownStatuses[s] {
		return apperr.Validation("status", "invalid status: %s", s)
	}
	return nil
}
