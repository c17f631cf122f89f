package validate

import (
	"fmt"
	"strings"

	"medroute/internal/model"
)

const minReassignReasonLen = 5

// Urgency markers only warn; dispatch decides how fast to act on them.
var urgentKeywords = []string{"breakdown", "failure", "accident", "emergency", "urgent"}

// Reassignment validates a manual move of one stop to a different vehicle:
// the vehicle must exist and be available, and the operator must give a
// non-trivial reason.
func Reassignment(stopID, newVehicleID string, vehicles []model.Vehicle, reason string) model.ValidationResult {
	res := model.ValidationResult{Errors: []string{}, Warnings: []string{}}

	if strings.TrimSpace(stopID) == "" {
		res.Errors = append(res.Errors, "a stop id is required")
	}

	var target *model.Vehicle
	for i := range vehicles {
		if vehicles[i].ID == newVehicleID {
			target = &vehicles[i]
			break
		}
	}
	if target == nil {
		res.Errors = append(res.Errors, fmt.Sprintf("vehicle %s not found", newVehicleID))
		return res
	}

	if !target.IsAvailable {
		res.Errors = append(res.Errors, fmt.Sprintf("vehicle %s is not available", newVehicleID))
	}

	if len(strings.TrimSpace(reason)) < minReassignReasonLen {
		res.Errors = append(res.Errors, fmt.Sprintf(
			"a reassignment reason of at least %d characters is required", minReassignReasonLen))
	}

	lower := strings.ToLower(reason)
	for _, kw := range urgentKeywords {
		if strings.Contains(lower, kw) {
			res.Warnings = append(res.Warnings,
				"reassignment flagged as urgent; confirm immediate vehicle availability")
			break
		}
	}

	res.IsValid = len(res.Errors) == 0
	return res
}
