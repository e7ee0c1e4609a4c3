package brief

import (
	"context"
	"strings"

	"github.com/mtgprep/mtgprep/internal/config"
	"github.com/mtgprep/mtgprep/internal/hubspot"
	"github.com/mtgprep/mtgprep/internal/usage"
)

// CRMAddResult reports the outcome of AddToCRM.
type CRMAddResult struct {
	Success   bool   `json:"success"`
	ContactID string `json:"contact_id,omitempty"`
	Created   bool   `json:"created"`
	Message   string `json:"message"`
}

// AddToCRM creates a CRM contact for an attendee unless one already
// matches. A failed create is reported in the result, not as an error.
func (s *Service) AddToCRM(ctx context.Context, a AttendeeInput) (*CRMAddResult, error) {
	if s.deps.CRM == nil || !s.deps.CRM.Configured() {
		return nil, config.MissingError("hubspot.token")
	}
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return nil, invalid("attendee name is required")
	}

	id, created := s.deps.CRM.Create(ctx, hubspot.NewContact{
		Name:     name,
		Email:    a.Email,
		Title:    a.Title,
		Company:  a.Company,
		LinkedIn: a.LinkedIn,
	})

	res := &CRMAddResult{ContactID: id, Created: created}
	switch {
	case id == "":
		res.Message = "Failed to add " + name + " to HubSpot"
	case created:
		res.Success = true
		res.Message = "Added " + name + " to HubSpot"
	default:
		res.Success = true
		res.Message = name + " already exists in HubSpot"
	}

	s.record(ctx, usage.Event{
		Type: usage.EventCRMAdd,
		Data: map[string]any{
			"attendee_name": name,
			"company":       strings.TrimSpace(a.Company),
			"success":       res.Success,
			"created":       created,
			"contact_id":    id,
		},
	})
	return res, nil
}
