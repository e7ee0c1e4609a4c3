package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mtgprep/mtgprep/internal/hubspot"
)

// ContactFinder looks up an existing CRM contact.
type ContactFinder interface {
	Configured() bool
	Find(ctx context.Context, name, email, company string) *hubspot.Contact
}

// contactResult is the JSON shape returned to the model.
type contactResult struct {
	Found          bool   `json:"found"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Title          string `json:"title,omitempty"`
	Company        string `json:"company,omitempty"`
	LifecycleStage string `json:"lifecycle_stage,omitempty"`
	LinkedIn       string `json:"linkedin,omitempty"`
}

func formatContact(c *hubspot.Contact) (string, error) {
	res := contactResult{}
	if c != nil {
		res = contactResult{
			Found:          true,
			Name:           c.FullName(),
			Email:          c.Email,
			Title:          c.Title,
			Company:        c.Company,
			LifecycleStage: c.LifecycleStage,
			LinkedIn:       c.LinkedInURL,
		}
	}
	out, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("failed to serialize contact: %w", err)
	}
	return string(out), nil
}

// RegisterCRM adds the crm_lookup_name and crm_lookup_email tools. They
// are skipped when the CRM is not configured.
func (r *Registry) RegisterCRM(crm ContactFinder) {
	if crm == nil || !crm.Configured() {
		return
	}

	r.Register(&Tool{
		Name:        "crm_lookup_name",
		Description: "Look up a person in HubSpot by full name, optionally narrowed by company. Returns title, company, lifecycle stage and LinkedIn URL when found.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Full name, first and last",
				},
				"company": map[string]any{
					"type":        "string",
					"description": "Company name to prefer when several contacts match",
				},
			},
			"required": []string{"name"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name, _ := args["name"].(string)
			company, _ := args["company"].(string)
			if strings.TrimSpace(name) == "" {
				return "", fmt.Errorf("name is required")
			}
			return formatContact(crm.Find(ctx, name, "", company))
		},
	})

	r.Register(&Tool{
		Name:        "crm_lookup_email",
		Description: "Look up a person in HubSpot by exact email address.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"email": map[string]any{
					"type":        "string",
					"description": "Email address",
				},
			},
			"required": []string{"email"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			email, _ := args["email"].(string)
			if !strings.Contains(email, "@") {
				return "", fmt.Errorf("a valid email is required")
			}
			return formatContact(crm.Find(ctx, "", email, ""))
		},
	})
}
