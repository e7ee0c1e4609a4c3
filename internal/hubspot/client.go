// Package hubspot searches and creates contacts in the HubSpot CRM, and
// resolves meeting attendees to existing contact records.
package hubspot

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mtgprep/mtgprep/internal/apiclient"
)

// ContactProperties are requested on every search.
var ContactProperties = []string{
	"email", "firstname", "lastname", "jobtitle", "company",
	"lifecyclestage", "linkedin_url", "hs_object_id",
}

// Filter operators used by the resolver.
const (
	OpEQ            = "EQ"
	OpContainsToken = "CONTAINS_TOKEN"
)

// Filter is one property condition.
type Filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

// FilterGroup ANDs its filters; groups are ORed.
type FilterGroup struct {
	Filters []Filter `json:"filters"`
}

// SearchRequest is the body of a contact search.
type SearchRequest struct {
	FilterGroups []FilterGroup `json:"filterGroups"`
	Properties   []string      `json:"properties"`
	Limit        int           `json:"limit"`
}

// Contact is a CRM contact record.
type Contact struct {
	ID             string `json:"id"`
	Email          string `json:"email,omitempty"`
	FirstName      string `json:"firstname,omitempty"`
	LastName       string `json:"lastname,omitempty"`
	Title          string `json:"jobtitle,omitempty"`
	Company        string `json:"company,omitempty"`
	LifecycleStage string `json:"lifecyclestage,omitempty"`
	LinkedInURL    string `json:"linkedin_url,omitempty"`
}

// FullName joins first and last name.
func (c Contact) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

type searchResponse struct {
	Results []struct {
		ID         string            `json:"id"`
		Properties map[string]string `json:"properties"`
	} `json:"results"`
}

// Client is a HubSpot CRM v3 client.
type Client struct {
	api *apiclient.Client
}

// NewClient creates a CRM client. httpClient may be nil.
func NewClient(baseURL, token string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		api: apiclient.New(apiclient.Options{
			Service:    "hubspot",
			BaseURL:    baseURL,
			Token:      token,
			HTTPClient: httpClient,
			Logger:     logger,
		}),
	}
}

// Configured reports whether a token is set.
func (c *Client) Configured() bool {
	return c.api.Configured()
}

// Search runs a contact search.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]Contact, error) {
	if req.Properties == nil {
		req.Properties = ContactProperties
	}
	var out searchResponse
	err := c.api.Call(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/crm/v3/objects/contacts/search",
		Body:     req,
	}, &out)
	if err != nil {
		return nil, err
	}

	contacts := make([]Contact, 0, len(out.Results))
	for _, r := range out.Results {
		p := r.Properties
		id := r.ID
		if id == "" {
			id = p["hs_object_id"]
		}
		contacts = append(contacts, Contact{
			ID:             id,
			Email:          p["email"],
			FirstName:      p["firstname"],
			LastName:       p["lastname"],
			Title:          p["jobtitle"],
			Company:        p["company"],
			LifecycleStage: p["lifecyclestage"],
			LinkedInURL:    p["linkedin_url"],
		})
	}
	return contacts, nil
}

// CreateContact creates a contact and returns its id.
func (c *Client) CreateContact(ctx context.Context, properties map[string]string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := c.api.Call(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/crm/v3/objects/contacts",
		Body:     map[string]any{"properties": properties},
	}, &out)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}
