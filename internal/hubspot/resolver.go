package hubspot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mtgprep/mtgprep/internal/config"
)

// API is the subset of the CRM client the resolver uses.
type API interface {
	Configured() bool
	Search(ctx context.Context, req SearchRequest) ([]Contact, error)
	CreateContact(ctx context.Context, properties map[string]string) (string, error)
}

// Resolver matches attendees to CRM contacts. Lookups through Find are
// best-effort: remote failures are logged and reported as no match.
type Resolver struct {
	api    API
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(api API, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{api: api, logger: logger.With("component", "crm")}
}

// Configured reports whether the CRM is reachable at all.
func (r *Resolver) Configured() bool {
	return r.api != nil && r.api.Configured()
}

func eq(prop, value string) Filter {
	return Filter{PropertyName: prop, Operator: OpEQ, Value: value}
}

// Find returns the existing contact for an attendee, or nil. Email is an
// exact match and wins when given. Otherwise name strategies are tried in
// order until one returns results: full name and company, full name only,
// then the first four letters of the first name with the exact last name.
func (r *Resolver) Find(ctx context.Context, name, email, company string) *Contact {
	if !r.Configured() {
		return nil
	}

	if email = strings.TrimSpace(email); email != "" {
		found, err := r.api.Search(ctx, SearchRequest{
			FilterGroups: []FilterGroup{{Filters: []Filter{eq("email", email)}}},
			Limit:        1,
		})
		if err != nil {
			r.logger.Warn("crm email lookup failed", "email", email, "error", err)
			return nil
		}
		if len(found) > 0 {
			return &found[0]
		}
		return nil
	}

	first, last := SplitName(name)
	if first == "" || last == "" {
		return nil
	}
	company = strings.TrimSpace(company)

	var strategies [][]Filter
	if company != "" {
		strategies = append(strategies, []Filter{eq("firstname", first), eq("lastname", last), eq("company", company)})
	}
	strategies = append(strategies, []Filter{eq("firstname", first), eq("lastname", last)})
	prefix := first
	if runes := []rune(first); len(runes) > 4 {
		prefix = string(runes[:4])
	}
	strategies = append(strategies, []Filter{
		{PropertyName: "firstname", Operator: OpContainsToken, Value: prefix + "*"},
		eq("lastname", last),
	})

	for i, filters := range strategies {
		found, err := r.api.Search(ctx, SearchRequest{
			FilterGroups: []FilterGroup{{Filters: filters}},
			Limit:        10,
		})
		if err != nil {
			r.logger.Warn("crm name lookup failed", "name", name, "strategy", i+1, "error", err)
			return nil
		}
		if len(found) == 0 {
			continue
		}
		r.logger.Debug("crm name match", "name", name, "strategy", i+1, "results", len(found))
		return pickByCompany(found, company)
	}
	return nil
}

// pickByCompany prefers a contact whose company contains, or is
// contained in, the requested company.
func pickByCompany(found []Contact, company string) *Contact {
	want := strings.ToLower(company)
	if want != "" {
		for i := range found {
			have := strings.ToLower(strings.TrimSpace(found[i].Company))
			if have == "" {
				continue
			}
			if strings.Contains(have, want) || strings.Contains(want, have) {
				return &found[i]
			}
		}
	}
	return &found[0]
}

// FetchByEmails returns at most one contact per distinct email. Emails
// are compared case-insensitively and blanks are skipped. Unlike Find,
// remote errors are returned.
func (r *Resolver) FetchByEmails(ctx context.Context, emails []string) ([]Contact, error) {
	if !r.Configured() {
		return nil, config.MissingError("hubspot.token")
	}

	seen := make(map[string]bool)
	var out []Contact
	for _, e := range emails {
		e = strings.TrimSpace(e)
		key := strings.ToLower(e)
		if e == "" || seen[key] {
			continue
		}
		seen[key] = true

		found, err := r.api.Search(ctx, SearchRequest{
			FilterGroups: []FilterGroup{{Filters: []Filter{eq("email", e)}}},
			Limit:        1,
		})
		if err != nil {
			return out, fmt.Errorf("crm lookup %s: %w", e, err)
		}
		if len(found) > 0 {
			out = append(out, found[0])
		}
	}
	return out, nil
}

// NewContact is the attendee data used to create a contact.
type NewContact struct {
	Name     string
	Email    string
	Title    string
	Company  string
	LinkedIn string
}

// Create adds a contact unless Find already matches one. It returns the
// contact id and whether a new record was created. Any failure yields
// an empty id.
func (r *Resolver) Create(ctx context.Context, a NewContact) (id string, created bool) {
	if !r.Configured() || strings.TrimSpace(a.Name) == "" {
		return "", false
	}

	if existing := r.Find(ctx, a.Name, a.Email, a.Company); existing != nil {
		return existing.ID, false
	}

	first, last := SplitName(a.Name)
	props := map[string]string{"firstname": first}
	set := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			props[k] = v
		}
	}
	set("lastname", last)
	set("email", a.Email)
	set("jobtitle", a.Title)
	set("company", a.Company)
	set("linkedin_url", a.LinkedIn)

	id, err := r.api.CreateContact(ctx, props)
	if err != nil {
		r.logger.Warn("crm create failed", "name", a.Name, "error", err)
		return "", false
	}
	r.logger.Info("crm contact created", "id", id, "name", a.Name)
	return id, true
}

// SplitName splits a full name at the first space.
func SplitName(full string) (first, last string) {
	full = strings.Join(strings.Fields(full), " ")
	first, last, _ = strings.Cut(full, " ")
	return first, last
}
