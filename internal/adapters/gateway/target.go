package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/roster/internal/adapters/token"
	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/internal/domain/transform"
	"github.com/okian/roster/pkg/logger"
)

// subscriptionKeyHeader authenticates the API product subscription on the
// target platform, separate from the bearer token.
const subscriptionKeyHeader = "Bb-Api-Subscription-Key"

// Identity match field names accepted by WithMatchFields.
const (
	MatchEmail = "email"
	MatchName  = "name"
)

// TargetClient implements Target against the constituent-management
// platform's REST API.
type TargetClient struct {
	call        *caller
	matchFields []string
	logger      logger.Logger
}

// TargetOption applies a configuration option to the TargetClient.
type TargetOption func(*TargetClient)

// WithSubscriptionKey sets the API subscription key header.
func WithSubscriptionKey(key string) TargetOption {
	return func(c *TargetClient) {
		if key != "" {
			c.call.headers[subscriptionKeyHeader] = key
		}
	}
}

// WithMatchFields sets the ordered identity fields used to adopt existing
// constituents. Unknown names are ignored.
func WithMatchFields(fields []string) TargetOption {
	return func(c *TargetClient) {
		var valid []string
		for _, f := range fields {
			switch strings.ToLower(strings.TrimSpace(f)) {
			case MatchEmail:
				valid = append(valid, MatchEmail)
			case MatchName:
				valid = append(valid, MatchName)
			}
		}
		if len(valid) > 0 {
			c.matchFields = valid
		}
	}
}

// WithTargetHTTPClient replaces the HTTP client, mainly for tests.
func WithTargetHTTPClient(hc *http.Client) TargetOption {
	return func(c *TargetClient) {
		if hc != nil {
			c.call.hc = hc
		}
	}
}

// WithTargetLogger sets a custom logger.
func WithTargetLogger(l logger.Logger) TargetOption {
	return func(c *TargetClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewTarget creates a client for the target platform.
func NewTarget(baseURL string, tokens token.Provider, opts ...TargetOption) *TargetClient {
	c := &TargetClient{
		call:        newCaller(PlatformTarget, baseURL, tokens),
		matchFields: []string{MatchEmail, MatchName},
		logger:      logger.Get().Named("gateway"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// flexID tolerates the target platform returning ids as numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// Wire shapes for the target platform.
type targetCreated struct {
	ID flexID `json:"id"`
}

type targetSearchResult struct {
	Count int                 `json:"count"`
	Value []targetConstituent `json:"value"`
}

type targetConstituent struct {
	ID    flexID `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type targetEventPayload struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	Capacity    int    `json:"capacity,omitempty"`
}

type targetEmailPayload struct {
	Address string `json:"address"`
	Type    string `json:"type"`
	Primary bool   `json:"primary"`
}

type targetPhonePayload struct {
	Number  string `json:"number"`
	Type    string `json:"type"`
	Primary bool   `json:"primary"`
}

type targetConstituentPayload struct {
	Type  string              `json:"type"`
	First string              `json:"first"`
	Last  string              `json:"last"`
	Email *targetEmailPayload `json:"email,omitempty"`
	Phone *targetPhonePayload `json:"phone,omitempty"`
}

type targetRegistrationPayload struct {
	ConstituentID    string `json:"constituent_id"`
	RSVPStatus       string `json:"rsvp_status"`
	InvitationStatus string `json:"invitation_status"`
}

// CreateEvent implements Target.
func (c *TargetClient) CreateEvent(ctx context.Context, event model.EventRecord) (string, error) {
	if err := event.Validate(); err != nil {
		return "", err
	}

	payload := targetEventPayload{
		Name:        event.Name,
		Description: event.Description,
		Capacity:    event.Capacity,
	}
	if !event.StartsAt.IsZero() {
		payload.StartDate = event.StartsAt.Format(time.RFC3339)
	}
	if !event.EndsAt.IsZero() {
		payload.EndDate = event.EndsAt.Format(time.RFC3339)
	}

	var created targetCreated
	if err := c.call.doJSON(ctx, http.MethodPost, "/event/v1/events", nil, payload, &created); err != nil {
		return "", err
	}
	return string(created.ID), nil
}

// FindConstituent implements Target. Each configured match field issues a
// search and adopts only an exact match after normalization.
func (c *TargetClient) FindConstituent(ctx context.Context, identity model.Identity) (string, error) {
	for _, field := range c.matchFields {
		var searchText string
		switch field {
		case MatchEmail:
			searchText = transform.NormalizeEmail(identity.Email)
		case MatchName:
			searchText = identity.FullName()
		}
		if searchText == "" {
			continue
		}

		query := url.Values{"search_text": {searchText}}
		var result targetSearchResult
		if err := c.call.doJSON(ctx, http.MethodGet, "/constituent/v1/constituents/search", query, nil, &result); err != nil {
			return "", err
		}

		for _, candidate := range result.Value {
			if c.matches(field, identity, candidate) {
				return string(candidate.ID), nil
			}
		}
	}
	return "", ErrNotFound
}

// matches applies exact-equality on the given identity field. Full-text
// search can return near matches that must not be adopted.
func (c *TargetClient) matches(field string, identity model.Identity, candidate targetConstituent) bool {
	if candidate.ID == "" {
		return false
	}
	switch field {
	case MatchEmail:
		return transform.NormalizeEmail(candidate.Email) == transform.NormalizeEmail(identity.Email)
	case MatchName:
		return strings.EqualFold(candidate.Name, identity.FullName())
	}
	return false
}

// CreateConstituent implements Target.
func (c *TargetClient) CreateConstituent(ctx context.Context, identity model.Identity) (string, error) {
	payload := targetConstituentPayload{
		Type:  "Individual",
		First: identity.FirstName,
		Last:  identity.LastName,
	}
	if email := transform.NormalizeEmail(identity.Email); email != "" {
		payload.Email = &targetEmailPayload{Address: email, Type: "Email", Primary: true}
	}
	if phone, ok := transform.FormatPhone(identity.Phone); ok {
		payload.Phone = &targetPhonePayload{Number: phone, Type: "Home", Primary: true}
	}

	var created targetCreated
	if err := c.call.doJSON(ctx, http.MethodPost, "/constituent/v1/constituents", nil, payload, &created); err != nil {
		return "", err
	}
	return string(created.ID), nil
}

// RegisterParticipant implements Target.
func (c *TargetClient) RegisterParticipant(ctx context.Context, targetEventID, targetConstituentID, rsvpStatus string) error {
	payload := targetRegistrationPayload{
		ConstituentID:    targetConstituentID,
		RSVPStatus:       rsvpStatus,
		InvitationStatus: "Invited",
	}
	path := "/event/v1/events/" + url.PathEscape(targetEventID) + "/participants"
	return c.call.doJSON(ctx, http.MethodPost, path, nil, payload, nil)
}
