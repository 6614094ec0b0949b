package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/roster/internal/adapters/token"
	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/pkg/logger"
)

// SourceClient implements Source against the events platform's REST API.
type SourceClient struct {
	call     *caller
	pageSize int
	logger   logger.Logger
}

// SourceOption applies a configuration option to the SourceClient.
type SourceOption func(*SourceClient)

// WithSourcePageSize bounds page fetches.
func WithSourcePageSize(size int) SourceOption {
	return func(c *SourceClient) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithSourceHTTPClient replaces the HTTP client, mainly for tests.
func WithSourceHTTPClient(hc *http.Client) SourceOption {
	return func(c *SourceClient) {
		if hc != nil {
			c.call.hc = hc
		}
	}
}

// WithSourceLogger sets a custom logger.
func WithSourceLogger(l logger.Logger) SourceOption {
	return func(c *SourceClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewSource creates a client for the source platform.
func NewSource(baseURL string, tokens token.Provider, opts ...SourceOption) *SourceClient {
	c := &SourceClient{
		call:     newCaller(PlatformSource, baseURL, tokens),
		pageSize: defaultPageSize,
		logger:   logger.Get().Named("gateway"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wire shapes for the source platform's paginated envelopes.
type sourcePage[T any] struct {
	Results  []T            `json:"Results"`
	PageInfo sourcePageInfo `json:"PageInfo"`
}

type sourcePageInfo struct {
	TotalRecords int `json:"TotalRecords"`
	Page         int `json:"Page"`
	PageSize     int `json:"PageSize"`
}

type sourceEvent struct {
	EventID         string `json:"EventId"`
	Name            string `json:"Name"`
	Description     string `json:"Description"`
	StartDate       string `json:"StartDate"`
	EndDate         string `json:"EndDate"`
	MaxParticipants int    `json:"MaxParticipants"`
}

type sourceParticipant struct {
	UserID             string `json:"UserId"`
	FirstName          string `json:"FirstName"`
	LastName           string `json:"LastName"`
	Email              string `json:"Email"`
	Phone              string `json:"Phone"`
	RegistrationStatus string `json:"RegistrationStatus"`
}

// ListEvents implements Source.
func (c *SourceClient) ListEvents(ctx context.Context) ([]model.EventRecord, error) {
	rows, err := listPages[sourceEvent](ctx, c, "/v1/events")
	if err != nil {
		return nil, err
	}

	events := make([]model.EventRecord, 0, len(rows))
	for _, row := range rows {
		events = append(events, model.EventRecord{
			ID:          row.EventID,
			Name:        row.Name,
			Description: row.Description,
			StartsAt:    c.parseDate(ctx, row.EventID, row.StartDate),
			EndsAt:      c.parseDate(ctx, row.EventID, row.EndDate),
			Capacity:    row.MaxParticipants,
		})
	}
	return events, nil
}

// ListParticipants implements Source.
func (c *SourceClient) ListParticipants(ctx context.Context, sourceEventID string) ([]model.ParticipantRecord, error) {
	rows, err := listPages[sourceParticipant](ctx, c, "/v1/events/"+url.PathEscape(sourceEventID)+"/participants")
	if err != nil {
		return nil, err
	}

	participants := make([]model.ParticipantRecord, 0, len(rows))
	for _, row := range rows {
		participants = append(participants, row.toRecord())
	}
	return participants, nil
}

// MemberDetails implements Source.
func (c *SourceClient) MemberDetails(ctx context.Context, memberID string) (model.ParticipantRecord, error) {
	var row sourceParticipant
	if err := c.call.doJSON(ctx, http.MethodGet, "/v1/members/"+url.PathEscape(memberID), nil, nil, &row); err != nil {
		return model.ParticipantRecord{}, err
	}
	rec := row.toRecord()
	if rec.MemberID == "" {
		rec.MemberID = memberID
	}
	return rec, nil
}

func (p sourceParticipant) toRecord() model.ParticipantRecord {
	return model.ParticipantRecord{
		MemberID:  p.UserID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Phone:     p.Phone,
		Status:    p.RegistrationStatus,
	}
}

// listPages drains a paginated collection in source order. The loop stops
// on an empty or short page, or once the reported total is reached.
func listPages[T any](ctx context.Context, c *SourceClient, path string) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		query := url.Values{
			"page":     {strconv.Itoa(page)},
			"pageSize": {strconv.Itoa(c.pageSize)},
		}
		var envelope sourcePage[T]
		if err := c.call.doJSON(ctx, http.MethodGet, path, query, nil, &envelope); err != nil {
			return nil, err
		}

		all = append(all, envelope.Results...)
		total := envelope.PageInfo.TotalRecords
		if len(envelope.Results) == 0 || len(envelope.Results) < c.pageSize {
			break
		}
		if total > 0 && len(all) >= total {
			break
		}
	}
	return all, nil
}

// parseDate tolerates malformed timestamps; a bad date costs a field, not
// the record.
func (c *SourceClient) parseDate(ctx context.Context, eventID, value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		c.logger.Warn(ctx, "unparseable event date",
			logger.String("source_event_id", eventID),
			logger.String("value", value),
		)
		return time.Time{}
	}
	return t
}
