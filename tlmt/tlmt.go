// Package tlmt defines the product telemetry sink used for page views and
// form submissions.
package tlmt

import (
	"context"
)

// Event names sent by the API
const (
	EventPageView             = "page_view"
	EventContactSubmitted     = "contact_submitted"
	EventNewsletterSubscribed = "newsletter_subscribed"
	EventApplicationSubmitted = "application_submitted"
)

type Event struct {
	Name       string
	DistinctID string
	Properties map[string]any
}

func NewEvent(name string, props map[string]any) Event {
	if props == nil {
		props = map[string]any{}
	}

	return Event{
		Name:       name,
		Properties: props,
	}
}

// WithDistinctID returns a copy of the event attributed to id
func (e Event) WithDistinctID(id string) Event {
	e.DistinctID = id
	return e
}

type Telemetry interface {
	Send(ctx context.Context, event Event) error
	Close() error
}
