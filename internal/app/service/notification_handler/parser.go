package notification_handler

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
)

type Topic string

const (
	TopicPreapproval       Topic = "preapproval"
	TopicAuthorizedPayment Topic = "authorized_payment"
	TopicPayment           Topic = "payment"
)

var topicAliases = map[string]Topic{
	"preapproval":                     TopicPreapproval,
	"subscription_preapproval":        TopicPreapproval,
	"authorized_payment":              TopicAuthorizedPayment,
	"subscription_authorized_payment": TopicAuthorizedPayment,
	"payment":                         TopicPayment,
}

// Event is an inbound webhook delivery, classified but not yet fetched.
type Event struct {
	// RawTopic is the topic as delivered; Topic is its canonical form, empty when unknown.
	RawTopic string
	Topic    Topic
	// EventID is the id of the subject (payment or preapproval) to fetch.
	EventID string
	Body    json.RawMessage
}

func (e *Event) Known() bool { return e.Topic != "" }

type payload struct {
	Type     string          `json:"type"`
	Topic    string          `json:"topic"`
	Resource json.RawMessage `json:"resource"`
	Data     struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// ParseEvent classifies a delivery from its query string and body. Bodies that
// are not JSON objects are tolerated; the query string alone can carry the event.
func ParseEvent(query url.Values, body []byte) *Event {
	var p payload
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 {
		_ = json.Unmarshal(trimmed, &p)
	}

	raw := firstNonEmpty(query.Get("topic"), query.Get("type"), p.Topic, p.Type)
	ev := &Event{
		RawTopic: raw,
		Topic:    topicAliases[strings.ToLower(strings.TrimSpace(raw))],
		EventID: firstNonEmpty(
			rawID(p.Data.ID),
			resourceID(rawID(p.Resource)),
			query.Get("data.id"),
			query.Get("data_id"),
			query.Get("id"),
		),
	}
	if json.Valid(trimmed) {
		ev.Body = json.RawMessage(trimmed)
	}
	return ev
}

// rawID reads an id sent either as a JSON string or number.
func rawID(b json.RawMessage) string {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		return n.String()
	}
	return ""
}

// resourceID accepts a bare id or a resource URL such as
// https://api.mercadopago.com/v1/payments/123, returning the last path segment.
func resourceID(resource string) string {
	if resource == "" {
		return ""
	}
	if u, err := url.Parse(resource); err == nil && u.Scheme != "" {
		resource = u.Path
	}
	resource = strings.TrimRight(resource, "/")
	if i := strings.LastIndex(resource, "/"); i >= 0 {
		resource = resource[i+1:]
	}
	return resource
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
