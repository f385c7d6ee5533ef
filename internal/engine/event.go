package engine

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ChangeEvent is one notification describing a single remote-object
// mutation, constructed from a raw queue record at receipt time and consumed
// once.
type ChangeEvent struct {
	Kind string // raw event name, e.g. "ObjectCreated:Put"
	Key  string // URL-decoded object key
	Size int64
	Time time.Time
}

// IsCreated reports whether the event is a creation or modification.
func (e ChangeEvent) IsCreated() bool {
	return strings.HasPrefix(e.Kind, "ObjectCreated")
}

// IsRemoved reports whether the event is a removal.
func (e ChangeEvent) IsRemoved() bool {
	return strings.HasPrefix(e.Kind, "ObjectRemoved")
}

type eventEnvelope struct {
	Records []eventRecord `json:"Records"`
}

type eventRecord struct {
	EventName string    `json:"eventName"`
	EventTime time.Time `json:"eventTime"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key  string `json:"key"`
			Size int64  `json:"size"`
			ETag string `json:"eTag"`
		} `json:"object"`
	} `json:"s3"`
}

// parseEvents decodes a queue message body into well-formed change events.
// A body that is not a valid envelope is an error; individual records that
// lack the expected structure or whose key cannot be decoded or has fewer
// than two path segments are dropped, and their count is returned so the
// caller can log them without failing the sibling records.
func parseEvents(body string) (events []ChangeEvent, dropped int, err error) {
	var envelope eventEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, 0, fmt.Errorf("unmarshal event envelope: %w", err)
	}

	for _, rec := range envelope.Records {
		if rec.EventName == "" || rec.S3.Object.Key == "" {
			dropped++
			continue
		}

		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			dropped++
			continue
		}

		// keys shallower than <category>/<subtype>/... are unparseable
		if len(strings.Split(key, "/")) < 2 {
			dropped++
			continue
		}

		events = append(events, ChangeEvent{
			Kind: rec.EventName,
			Key:  key,
			Size: rec.S3.Object.Size,
			Time: rec.EventTime,
		})
	}

	return events, dropped, nil
}
