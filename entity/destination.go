package entity

import (
	"fmt"
	"strings"
)

// SinkKind selects the writer a destination is delivered through
type SinkKind int

const (
	SinkKindObjectStore SinkKind = iota + 1
	SinkKindEventStream
)

const (
	DestinationPrefixBlob     = "blob:"
	DestinationPrefixEventHub = "eventhub:"
)

func (k SinkKind) String() string {
	switch k {
	case SinkKindObjectStore:
		return "object_store"
	case SinkKindEventStream:
		return "event_stream"
	}
	return "unknown"
}

// Destination is the parsed form of "blob:<container>/<path>" or "eventhub:<name>".
// Container and Path are set for object stores, Stream for event streams.
type Destination struct {
	Kind      SinkKind
	Raw       string
	Container string
	Path      string
	Stream    string
}

func ParseDestination(raw string) (Destination, error) {
	switch {
	case strings.HasPrefix(raw, DestinationPrefixBlob):
		containerPath := strings.Trim(strings.TrimPrefix(raw, DestinationPrefixBlob), "/")
		parts := strings.SplitN(containerPath, "/", 2)
		if parts[0] == "" {
			return Destination{}, &ValidationError{Field: "destination", Message: "blob destination requires a container"}
		}
		dest := Destination{Kind: SinkKindObjectStore, Raw: raw, Container: parts[0]}
		if len(parts) > 1 {
			dest.Path = parts[1]
		}
		return dest, nil

	case strings.HasPrefix(raw, DestinationPrefixEventHub):
		name := strings.TrimSpace(strings.TrimPrefix(raw, DestinationPrefixEventHub))
		if name == "" {
			return Destination{}, &ValidationError{Field: "destination", Message: "eventhub destination requires a name"}
		}
		return Destination{Kind: SinkKindEventStream, Raw: raw, Stream: name}, nil
	}

	return Destination{}, &ValidationError{
		Field:   "destination",
		Message: fmt.Sprintf("destination must start with %q or %q", DestinationPrefixBlob, DestinationPrefixEventHub),
	}
}
