package ports

import "context"

// EntityExtractor turns a raw inbound payload into named entities.
type EntityExtractor interface {
	Extract(ctx context.Context, raw any) (map[string]any, error)
}
