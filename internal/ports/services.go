package ports

import "context"

// Publisher fans a message out to downstream consumers.
type Publisher interface {
	PublishJSON(ctx context.Context, v any) error
}
