package history

import (
	"context"

	"github.com/winnowlabs/winnow/internal/message"
)

// PrepareContextHook allows callers to mutate the prepared message list
// right after pruning and before it is sent to a model.
type PrepareContextHook func(
	ctx context.Context,
	sessionID string,
	prepared []message.Message,
) (context.Context, []message.Message, error)

func applyPrepareContextHooks(
	ctx context.Context,
	sessionID string,
	prepared []message.Message,
	hooks []PrepareContextHook,
) (context.Context, []message.Message, error) {
	if len(hooks) == 0 {
		return ctx, prepared, nil
	}
	var err error
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		ctx, prepared, err = hook(ctx, sessionID, prepared)
		if err != nil {
			return ctx, prepared, err
		}
	}
	return ctx, prepared, nil
}
