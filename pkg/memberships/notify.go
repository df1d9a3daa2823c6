package memberships

import (
	"context"

	"github.com/platinummonkey/shelf/pkg/observability"
)

// LogNotifier is a Notifier that only records events in the log. The
// production deployment replaces it with the email collaborator; the engine
// does not care which is wired in.
type LogNotifier struct {
	logger *observability.Logger
}

// NewLogNotifier creates a logging notifier
func NewLogNotifier(logger *observability.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// MembershipChanged implements Notifier.
func (n *LogNotifier) MembershipChanged(ctx context.Context, event Event) error {
	n.logger.WithFields(map[string]interface{}{
		"operation":  event.Operation,
		"item_id":    event.ItemID,
		"account_id": event.AccountID,
		"permission": event.Permission,
		"actor_id":   event.ActorID,
	}).Info("membership changed")
	return nil
}
