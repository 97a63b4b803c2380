// ABOUTME: Fire-and-forget outbound dispatch routed by communication type
// ABOUTME: Used by the batch sweeps and follow-up messages, not interactive replies

package bus

import (
	"context"

	"github.com/civicbots/courtbot/internal/courterr"
)

// SendNonReply routes an outbound message to every sender registered for the
// given communication type. With no matching sender the send is a no-op: the
// transport that owns the registration simply is not attached to this
// process, which is normal for sweep runs on partial deployments.
func (b *Bus) SendNonReply(ctx context.Context, to, msg, communicationType string) error {
	b.mu.RLock()
	var matching []Sender
	for _, s := range b.senders {
		if s.CommunicationType() == communicationType {
			matching = append(matching, s)
		}
	}
	b.mu.RUnlock()

	if len(matching) == 0 {
		b.logger.Debug("no sender for communication type",
			"communication_type", communicationType, "to", to)
		return nil
	}

	b.logger.Debug("sending non-reply message",
		"communication_type", communicationType, "to", to)

	for _, s := range matching {
		if err := s.Send(ctx, to, msg); err != nil {
			return courterr.Wrap(courterr.KindAPISend, communicationType, "", err)
		}
	}
	return nil
}
