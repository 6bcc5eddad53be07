// Package notify delivers operator alerts for auction lifecycle events over
// one or more channels (Telegram, Discord). Events can be filtered so
// operators receive only the alerts they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openslot/openslot/internal/domain"
)

// Event names used for filtering.
const (
	EventAuctionClosed     = "auction.closed"
	EventAuctionVoid       = "auction.void"
	EventContractCompleted = "contract.completed"
	EventContractBreached  = "contract.breached"
)

// Sender is one delivery channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name identifies the sender, e.g. "telegram".
	Name() string
}

// Notifier dispatches lifecycle alerts to every configured Sender. Only
// events in the allowed set are forwarded; an empty set allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// New creates a Notifier delivering to the given senders, filtered to the
// given event names.
func New(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// NotifyAuctionClosed alerts on an auction close outcome.
func (n *Notifier) NotifyAuctionClosed(ctx context.Context, ev domain.AuctionClosedEvent) {
	if ev.Status == domain.SlotStatusVoid {
		n.notify(ctx, EventAuctionVoid, "Auction void",
			fmt.Sprintf("Slot %s closed with no valid bids; all escrow refunded.", ev.SlotID))
		return
	}
	n.notify(ctx, EventAuctionClosed, "Auction closed",
		fmt.Sprintf("Slot %s cleared at %d. Contract %s is active.",
			ev.SlotID, ev.ClearingPrice, ev.ContractID))
}

// NotifyContractResolved alerts on a contract reaching a terminal state.
func (n *Notifier) NotifyContractResolved(ctx context.Context, ev domain.ContractResolvedEvent) {
	if ev.Status == domain.ContractStatusBreach {
		n.notify(ctx, EventContractBreached, "Contract breached",
			fmt.Sprintf("Contract %s (slot %s) passed its deadline; escrow refunded to the bidder.",
				ev.ContractID, ev.SlotID))
		return
	}
	n.notify(ctx, EventContractCompleted, "Contract completed",
		fmt.Sprintf("Contract %s (slot %s) completed; escrow released to the issuer.",
			ev.ContractID, ev.SlotID))
}

// notify forwards one alert to every sender, honouring the event filter.
// Sender failures are logged, never returned; alerts are best-effort.
func (n *Notifier) notify(ctx context.Context, event, title, message string) {
	if len(n.events) > 0 && !n.events[event] {
		return
	}
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
}
