package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"chatrelay/pkg/interfaces"
	"chatrelay/pkg/types"
)

// Relay validates inbound chat events, stages attachments, persists the
// message and fans the delivery out to the recipient's connections.
// Persistence is awaited before forwarding, which preserves per-pair creation
// order; the blob write is not awaited.
type Relay struct {
	registry interfaces.Registry
	store    interfaces.MessageStore
	blobs    interfaces.BlobStore
	log      *slog.Logger
}

func NewRelay(registry interfaces.Registry, store interfaces.MessageStore, blobs interfaces.BlobStore, log *slog.Logger) *Relay {
	return &Relay{registry: registry, store: store, blobs: blobs, log: log}
}

// HandleInbound processes one raw payload from a connection.
//
// A payload that does not parse returns ErrMalformedPayload; the caller may
// drop the offending connection, other connections are unaffected. Events
// carrying neither text nor a file are discarded silently. Store failure
// aborts delivery and is reported to the sender. Messages from a connection
// that never authenticated are persisted and forwarded with a null sender.
func (r *Relay) HandleInbound(ctx context.Context, sender interfaces.Conn, payload []byte) error {
	var in types.InboundMessage
	if err := json.Unmarshal(payload, &in); err != nil {
		return ErrMalformedPayload
	}

	if in.Empty() {
		return nil
	}

	if err := in.Validate(); err != nil {
		r.reportError(sender, err)
		return nil
	}

	var attachmentRef string
	if in.File != nil {
		name, data, err := stageAttachment(in.File)
		if err != nil {
			r.reportError(sender, err)
			return nil
		}
		attachmentRef = name
		// Best-effort: delivery below may reach the recipient before the
		// bytes are on disk.
		r.blobs.WriteAsync(name, data)
	}

	var senderID *string
	if sender.Authenticated() {
		id := sender.UserID()
		senderID = &id
	}

	msg, err := r.store.CreateMessage(ctx, senderID, in.Recipient, in.Text, attachmentRef)
	if err != nil {
		r.reportError(sender, ErrStoreUnavailable)
		return fmt.Errorf("failed to persist message: %w", err)
	}

	event := types.DeliveryEvent{
		Text:      msg.Text,
		Sender:    msg.Sender,
		Recipient: msg.Recipient,
		File:      msg.AttachmentRef,
		ID:        msg.ID,
	}

	for _, target := range r.registry.FindByUserID(in.Recipient) {
		if err := target.WriteJSON(event); err != nil {
			r.log.Debug("skipping unreachable recipient connection",
				"connection", target.ID(), "recipient", in.Recipient, "err", err)
		}
	}
	return nil
}

func (r *Relay) reportError(conn interfaces.Conn, err error) {
	if werr := conn.WriteJSON(types.ErrorEvent{Error: err.Error()}); werr != nil {
		r.log.Debug("failed to report relay error to sender",
			"connection", conn.ID(), "err", werr)
	}
}
