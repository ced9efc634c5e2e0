package identity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/contentory/ingest/internal/chatwoot"
	"github.com/contentory/ingest/internal/store"
)

// MappingStore looks up and persists WhatsApp number to user associations.
type MappingStore interface {
	FindUserID(ctx context.Context, numbers []string) (string, error)
	Save(ctx context.Context, mapping store.WhatsAppUserMapping) error
}

// ProfileStore matches phone numbers against registered user profiles.
type ProfileStore interface {
	FindUserID(ctx context.Context, numbers []string) (string, error)
}

// HistoryStore recovers a user id from earlier message records of the same
// contact.
type HistoryStore interface {
	FindUserIDByContact(ctx context.Context, contactID string) (string, error)
}

// Resolution is the outcome of identity resolution. UserID may be empty;
// ContactID never is.
type Resolution struct {
	UserID         string
	ContactID      string
	WhatsAppNumber string
}

// Resolver ties inbound webhook senders to known users. Lookup failures
// degrade to an anonymous resolution instead of failing the webhook.
type Resolver struct {
	countryCode string
	mappings    MappingStore
	profiles    ProfileStore
	history     HistoryStore
	logger      *slog.Logger
}

func NewResolver(log *slog.Logger, countryCode string, mappings MappingStore, profiles ProfileStore, history HistoryStore) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		countryCode: countryCode,
		mappings:    mappings,
		profiles:    profiles,
		history:     history,
		logger:      log.With(slog.String("component", "identity_resolver")),
	}
}

// Resolve identifies the sender of a payload. The mapping table is probed
// first, then user profiles, then message history keyed by contact id. A
// profile hit with no prior mapping writes one keyed by the canonical number
// so later lookups short-circuit.
func (r *Resolver) Resolve(ctx context.Context, p *chatwoot.WebhookPayload) Resolution {
	res := Resolution{ContactID: ContactID(p)}

	raw := ExtractPhoneNumber(p)
	if raw != "" {
		canonical := Normalize(raw, r.countryCode)
		res.WhatsAppNumber = canonical
		variations := GenerateVariations(canonical, r.countryCode)

		userID, err := r.mappings.FindUserID(ctx, variations)
		if err != nil {
			r.logger.Warn("mapping lookup failed", slog.String("error", err.Error()))
		}
		if userID != "" {
			res.UserID = userID
			return res
		}

		userID, err = r.profiles.FindUserID(ctx, variations)
		if err != nil {
			r.logger.Warn("profile lookup failed", slog.String("error", err.Error()))
		}
		if userID != "" {
			res.UserID = userID
			mapping := store.WhatsAppUserMapping{
				UserID:         userID,
				WhatsAppNumber: canonical,
				Verified:       true,
			}
			if p.Sender != nil {
				mapping.ExternalContactID = fmt.Sprintf("%d", p.Sender.ID)
			}
			if p.Account != nil {
				mapping.ExternalAccountID = fmt.Sprintf("%d", p.Account.ID)
			}
			if err := r.mappings.Save(ctx, mapping); err != nil {
				r.logger.Warn("saving discovered mapping failed",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
			}
			return res
		}
	}

	userID, err := r.history.FindUserIDByContact(ctx, res.ContactID)
	if err != nil {
		r.logger.Warn("history lookup failed", slog.String("error", err.Error()))
	}
	if userID != "" {
		res.UserID = userID
		return res
	}

	r.logger.Info("sender not identified, proceeding anonymously",
		slog.String("contact_id", res.ContactID),
	)
	return res
}

// ContactID builds the stable anonymous identifier for a sender within an
// account.
func ContactID(p *chatwoot.WebhookPayload) string {
	var senderID, accountID int64
	if p != nil && p.Sender != nil {
		senderID = p.Sender.ID
	}
	if p != nil && p.Account != nil {
		accountID = p.Account.ID
	}
	return fmt.Sprintf("contact_%d_account_%d", senderID, accountID)
}
