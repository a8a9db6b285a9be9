// Package waitingroom runs the guest admission handshake: a guest queues, a host
// approves or rejects, and the guest receives a media credential or a rejection.
package waitingroom

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"meethub/backend/internal/config"
	"meethub/backend/internal/media"
	"meethub/backend/internal/models"
	"meethub/backend/internal/storage"

	"github.com/rs/zerolog/log"
)

// Store is the waiting-queue part of the session store.
type Store interface {
	EnqueueGuest(ctx context.Context, roomID string, guest models.WaitingGuest) (bool, error)
	GetWaitingGuest(ctx context.Context, roomID, guestID string) (*models.WaitingGuest, error)
	ListWaitingGuests(ctx context.Context, roomID string) ([]models.WaitingGuest, error)
	RemoveWaitingGuest(ctx context.Context, roomID, guestID string) (bool, error)
}

// CredentialIssuer issues media access credentials.
type CredentialIssuer interface {
	IssueToken(req media.TokenRequest) (string, error)
}

// Decision is the outcome of a host decision that was applied.
type Decision struct {
	Guest models.WaitingGuest
	State GuestState
	// Token is set only for approvals.
	Token string
	// Queue is the waiting queue after the guest was removed.
	Queue []models.WaitingGuest
}

// Approved reports whether the guest was admitted.
func (d *Decision) Approved() bool { return d.State == StateApproved }

type Protocol struct {
	store Store
	creds CredentialIssuer
	now   func() time.Time
}

func NewProtocol(store Store, creds CredentialIssuer) *Protocol {
	return &Protocol{store: store, creds: creds, now: time.Now}
}

// WithClock replaces the time source used for request timestamps.
func (p *Protocol) WithClock(now func() time.Time) *Protocol {
	p.now = now
	return p
}

// RequestJoin queues the guest and returns the queue in request order. A repeated
// request keeps the original position.
func (p *Protocol) RequestJoin(ctx context.Context, roomID, guestID, name string) ([]models.WaitingGuest, error) {
	if guestID == "" {
		return nil, ErrMissingGuestID
	}
	guest := models.WaitingGuest{
		GuestID:     guestID,
		Name:        displayName(name),
		RequestedAt: p.now().UnixMilli(),
	}
	added, err := p.store.EnqueueGuest(ctx, roomID, guest)
	if err != nil {
		return nil, err
	}
	if added {
		log.Info().Str("module", "waitingroom").Str("room_id", roomID).Str("guest_id", guestID).Msg("guest queued")
	}
	return p.store.ListWaitingGuests(ctx, roomID)
}

// Decide approves or rejects a queued guest. It returns nil without error when the
// guest is no longer queued (already decided or disconnected). A failed credential
// issuance leaves the guest queued.
func (p *Protocol) Decide(ctx context.Context, roomID, guestID string, approved bool) (*Decision, error) {
	guest, err := p.store.GetWaitingGuest(ctx, roomID, guestID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Debug().Str("module", "waitingroom").Str("room_id", roomID).Str("guest_id", guestID).Msg("decision for guest not in queue ignored")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	target := StateRejected
	if approved {
		target = StateApproved
	}
	state, err := Transition(StateRequested, target)
	if err != nil {
		return nil, err
	}

	decision := &Decision{Guest: *guest, State: state}
	if approved {
		token, err := p.creds.IssueToken(media.TokenRequest{
			Room:     roomID,
			Identity: guest.GuestID,
			Name:     guest.Name,
			IsGuest:  true,
			Role:     models.RoleGuest,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCredentialIssuance, err)
		}
		decision.Token = token
	}

	removed, err := p.store.RemoveWaitingGuest(ctx, roomID, guestID)
	if err != nil {
		return nil, err
	}
	if !removed {
		// Another host or a disconnect won the race.
		log.Debug().Str("module", "waitingroom").Str("room_id", roomID).Str("guest_id", guestID).Msg("guest removed concurrently")
		return nil, nil
	}

	decision.Queue, err = p.store.ListWaitingGuests(ctx, roomID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "waitingroom").Str("room_id", roomID).Str("guest_id", guestID).Str("state", state.String()).Msg("guest decided")
	return decision, nil
}

// Remove drops a guest that disconnected before a decision. The returned queue is
// nil when the guest was not queued.
func (p *Protocol) Remove(ctx context.Context, roomID, guestID string) ([]models.WaitingGuest, error) {
	removed, err := p.store.RemoveWaitingGuest(ctx, roomID, guestID)
	if err != nil || !removed {
		return nil, err
	}
	if _, err := Transition(StateRequested, StateRemoved); err != nil {
		return nil, err
	}
	return p.store.ListWaitingGuests(ctx, roomID)
}

// Queue returns the waiting guests in request order.
func (p *Protocol) Queue(ctx context.Context, roomID string) ([]models.WaitingGuest, error) {
	return p.store.ListWaitingGuests(ctx, roomID)
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Guest"
	}
	if utf8.RuneCountInString(name) > config.MaxDisplayNameLength {
		name = string([]rune(name)[:config.MaxDisplayNameLength])
	}
	return name
}
