// Package presentation coordinates shared document presentations: one active
// presentation per author and room, changed only by its author.
package presentation

import (
	"context"
	"errors"
	"strings"
	"time"

	"meethub/backend/internal/config"
	"meethub/backend/internal/models"
	"meethub/backend/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Store is the presentation part of the session store.
type Store interface {
	StartPresentation(ctx context.Context, roomID string, p models.Presentation) (*models.Presentation, error)
	GetPresentation(ctx context.Context, roomID, presentationID string) (*models.Presentation, error)
	FindPresentationByAuthor(ctx context.Context, roomID, authorID string) (*models.Presentation, error)
	ListPresentations(ctx context.Context, roomID string) ([]models.Presentation, error)
	UpdatePresentation(ctx context.Context, roomID, presentationID string, fn func(*models.Presentation) error) (*models.Presentation, error)
	DeletePresentation(ctx context.Context, roomID, presentationID string) (bool, error)
}

// StartRequest describes a new presentation.
type StartRequest struct {
	FileID string
	URL    string
	Mode   models.PresentationMode
}

type Coordinator struct {
	store Store
	now   func() time.Time
}

func NewCoordinator(store Store) *Coordinator {
	return &Coordinator{store: store, now: time.Now}
}

// Start creates a presentation for the author. If the author already had one in the
// room it is finished in the same store transaction and returned as finished.
func (c *Coordinator) Start(ctx context.Context, roomID, authorID string, req StartRequest) (started, finished *models.Presentation, err error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, nil, ErrMissingURL
	}
	mode := req.Mode
	if mode == "" {
		mode = models.ModePresentationWithCamera
	}
	if !mode.Valid() {
		return nil, nil, ErrInvalidValue
	}

	p := models.Presentation{
		PresentationID: uuid.NewString(),
		FileID:         req.FileID,
		AuthorID:       authorID,
		URL:            req.URL,
		CurrentPage:    config.DefaultPresentationPage,
		Zoom:           config.DefaultPresentationZoom,
		Mode:           mode,
		StartedAt:      c.now().UnixMilli(),
	}
	previous, err := c.store.StartPresentation(ctx, roomID, p)
	if err != nil {
		return nil, nil, err
	}
	if previous != nil {
		if _, err := Transition(StateActive, StateFinished); err != nil {
			return nil, nil, err
		}
		log.Info().Str("module", "presentation").Str("room_id", roomID).Str("presentation_id", previous.PresentationID).Msg("previous presentation of author finished")
	}
	log.Info().Str("module", "presentation").Str("room_id", roomID).Str("presentation_id", p.PresentationID).Str("author_id", authorID).Msg("presentation started")
	return &p, previous, nil
}

// Mutate applies m if userID is the author and returns the minimal delta to broadcast.
// Non-authors get an *AuthorizationError and nothing is written.
func (c *Coordinator) Mutate(ctx context.Context, roomID, presentationID, userID string, m Mutation) (Delta, error) {
	updated, err := c.store.UpdatePresentation(ctx, roomID, presentationID, func(p *models.Presentation) error {
		if p.AuthorID != userID {
			return &AuthorizationError{PresentationID: presentationID, UserID: userID}
		}
		return m.apply(p)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return Delta{}, ErrPresentationNotFound
	}
	if err != nil {
		return Delta{}, err
	}
	return m.delta(updated), nil
}

// Finish deletes the presentation. Finishing an absent presentation is not an error;
// found reports whether anything was deleted. Only the author may finish unless
// override is set.
func (c *Coordinator) Finish(ctx context.Context, roomID, presentationID, userID string, override bool) (found bool, err error) {
	p, err := c.store.GetPresentation(ctx, roomID, presentationID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !override && p.AuthorID != userID {
		return false, &AuthorizationError{PresentationID: presentationID, UserID: userID}
	}
	return c.finish(ctx, roomID, presentationID)
}

func (c *Coordinator) finish(ctx context.Context, roomID, presentationID string) (bool, error) {
	deleted, err := c.store.DeletePresentation(ctx, roomID, presentationID)
	if err != nil || !deleted {
		return false, err
	}
	if _, err := Transition(StateActive, StateFinished); err != nil {
		return false, err
	}
	log.Info().Str("module", "presentation").Str("room_id", roomID).Str("presentation_id", presentationID).Msg("presentation finished")
	return true, nil
}

// FinishByAuthor finishes the author's active presentation. ErrPresentationNotFound
// means the author had none.
func (c *Coordinator) FinishByAuthor(ctx context.Context, roomID, authorID string) (*models.Presentation, error) {
	p, err := c.store.FindPresentationByAuthor(ctx, roomID, authorID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrPresentationNotFound
	}
	if err != nil {
		return nil, err
	}
	found, err := c.finish(ctx, roomID, p.PresentationID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrPresentationNotFound
	}
	return p, nil
}

// List returns the active presentations of the room.
func (c *Coordinator) List(ctx context.Context, roomID string) ([]models.Presentation, error) {
	return c.store.ListPresentations(ctx, roomID)
}
