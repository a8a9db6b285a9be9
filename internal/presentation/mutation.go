package presentation

import (
	"fmt"

	"meethub/backend/internal/models"
)

// Mutation is a single-field change requested by the presentation's author.
type Mutation interface {
	apply(p *models.Presentation) error
	// delta builds the broadcast payload carrying only the changed field.
	delta(p *models.Presentation) Delta
}

// Delta is the room-wide broadcast for one applied mutation.
type Delta struct {
	Event   string
	Payload any
}

type PageChange struct{ Page int }

func (m PageChange) apply(p *models.Presentation) error {
	if m.Page < 1 {
		return fmt.Errorf("%w: page %d", ErrInvalidValue, m.Page)
	}
	p.CurrentPage = m.Page
	return nil
}

func (m PageChange) delta(p *models.Presentation) Delta {
	return Delta{
		Event:   models.EventPresentationPageChanged,
		Payload: models.PresentationPagePayload{PresentationID: p.PresentationID, Page: p.CurrentPage},
	}
}

type ZoomChange struct{ Zoom float64 }

func (m ZoomChange) apply(p *models.Presentation) error {
	if m.Zoom <= 0 {
		return fmt.Errorf("%w: zoom %v", ErrInvalidValue, m.Zoom)
	}
	p.Zoom = m.Zoom
	return nil
}

func (m ZoomChange) delta(p *models.Presentation) Delta {
	return Delta{
		Event:   models.EventPresentationZoomChanged,
		Payload: models.PresentationZoomPayload{PresentationID: p.PresentationID, Zoom: p.Zoom},
	}
}

// ScrollChange merges into the current offset; a nil axis is kept.
type ScrollChange struct{ X, Y *float64 }

func (m ScrollChange) apply(p *models.Presentation) error {
	if m.X == nil && m.Y == nil {
		return fmt.Errorf("%w: empty scroll", ErrInvalidValue)
	}
	if m.X != nil {
		p.Scroll.X = *m.X
	}
	if m.Y != nil {
		p.Scroll.Y = *m.Y
	}
	return nil
}

func (m ScrollChange) delta(p *models.Presentation) Delta {
	x, y := p.Scroll.X, p.Scroll.Y
	return Delta{
		Event:   models.EventPresentationScrollChanged,
		Payload: models.PresentationScrollPayload{PresentationID: p.PresentationID, X: &x, Y: &y},
	}
}

type ModeChange struct{ Mode models.PresentationMode }

func (m ModeChange) apply(p *models.Presentation) error {
	if !m.Mode.Valid() {
		return fmt.Errorf("%w: mode %q", ErrInvalidValue, m.Mode)
	}
	p.Mode = m.Mode
	return nil
}

func (m ModeChange) delta(p *models.Presentation) Delta {
	return Delta{
		Event:   models.EventPresentationModeChanged,
		Payload: models.PresentationModePayload{PresentationID: p.PresentationID, Mode: p.Mode},
	}
}
