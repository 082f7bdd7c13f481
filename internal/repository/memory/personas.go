package memory

import (
	"context"
	"time"

	"github.com/maheshrc27/persona-scheduler/internal/models"
)

type personaRepo struct{ db *DB }

func (r *personaRepo) Create(_ context.Context, p *models.Persona) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored := clonePersona(p)
	stored.ID = r.db.id()
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	r.db.personas[stored.ID] = stored
	return stored.ID, nil
}

func (r *personaRepo) GetByID(_ context.Context, id int64) (*models.Persona, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.personas[id]
	if !ok {
		return nil, nil
	}
	return clonePersona(p), nil
}

func (r *personaRepo) ListActive(_ context.Context) ([]*models.Persona, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []*models.Persona
	for _, p := range r.db.personas {
		if p.IsActive {
			out = append(out, clonePersona(p))
		}
	}
	sortByID(out, func(p *models.Persona) int64 { return p.ID })
	return out, nil
}

func (r *personaRepo) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for cid, c := range r.db.conversations {
		if c.PersonaID != id {
			continue
		}
		for mid, m := range r.db.messages {
			if m.ConversationID == cid {
				delete(r.db.messages, mid)
			}
		}
		delete(r.db.conversations, cid)
	}

	kept := r.db.engagements[:0]
	for _, e := range r.db.engagements {
		if e.PersonaID != id {
			kept = append(kept, e)
		}
	}
	r.db.engagements = kept

	for cid, c := range r.db.contents {
		if c.PersonaID != id {
			continue
		}
		deliveries := r.db.deliveries[:0]
		for _, d := range r.db.deliveries {
			if d.ContentID != cid {
				deliveries = append(deliveries, d)
			}
		}
		r.db.deliveries = deliveries
		delete(r.db.contents, cid)
	}

	for aid, a := range r.db.accounts {
		if a.PersonaID == id {
			delete(r.db.accounts, aid)
		}
	}
	delete(r.db.personas, id)
	return nil
}
