// Package memory is an in-process implementation of the repositories with
// the same conditional-update semantics as the Postgres store. Every read
// returns a copy.
package memory

import (
	"slices"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/repository"
)

type DB struct {
	mu     sync.Mutex
	nextID int64

	personas      map[int64]*models.Persona
	accounts      map[int64]*models.PlatformAccount
	contents      map[int64]*models.Content
	deliveries    []*models.ContentDelivery
	engagements   []*models.Engagement
	conversations map[int64]*models.Conversation
	messages      map[int64]*models.DirectMessage
}

func New() *DB {
	return &DB{
		personas:      make(map[int64]*models.Persona),
		accounts:      make(map[int64]*models.PlatformAccount),
		contents:      make(map[int64]*models.Content),
		conversations: make(map[int64]*models.Conversation),
		messages:      make(map[int64]*models.DirectMessage),
	}
}

// Repositories exposes the store through the repository interfaces.
func (db *DB) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Personas:      &personaRepo{db},
		Accounts:      &accountRepo{db},
		Contents:      &contentRepo{db},
		Engagements:   &engagementRepo{db},
		Conversations: &conversationRepo{db},
		Quotas:        &quotaStore{db},
	}
}

func (db *DB) id() int64 {
	db.nextID++
	return db.nextID
}

func cloneStrings(s pq.StringArray) pq.StringArray {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func clonePersona(p *models.Persona) *models.Persona {
	c := *p
	c.Niches = cloneStrings(p.Niches)
	c.Topics = cloneStrings(p.Topics)
	c.Hashtags = cloneStrings(p.Hashtags)
	return &c
}

func cloneAccount(a *models.PlatformAccount) *models.PlatformAccount {
	c := *a
	c.Credentials = slices.Clone(a.Credentials)
	c.LastSyncedAt = cloneTime(a.LastSyncedAt)
	return &c
}

func cloneContent(ct *models.Content) *models.Content {
	c := *ct
	c.MediaURLs = cloneStrings(ct.MediaURLs)
	c.VideoURLs = cloneStrings(ct.VideoURLs)
	c.TargetPlatforms = cloneStrings(ct.TargetPlatforms)
	c.PostedPlatforms = cloneStrings(ct.PostedPlatforms)
	c.FailedPlatforms = cloneStrings(ct.FailedPlatforms)
	c.ScheduledFor = cloneTime(ct.ScheduledFor)
	c.PostedAt = cloneTime(ct.PostedAt)
	return &c
}

func cloneConversation(cv *models.Conversation) *models.Conversation {
	c := *cv
	c.LastMessageAt = cloneTime(cv.LastMessageAt)
	c.LastResponseAt = cloneTime(cv.LastResponseAt)
	return &c
}

func cloneMessage(m *models.DirectMessage) *models.DirectMessage {
	c := *m
	c.RespondedAt = cloneTime(m.RespondedAt)
	return &c
}
