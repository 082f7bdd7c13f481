package repository

import (
	"github.com/jmoiron/sqlx"

	"github.com/maheshrc27/persona-scheduler/internal/quota"
)

// Repositories bundles every store the scheduler depends on.
type Repositories struct {
	Personas      PersonaRepository
	Accounts      PlatformAccountRepository
	Contents      ContentRepository
	Engagements   EngagementRepository
	Conversations ConversationRepository
	Quotas        quota.Store
}

func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Personas:      NewPersonaRepository(db),
		Accounts:      NewPlatformAccountRepository(db),
		Contents:      NewContentRepository(db),
		Engagements:   NewEngagementRepository(db),
		Conversations: NewConversationRepository(db),
		Quotas:        NewQuotaStore(db),
	}
}
