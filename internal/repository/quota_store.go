package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/quota"
)

var personaCounterColumns = map[models.ActionKind]string{
	models.ActionPost:      "posts_today",
	models.ActionLike:      "likes_today",
	models.ActionComment:   "comments_today",
	models.ActionFollow:    "follows_today",
	models.ActionVideoPost: "video_posts_today",
	models.ActionStory:     "stories_today",
	models.ActionReel:      "reels_today",
	models.ActionNSFWPost:  "nsfw_posts_today",
}

var accountCounterColumns = map[models.ActionKind]string{
	models.ActionPost:      "posts_today",
	models.ActionVideoPost: "video_posts_today",
	models.ActionStory:     "stories_today",
	models.ActionReel:      "reels_today",
}

// quotaStore keeps the counters on the persona and platform account rows.
// Every mutation is a single conditional UPDATE.
type quotaStore struct {
	db *sqlx.DB
}

func NewQuotaStore(db *sqlx.DB) quota.Store {
	return &quotaStore{db: db}
}

func scopeTable(scope quota.Scope) (string, map[models.ActionKind]string, error) {
	switch scope.Type {
	case quota.ScopePersona:
		return "personas", personaCounterColumns, nil
	case quota.ScopeAccount:
		return "platform_accounts", accountCounterColumns, nil
	default:
		return "", nil, fmt.Errorf("unknown quota scope %q", scope.Type)
	}
}

func (s *quotaStore) Snapshot(ctx context.Context, scope quota.Scope) (quota.Snapshot, error) {
	switch scope.Type {
	case quota.ScopePersona:
		var p models.Persona
		if err := s.db.GetContext(ctx, &p, `SELECT * FROM personas WHERE id = $1`, scope.ID); err != nil {
			return quota.Snapshot{}, err
		}
		return quota.PersonaSnapshot(&p), nil
	case quota.ScopeAccount:
		var a models.PlatformAccount
		if err := s.db.GetContext(ctx, &a, `SELECT * FROM platform_accounts WHERE id = $1`, scope.ID); err != nil {
			return quota.Snapshot{}, err
		}
		return quota.AccountSnapshot(&a), nil
	default:
		return quota.Snapshot{}, fmt.Errorf("unknown quota scope %q", scope.Type)
	}
}

func (s *quotaStore) ResetIfStale(ctx context.Context, scope quota.Scope, dayStart, now time.Time) (bool, error) {
	table, columns, err := scopeTable(scope)
	if err != nil {
		return false, err
	}

	set := ""
	for _, kind := range models.ActionKinds {
		if col, ok := columns[kind]; ok {
			set += col + " = 0, "
		}
	}
	query := fmt.Sprintf(
		`UPDATE %s SET %slast_limit_reset = $2, updated_at = now() WHERE id = $1 AND last_limit_reset < $3`,
		table, set)

	res, err := s.db.ExecContext(ctx, query, scope.ID, now, dayStart)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *quotaStore) TryIncrement(ctx context.Context, scope quota.Scope, kind models.ActionKind, limit int) (bool, error) {
	table, columns, err := scopeTable(scope)
	if err != nil {
		return false, err
	}
	col, ok := columns[kind]
	if !ok {
		return false, fmt.Errorf("%s does not track %s", scope.Type, kind)
	}

	query := fmt.Sprintf(`UPDATE %s SET %s = %s + 1 WHERE id = $1 AND %s < $2`, table, col, col, col)
	res, err := s.db.ExecContext(ctx, query, scope.ID, limit)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *quotaStore) Decrement(ctx context.Context, scope quota.Scope, kind models.ActionKind) error {
	table, columns, err := scopeTable(scope)
	if err != nil {
		return err
	}
	col, ok := columns[kind]
	if !ok {
		return fmt.Errorf("%s does not track %s", scope.Type, kind)
	}

	query := fmt.Sprintf(`UPDATE %s SET %s = %s - 1 WHERE id = $1 AND %s > 0`, table, col, col, col)
	_, err = s.db.ExecContext(ctx, query, scope.ID)
	return err
}
