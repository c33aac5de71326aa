package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-billgate/core"
)

// TokenStore keeps the processor token in a single row so a restarted
// gateway can reuse it.
type TokenStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewTokenStore(db *bun.DB) (*TokenStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &TokenStore{db: db, now: time.Now}, nil
}

func (s *TokenStore) Load(ctx context.Context) (core.Token, error) {
	if s == nil || s.db == nil {
		return core.Token{}, fmt.Errorf("sqlstore: token store is not configured")
	}
	record := &tokenRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", currentTokenSlot).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Token{}, core.ErrTokenNotFound
		}
		return core.Token{}, err
	}
	return record.toDomain(), nil
}

func (s *TokenStore) Save(ctx context.Context, token core.Token) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: token store is not configured")
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return fmt.Errorf("sqlstore: access token is required")
	}
	record := newTokenRecord(token, s.now())
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*tokenRecord)(nil)).
			Where("id = ?", currentTokenSlot).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(record).Exec(ctx)
		return err
	})
}

func (s *TokenStore) Clear(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: token store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*tokenRecord)(nil)).
		Where("id = ?", currentTokenSlot).
		Exec(ctx)
	return err
}
