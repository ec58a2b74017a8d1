package memory

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/philippzach/growth-gpt-sub000/internal/entity"
	"github.com/philippzach/growth-gpt-sub000/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// SessionRepository is a go-cache backed implementation of the session store.
// Used in development without a database and as the repository fake in tests.
// Entries never expire; sessions are reclaimed by explicit Delete.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (r *SessionRepository) Save(ctx context.Context, session *entity.Session) error {
	// Store a deep copy so callers can keep mutating their instance.
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	var clone entity.Session
	if err := json.Unmarshal(payload, &clone); err != nil {
		return err
	}
	r.cache.Set(session.Id.String(), &clone, cache.NoExpiration)
	return nil
}

func (r *SessionRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	x, found := r.cache.Get(id.String())
	if !found {
		return nil, nil
	}
	stored := x.(*entity.Session)

	payload, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}
	var clone entity.Session
	if err := json.Unmarshal(payload, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}

func (r *SessionRepository) FindAllByUserId(ctx context.Context, userId uuid.UUID) ([]*entity.Session, error) {
	var sessions []*entity.Session
	for _, item := range r.cache.Items() {
		s := item.Object.(*entity.Session)
		if s.UserId == userId {
			clone, err := r.FindById(ctx, s.Id)
			if err != nil {
				return nil, err
			}
			sessions = append(sessions, clone)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActive.After(sessions[j].LastActive)
	})
	return sessions, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.cache.Delete(id.String())
	return nil
}

var _ contract.SessionRepository = (*SessionRepository)(nil)
