package contract

import (
	"context"

	"github.com/philippzach/growth-gpt-sub000/internal/entity"

	"github.com/google/uuid"
)

type SessionRepository interface {
	// Save upserts the full snapshot (last writer wins).
	Save(ctx context.Context, session *entity.Session) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.Session, error)
	// FindAllByUserId lists a user's sessions, most recently active first.
	FindAllByUserId(ctx context.Context, userId uuid.UUID) ([]*entity.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
