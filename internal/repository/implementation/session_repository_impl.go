package implementation

import (
	"context"
	"errors"

	"github.com/philippzach/growth-gpt-sub000/internal/entity"
	"github.com/philippzach/growth-gpt-sub000/internal/mapper"
	"github.com/philippzach/growth-gpt-sub000/internal/model"
	"github.com/philippzach/growth-gpt-sub000/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SessionMapper
}

func NewSessionRepository(db *gorm.DB) contract.SessionRepository {
	return &SessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewSessionMapper(),
	}
}

func (r *SessionRepositoryImpl) Save(ctx context.Context, session *entity.Session) error {
	m, err := r.mapper.SessionToModel(session)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(m).Error
}

func (r *SessionRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	var m model.SessionSnapshot
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.SessionToEntity(&m)
}

func (r *SessionRepositoryImpl) FindAllByUserId(ctx context.Context, userId uuid.UUID) ([]*entity.Session, error) {
	var models []*model.SessionSnapshot
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("last_active DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	sessions := make([]*entity.Session, 0, len(models))
	for _, m := range models {
		s, err := r.mapper.SessionToEntity(m)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (r *SessionRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.SessionSnapshot{}, "id = ?", id).Error
}
