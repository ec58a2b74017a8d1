package mapper

import (
	"encoding/json"

	"github.com/philippzach/growth-gpt-sub000/internal/entity"
	"github.com/philippzach/growth-gpt-sub000/internal/model"
)

type SessionMapper struct{}

func NewSessionMapper() *SessionMapper {
	return &SessionMapper{}
}

func (m *SessionMapper) SessionToModel(s *entity.Session) (*model.SessionSnapshot, error) {
	if s == nil {
		return nil, nil
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}

	return &model.SessionSnapshot{
		Id:         s.Id,
		UserId:     s.UserId,
		WorkflowId: s.WorkflowId,
		Status:     string(s.Status),
		Snapshot:   payload,
		CreatedAt:  s.CreatedAt,
		LastActive: s.LastActive,
	}, nil
}

func (m *SessionMapper) SessionToEntity(row *model.SessionSnapshot) (*entity.Session, error) {
	if row == nil {
		return nil, nil
	}

	var s entity.Session
	if err := json.Unmarshal(row.Snapshot, &s); err != nil {
		return nil, err
	}

	// Columns win over the payload for fields maintained on every write.
	s.Id = row.Id
	s.UserId = row.UserId
	s.Status = entity.SessionStatus(row.Status)
	return &s, nil
}
