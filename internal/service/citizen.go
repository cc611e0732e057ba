package service

import (
	"context"

	"github.com/civicdesk/civicdesk/internal/models"
	"github.com/civicdesk/civicdesk/internal/repo"
	"github.com/civicdesk/civicdesk/internal/util"
)

type CitizenService struct {
	Repo *repo.GormRepo
}

func (s *CitizenService) GetByPhone(ctx context.Context, rawPhone string) (*models.Citizen, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}
	return s.Repo.CitizenByPhone(ctx, phone)
}

// History lists the citizen's latest complaints, newest first.
func (s *CitizenService) History(ctx context.Context, rawPhone string, limit int) ([]models.Complaint, error) {
	c, err := s.GetByPhone(ctx, rawPhone)
	if err != nil {
		return nil, err
	}
	items, err := s.Repo.ComplaintsByCitizen(ctx, c.ID, util.ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Complaint{}
	}
	return items, nil
}
