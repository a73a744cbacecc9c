package service

import (
	"context"
	"strings"
	"time"

	"github.com/Alecckie/randa-web-sub001/internal/advertiser/domain"
	"github.com/Alecckie/randa-web-sub001/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("advertiser.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAdvertiserRequest) (domain.Advertiser, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Advertiser{}, domain.ErrInvalidName
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.Advertiser{}, domain.ErrInvalidEmail
	}

	now := time.Now().UTC()
	advertiser := domain.Advertiser{
		ID:        s.genID.Generate(),
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &advertiser); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Advertiser{}, domain.ErrEmailTaken
		}
		return domain.Advertiser{}, err
	}

	return advertiser, nil
}

func (s *Service) GetByID(ctx context.Context, raw string) (domain.Advertiser, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return domain.Advertiser{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Advertiser{}, err
	}
	if item == nil {
		return domain.Advertiser{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]domain.Advertiser, error) {
	return s.repo.List(ctx, s.db, limit)
}
