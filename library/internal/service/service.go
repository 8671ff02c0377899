package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Astemirdum/book-library/library/internal/model"
	"github.com/Astemirdum/book-library/library/internal/repository"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type MetadataLookup interface {
	Lookup(ctx context.Context, isbn string) (model.BookMetadata, error)
}

type TokenIssuer interface {
	Issue(username, role string) (token string, expiresAt time.Time, err error)
}

type Publisher interface {
	Publish(ctx context.Context, event model.TransactionEvent) error
}

type Service struct {
	log       *zap.Logger
	repo      repository.Repository
	lookup    MetadataLookup
	issuer    TokenIssuer
	publisher Publisher

	now      func() time.Time
	hashCost int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

func NewService(
	repo repository.Repository,
	lookup MetadataLookup,
	issuer TokenIssuer,
	publisher Publisher,
	log *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		log:       log.Named("service"),
		repo:      repo,
		lookup:    lookup,
		issuer:    issuer,
		publisher: publisher,
		now:       time.Now,
		hashCost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil {
		s.publisher = NopPublisher{}
	}
	return s
}

// clock has the precision of a postgres timestamp.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
