package service

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Astemirdum/book-library/library/internal/errs"
	"github.com/Astemirdum/book-library/library/internal/model"
	"github.com/Astemirdum/book-library/pkg/auth"
)

func (s *Service) Register(ctx context.Context, req model.UserCreateRequest) (model.User, error) {
	return s.createUser(ctx, req.Username, req.Password, auth.RoleMember)
}

// CreateAdmin bootstraps an administrator account.
func (s *Service) CreateAdmin(ctx context.Context, username, password string) (model.User, error) {
	return s.createUser(ctx, username, password, auth.RoleAdmin)
}

func (s *Service) createUser(ctx context.Context, username, password, role string) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return model.User{}, errs.ErrPasswordTooLong
		}
		return model.User{}, errors.Wrap(err, "hash password")
	}
	user, err := s.repo.CreateUser(ctx, model.User{
		Username:       username,
		HashedPassword: string(hash),
		Role:           role,
	})
	if err != nil {
		return model.User{}, err
	}
	s.log.Info("user registered", zap.String("username", user.Username), zap.String("role", user.Role))
	return user, nil
}

func (s *Service) Authenticate(ctx context.Context, req model.AuthRequest) (model.AuthResponse, error) {
	user, err := s.repo.GetUser(ctx, req.Username)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.AuthResponse{}, errs.ErrBadCredentials
		}
		return model.AuthResponse{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		return model.AuthResponse{}, errs.ErrBadCredentials
	}

	token, expiresAt, err := s.issuer.Issue(user.Username, user.Role)
	if err != nil {
		return model.AuthResponse{}, err
	}
	return model.AuthResponse{
		AccessToken: token,
		TokenType:   auth.TokenType,
		ExpiresIn:   int(math.Round(expiresAt.Sub(s.now()).Seconds())),
	}, nil
}

// CurrentUser resolves the token subject to a stored user. A subject that no
// longer exists is treated as an invalid credential.
func (s *Service) CurrentUser(ctx context.Context, username string) (model.User, error) {
	user, err := s.repo.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.User{}, errs.ErrUnauthorized
		}
		return model.User{}, err
	}
	return user, nil
}
