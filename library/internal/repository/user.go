package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/book-library/library/internal/errs"
	"github.com/Astemirdum/book-library/library/internal/model"
)

func (r *repository) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	q, args, err := qb.Insert(usersTableName).
		Columns("username", "hashed_password", "role").
		Values(user.Username, user.HashedPassword, user.Role).
		Suffix("returning id, username, hashed_password, role").
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var created model.User
	if err := r.db.GetContext(ctx, &created, q, args...); err != nil {
		if _, ok := uniqueViolation(err); ok {
			return model.User{}, errs.ErrUsernameTaken
		}
		r.log.Error("CreateUser", zap.String("q", q), zap.Error(err))
		return model.User{}, errors.Wrap(err, "insert user")
	}
	return created, nil
}

func (r *repository) GetUser(ctx context.Context, username string) (model.User, error) {
	q, args, err := qb.Select("id", "username", "hashed_password", "role").
		From(usersTableName).
		Where(sq.Eq{"username": username}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := r.db.GetContext(ctx, &user, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.ErrUserNotFound
		}
		return model.User{}, errors.Wrap(err, "select user")
	}
	return user, nil
}
