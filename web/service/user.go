package service

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/postboard/postboard/database"
	"github.com/postboard/postboard/database/model"
	"github.com/postboard/postboard/logger"
	"github.com/postboard/postboard/util/crypto"

	"gorm.io/gorm"
)

// UserService signs users up and verifies their credentials.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnHash spends the same work as a real verification so a missing user
// can't be told apart from a wrong password by timing.
func burnHash(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = crypto.HashPassword("postboard-dummy-password")
	})
	crypto.CheckPasswordHash(dummyHash, password)
}

// Signup stores a new user and returns its id.
func (s *UserService) Signup(ctx context.Context, userName string, password string) (int, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" || password == "" || utf8.RuneCountInString(userName) > model.MaxUserNameLen {
		return 0, ErrInvalidUser
	}

	hashedPassword, err := crypto.HashPassword(password)
	if err != nil {
		return 0, err
	}

	user := &model.User{
		UserName: userName,
		Password: hashedPassword,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(user).Error
	})
	if database.IsDuplicate(err) {
		return 0, ErrDuplicateUser
	}
	if err != nil {
		return 0, err
	}
	return user.Id, nil
}

// CheckUser returns the user when password matches, ErrAuthFailure otherwise.
func (s *UserService) CheckUser(ctx context.Context, userName string, password string) (*model.User, error) {
	user := &model.User{}
	err := s.db.WithContext(ctx).
		Model(model.User{}).
		Where("user_name = ?", strings.TrimSpace(userName)).
		First(user).
		Error
	if database.IsNotFound(err) {
		burnHash(password)
		return nil, ErrAuthFailure
	} else if err != nil {
		logger.Warning("check user err:", err)
		return nil, err
	}

	if !crypto.CheckPasswordHash(user.Password, password) {
		return nil, ErrAuthFailure
	}
	return user, nil
}

// GetUser loads a user by primary key.
func (s *UserService) GetUser(ctx context.Context, id int) (*model.User, error) {
	user := &model.User{}
	err := s.db.WithContext(ctx).First(user, id).Error
	if database.IsNotFound(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CountUsers is used by the CLI to report the state of the store.
func (s *UserService) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(model.User{}).Count(&n).Error
	return n, err
}
