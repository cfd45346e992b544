package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/postboard/postboard/database"
	"github.com/postboard/postboard/database/model"

	"gorm.io/gorm"
)

// PostService implements post CRUD. Mutations run in their own transaction.
type PostService struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

func NewPostService(db *gorm.DB, loc *time.Location) *PostService {
	if loc == nil {
		loc = time.Local
	}
	return &PostService{db: db, loc: loc, now: time.Now}
}

// Location is the zone created_at is recorded in.
func (s *PostService) Location() *time.Location {
	return s.loc
}

func validatePost(title string, body string) error {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(body) == "" {
		return ErrInvalidPost
	}
	if utf8.RuneCountInString(title) > model.MaxTitleLen || utf8.RuneCountInString(body) > model.MaxBodyLen {
		return ErrInvalidPost
	}
	return nil
}

// List returns every post in insertion order.
func (s *PostService) List(ctx context.Context) ([]*model.Post, error) {
	var posts []*model.Post
	err := s.db.WithContext(ctx).Model(model.Post{}).Order("id asc").Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PostService) Create(ctx context.Context, title string, body string) (int, error) {
	if err := validatePost(title, body); err != nil {
		return 0, err
	}
	post := &model.Post{
		Title:     title,
		Body:      body,
		CreatedAt: s.now().In(s.loc).Truncate(time.Second),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(post).Error
	})
	if err != nil {
		return 0, err
	}
	return post.Id, nil
}

func (s *PostService) Get(ctx context.Context, id int) (*model.Post, error) {
	post := &model.Post{}
	err := s.db.WithContext(ctx).First(post, id).Error
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

// Update overwrites title and body; created_at is left as it was.
func (s *PostService) Update(ctx context.Context, id int, title string, body string) error {
	if err := validatePost(title, body); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post := &model.Post{}
		err := tx.First(post, id).Error
		if database.IsNotFound(err) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return tx.Model(post).
			Updates(map[string]any{"title": title, "body": body}).
			Error
	})
}

func (s *PostService) Delete(ctx context.Context, id int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
