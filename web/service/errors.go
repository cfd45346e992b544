package service

import "errors"

var (
	ErrAuthFailure   = errors.New("wrong user name or password")
	ErrDuplicateUser = errors.New("user name is already taken")
	ErrInvalidUser   = errors.New("user name and password are required")
	ErrUserNotFound  = errors.New("user not found")

	ErrNotFound    = errors.New("post not found")
	ErrInvalidPost = errors.New("title and body are required and must fit their length limits")
)
