// Package entity defines the forms and response messages of the web layer.
package entity

// Msg is the JSON body returned to AJAX clients.
type Msg struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Obj     any    `json:"obj"`
}

// LoginForm is posted by both the login and the signup pages.
type LoginForm struct {
	UserName string `json:"user_name" form:"user_name" binding:"required,max=30"`
	Password string `json:"password" form:"password" binding:"required"`
}

// PostForm is posted by the create and update pages.
type PostForm struct {
	Title string `json:"title" form:"title" binding:"required,max=50"`
	Body  string `json:"body" form:"body" binding:"required,max=300"`
}
