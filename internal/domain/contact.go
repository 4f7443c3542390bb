package domain

import "time"

type ContactRequest struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Message   string    `json:"message"`
	IsHandled bool      `json:"is_handled"`
	CreatedAt time.Time `json:"created_at"`
}

type Stats struct {
	Products   int `json:"products"`
	Categories int `json:"categories"`
	Messages   int `json:"messages"`
	Unhandled  int `json:"unhandled_messages"`
}
