package model

import "time"

// User is the requester record the engine reads display names from.
// Registration and credentials are owned by an external service.
type User struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty"`
	DisplayName string    `json:"display_name" bson:"display_name" validate:"required,min=1,max=100"`
	Email       string    `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}
