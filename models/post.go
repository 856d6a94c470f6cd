package models

import "time"

// Post represents a post created by a user. UserID is the creator and is
// immutable after creation.
type Post struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"creator"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Image       string    `gorm:"size:512;not null" json:"image"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Reaction user-id sets, loaded from the reactions table at read time.
	Likes    []uint `gorm:"-" json:"likes"`
	Dislikes []uint `gorm:"-" json:"dislikes"`
}
