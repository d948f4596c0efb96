// internal/models/interaction.go
package models

import "time"

type Favorite struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    int64     `json:"user_id" gorm:"not null;uniqueIndex:idx_favorites_pair"`
	ListingID int64     `json:"supplier_id" gorm:"column:supplier_id;not null;uniqueIndex:idx_favorites_pair"`
	CreatedAt time.Time `json:"created_at"`

	Listing *Listing `json:"supplier,omitempty" gorm:"foreignKey:ListingID"`
}

type HelpRequest struct {
	ID         int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID     int64      `json:"user_id" gorm:"not null;index"`
	Request    string     `json:"request" gorm:"type:text;not null"`
	Status     HelpStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	AdminID    *int64     `json:"admin_id,omitempty"`
	Answer     *string    `json:"answer,omitempty" gorm:"type:text"`
	CreatedAt  time.Time  `json:"created_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Review is written once by a requester about a listing and never changes.
type Review struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	AuthorID  int64     `json:"author_id" gorm:"not null;uniqueIndex:idx_reviews_pair"`
	ListingID int64     `json:"supplier_id" gorm:"column:supplier_id;not null;uniqueIndex:idx_reviews_pair;index"`
	Mark      int       `json:"mark" gorm:"type:smallint;not null" validate:"min=1,max=5"`
	Text      string    `json:"text,omitempty" gorm:"type:text" validate:"max=2000"`
	CreatedAt time.Time `json:"created_at"`

	Author *User `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
}
