// internal/models/match.go
package models

type Match struct {
	BaseModel
	RequestID int64       `json:"request_id" gorm:"not null;uniqueIndex:idx_matches_pair"`
	ListingID int64       `json:"supplier_id" gorm:"column:supplier_id;not null;uniqueIndex:idx_matches_pair;index"`
	Status    MatchStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`

	Request *Request `json:"request,omitempty" gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
	Listing *Listing `json:"supplier,omitempty" gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE"`
}
