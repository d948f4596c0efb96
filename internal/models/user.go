// internal/models/user.go
package models

type User struct {
	BaseModel
	ExternalID int64  `json:"external_id" gorm:"uniqueIndex;not null;<-:create"`
	Username   string `json:"username" gorm:"size:100"`
	FirstName  string `json:"first_name" gorm:"size:100"`
	LastName   string `json:"last_name" gorm:"size:100"`
	Phone      string `json:"phone,omitempty" gorm:"size:20"`
	Email      string `json:"email,omitempty" gorm:"size:255"`
	Role       Role   `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	}
	return "user"
}
