// internal/models/category.go
package models

import "time"

type MainCategory struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"size:100;uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`

	Categories []Category `json:"categories,omitempty" gorm:"foreignKey:MainCategoryName;references:Name"`
}

type Category struct {
	ID               int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name             string    `json:"name" gorm:"size:100;not null"`
	MainCategoryName string    `json:"main_category_name" gorm:"size:100;not null;index"`
	CreatedAt        time.Time `json:"created_at"`
}
