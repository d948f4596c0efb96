// internal/services/category_service.go
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/javajoker/supplymatch-backend/internal/models"
)

type CategoryService struct {
	db *gorm.DB
}

func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{db: db}
}

func (s *CategoryService) CreateMainCategory(ctx context.Context, name string) (*models.MainCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, violation("main category name is required")
	}

	main := &models.MainCategory{Name: name}
	if err := s.db.WithContext(ctx).Create(main).Error; err != nil {
		return nil, translateError(err, "main category")
	}
	return main, nil
}

// ListMainCategories returns the taxonomy with categories preloaded.
func (s *CategoryService) ListMainCategories(ctx context.Context) ([]models.MainCategory, error) {
	var mains []models.MainCategory
	err := s.db.WithContext(ctx).
		Preload("Categories", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Order("name").
		Find(&mains).Error
	if err != nil {
		return nil, translateError(err, "main category")
	}
	return mains, nil
}

// CreateCategory fails with ErrConstraintViolation when mainName does not
// name an existing main category.
func (s *CategoryService) CreateCategory(ctx context.Context, mainName, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, violation("category name is required")
	}

	category := &models.Category{Name: name, MainCategoryName: strings.TrimSpace(mainName)}
	if err := s.db.WithContext(ctx).Create(category).Error; err != nil {
		return nil, translateError(err, "category")
	}
	return category, nil
}

func (s *CategoryService) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("category", id)
		}
		return nil, translateError(err, "category")
	}
	return &category, nil
}

func (s *CategoryService) ListCategories(ctx context.Context, mainName string) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.WithContext(ctx).Where("main_category_name = ?", mainName).Order("name").Find(&categories).Error; err != nil {
		return nil, translateError(err, "category")
	}
	return categories, nil
}

func (s *CategoryService) DeleteCategory(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&models.Category{}, id)
	if result.Error != nil {
		return translateError(result.Error, "category")
	}
	if result.RowsAffected == 0 {
		return notFound("category", id)
	}
	return nil
}

func (s *CategoryService) DeleteMainCategory(ctx context.Context, name string) error {
	result := s.db.WithContext(ctx).Where("name = ?", name).Delete(&models.MainCategory{})
	if result.Error != nil {
		return translateError(result.Error, "main category")
	}
	if result.RowsAffected == 0 {
		return notFound("main category", name)
	}
	return nil
}
