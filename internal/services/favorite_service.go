// internal/services/favorite_service.go
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/javajoker/supplymatch-backend/internal/models"
)

type FavoriteService struct {
	db *gorm.DB
}

func NewFavoriteService(db *gorm.DB) *FavoriteService {
	return &FavoriteService{db: db}
}

// Add fails with ErrConstraintViolation when the pair is already saved or
// either side does not exist.
func (s *FavoriteService) Add(ctx context.Context, userID, listingID int64) (*models.Favorite, error) {
	favorite := &models.Favorite{UserID: userID, ListingID: listingID}
	if err := s.db.WithContext(ctx).Create(favorite).Error; err != nil {
		return nil, translateError(err, "favorite")
	}
	return favorite, nil
}

func (s *FavoriteService) Remove(ctx context.Context, userID, listingID int64) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND supplier_id = ?", userID, listingID).
		Delete(&models.Favorite{})
	if result.Error != nil {
		return translateError(result.Error, "favorite")
	}
	if result.RowsAffected == 0 {
		return notFound("favorite for listing", listingID)
	}
	return nil
}

func (s *FavoriteService) ListForUser(ctx context.Context, userID int64) ([]models.Favorite, error) {
	var favorites []models.Favorite
	err := s.db.WithContext(ctx).
		Preload("Listing").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&favorites).Error
	if err != nil {
		return nil, translateError(err, "favorite")
	}
	return favorites, nil
}

func (s *FavoriteService) IsFavorite(ctx context.Context, userID, listingID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Favorite{}).
		Where("user_id = ? AND supplier_id = ?", userID, listingID).
		Count(&count).Error
	if err != nil {
		return false, translateError(err, "favorite")
	}
	return count > 0, nil
}
