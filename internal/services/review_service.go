// internal/services/review_service.go
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/javajoker/supplymatch-backend/internal/database"
	"github.com/javajoker/supplymatch-backend/internal/models"
)

type ReviewService struct {
	db *gorm.DB
}

type CreateReviewRequest struct {
	ListingID int64  `json:"supplier_id"`
	Mark      int    `json:"mark"`
	Text      string `json:"text,omitempty"`
}

// Rating summarises the reviews of one listing.
type Rating struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

func NewReviewService(db *gorm.DB) *ReviewService {
	return &ReviewService{db: db}
}

// Create stores a review once per author and listing. The author must have
// had a request matched and accepted by the listing.
func (s *ReviewService) Create(ctx context.Context, authorID int64, req *CreateReviewRequest) (*models.Review, error) {
	review := &models.Review{
		AuthorID:  authorID,
		ListingID: req.ListingID,
		Mark:      req.Mark,
		Text:      strings.TrimSpace(req.Text),
	}
	if err := validateEntity(review, "review"); err != nil {
		return nil, err
	}

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var listing models.Listing
		if err := tx.Select("id").First(&listing, req.ListingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("listing", req.ListingID)
			}
			return err
		}

		var dealt int64
		err := tx.Model(&models.Match{}).
			Joins("JOIN requests ON requests.id = matches.request_id").
			Where("requests.created_by_id = ? AND matches.supplier_id = ? AND matches.status IN ?",
				authorID, req.ListingID, []models.MatchStatus{models.MatchStatusAccepted, models.MatchStatusClosed}).
			Count(&dealt).Error
		if err != nil {
			return err
		}
		if dealt == 0 {
			return invalidTransition("user %d has no accepted match with listing %d", authorID, req.ListingID)
		}

		return tx.Create(review).Error
	})
	if err != nil {
		return nil, translateError(err, "review")
	}
	return review, nil
}

func (s *ReviewService) ListForListing(ctx context.Context, listingID int64) ([]models.Review, error) {
	var reviews []models.Review
	err := s.db.WithContext(ctx).
		Preload("Author").
		Where("supplier_id = ?", listingID).
		Order("created_at DESC, id DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, translateError(err, "review")
	}
	return reviews, nil
}

func (s *ReviewService) Rating(ctx context.Context, listingID int64) (Rating, error) {
	var rating Rating
	err := s.db.WithContext(ctx).Model(&models.Review{}).
		Select("COALESCE(AVG(mark), 0)::float8 AS average, COUNT(*) AS count").
		Where("supplier_id = ?", listingID).
		Scan(&rating).Error
	if err != nil {
		return Rating{}, translateError(err, "review")
	}
	return rating, nil
}
