// internal/services/listing_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/supplymatch-backend/internal/cleanup"
	"github.com/javajoker/supplymatch-backend/internal/database"
	"github.com/javajoker/supplymatch-backend/internal/events"
	"github.com/javajoker/supplymatch-backend/internal/models"
	"github.com/javajoker/supplymatch-backend/internal/utils"
)

type ListingService struct {
	db      *gorm.DB
	cleaner *cleanup.Cleaner
	notifier
}

type CreateListingRequest struct {
	CompanyName     string   `json:"company_name"`
	ProductName     string   `json:"product_name"`
	Description     string   `json:"description,omitempty"`
	CategoryID      int64    `json:"category_id"`
	Country         string   `json:"country,omitempty"`
	Region          string   `json:"region,omitempty"`
	City            string   `json:"city,omitempty"`
	Address         string   `json:"address,omitempty"`
	ContactUsername string   `json:"contact_username,omitempty"`
	ContactPhone    string   `json:"contact_phone,omitempty"`
	ContactEmail    string   `json:"contact_email,omitempty"`
	Website         string   `json:"website,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// UpdateListingRequest changes descriptive fields only. Status and owner
// move through Transition.
type UpdateListingRequest struct {
	CompanyName     *string  `json:"company_name,omitempty"`
	ProductName     *string  `json:"product_name,omitempty"`
	Description     *string  `json:"description,omitempty"`
	CategoryID      *int64   `json:"category_id,omitempty"`
	Country         *string  `json:"country,omitempty"`
	Region          *string  `json:"region,omitempty"`
	City            *string  `json:"city,omitempty"`
	Address         *string  `json:"address,omitempty"`
	ContactUsername *string  `json:"contact_username,omitempty"`
	ContactPhone    *string  `json:"contact_phone,omitempty"`
	ContactEmail    *string  `json:"contact_email,omitempty"`
	Website         *string  `json:"website,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

type ListingSearchParams struct {
	utils.PaginationParams
	Status      *models.ListingStatus `json:"status,omitempty"`
	CategoryID  *int64                `json:"category_id,omitempty"`
	CreatedByID *int64                `json:"created_by_id,omitempty"`
	Country     string                `json:"country,omitempty"`
	Tag         string                `json:"tag,omitempty"`
}

var listingSortFields = []string{"created_at", "updated_at", "company_name", "product_name"}

func NewListingService(db *gorm.DB, cleaner *cleanup.Cleaner, publisher events.Publisher, log logrus.FieldLogger) *ListingService {
	return &ListingService{
		db:       db,
		cleaner:  cleaner,
		notifier: notifier{publisher: publisher, log: log.WithField("service", "listings")},
	}
}

// Create stores a new listing in the pending state.
func (s *ListingService) Create(ctx context.Context, creatorID int64, req *CreateListingRequest) (*models.Listing, error) {
	listing := &models.Listing{
		CompanyName:     req.CompanyName,
		ProductName:     req.ProductName,
		Description:     req.Description,
		CategoryID:      req.CategoryID,
		Country:         req.Country,
		Region:          req.Region,
		City:            req.City,
		Address:         req.Address,
		ContactUsername: req.ContactUsername,
		ContactPhone:    req.ContactPhone,
		ContactEmail:    req.ContactEmail,
		Website:         req.Website,
		Tags:            pq.StringArray(req.Tags),
		Status:          models.ListingStatusPending,
		CreatedByID:     creatorID,
	}

	if err := validateEntity(listing, "listing"); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(listing).Error; err != nil {
		return nil, translateError(err, "listing")
	}
	return listing, nil
}

func (s *ListingService) Get(ctx context.Context, id int64) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("CreatedBy").
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&listing, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("listing", id)
		}
		return nil, translateError(err, "listing")
	}
	return &listing, nil
}

func (s *ListingService) Update(ctx context.Context, id int64, req *UpdateListingRequest) (*models.Listing, error) {
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var listing models.Listing
		if err := lockForUpdate(tx).First(&listing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("listing", id)
			}
			return err
		}

		updates := req.apply(&listing)
		if len(updates) == 0 {
			return nil
		}

		if err := validateEntity(&listing, "listing"); err != nil {
			return err
		}
		return tx.Model(&listing).Updates(updates).Error
	})
	if err != nil {
		return nil, translateError(err, "listing")
	}
	return s.Get(ctx, id)
}

// apply copies the set fields onto listing and returns the column updates.
func (req *UpdateListingRequest) apply(listing *models.Listing) map[string]interface{} {
	updates := map[string]interface{}{}
	set := func(column string, dst *string, v *string) {
		if v != nil {
			*dst = *v
			updates[column] = *v
		}
	}

	set("company_name", &listing.CompanyName, req.CompanyName)
	set("product_name", &listing.ProductName, req.ProductName)
	set("description", &listing.Description, req.Description)
	set("country", &listing.Country, req.Country)
	set("region", &listing.Region, req.Region)
	set("city", &listing.City, req.City)
	set("address", &listing.Address, req.Address)
	set("contact_username", &listing.ContactUsername, req.ContactUsername)
	set("contact_phone", &listing.ContactPhone, req.ContactPhone)
	set("contact_email", &listing.ContactEmail, req.ContactEmail)
	set("website", &listing.Website, req.Website)

	if req.CategoryID != nil {
		listing.CategoryID = *req.CategoryID
		updates["category_id"] = *req.CategoryID
	}
	if req.Tags != nil {
		listing.Tags = pq.StringArray(req.Tags)
		updates["tags"] = listing.Tags
	}
	return updates
}

func (s *ListingService) List(ctx context.Context, params *ListingSearchParams) (*utils.PaginationResult[models.Listing], error) {
	page := params.PaginationParams.Normalize()

	query := s.db.WithContext(ctx).Model(&models.Listing{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.CategoryID != nil {
		query = query.Where("category_id = ?", *params.CategoryID)
	}
	if params.CreatedByID != nil {
		query = query.Where("created_by_id = ?", *params.CreatedByID)
	}
	if params.Country != "" {
		query = query.Where("country ILIKE ?", params.Country)
	}
	if params.Tag != "" {
		query = query.Where("? = ANY(tags)", params.Tag)
	}
	if page.Search != "" {
		pattern := "%" + page.Search + "%"
		query = query.Where("company_name ILIKE ? OR product_name ILIKE ? OR description ILIKE ?", pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, translateError(err, "listing")
	}

	var listings []models.Listing
	query = utils.ApplySort(query, page, listingSortFields)
	if err := utils.ApplyPagination(query, page).Preload("Category").Find(&listings).Error; err != nil {
		return nil, translateError(err, "listing")
	}

	result := utils.CreatePaginationResult(listings, total, page)
	return &result, nil
}

// ListByCreator returns every listing a user created, newest first.
func (s *ListingService) ListByCreator(ctx context.Context, userID int64) ([]models.Listing, error) {
	var listings []models.Listing
	err := s.db.WithContext(ctx).
		Preload("Category").
		Where("created_by_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&listings).Error
	if err != nil {
		return nil, translateError(err, "listing")
	}
	return listings, nil
}

// Transition moves a listing to status to on behalf of actorID. Approve and
// reject need a verifier; going back to pending is the creator's reapply.
func (s *ListingService) Transition(ctx context.Context, id, actorID int64, to models.ListingStatus, reason string) (*models.Listing, error) {
	if !to.Valid() {
		return nil, violation("unknown listing status %q", to)
	}

	var rejection *string
	if to == models.ListingStatusRejected {
		r, err := rejectionReason(reason)
		if err != nil {
			return nil, err
		}
		rejection = r
	}

	var listing models.Listing
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&listing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("listing", id)
			}
			return err
		}

		actor, err := loadUser(tx, actorID)
		if err != nil {
			return err
		}

		if !listing.Status.CanTransitionTo(to) {
			return invalidTransition("listing %d is %s and cannot become %s", id, listing.Status, to)
		}

		var verifiedBy *int64
		switch to {
		case models.ListingStatusApproved, models.ListingStatusRejected:
			if !actor.IsAdmin() {
				return invalidTransition("user %d is not a verifier", actorID)
			}
			verifiedBy = &actor.ID
		case models.ListingStatusPending:
			if actor.ID != listing.CreatedByID {
				return invalidTransition("only the creator can resubmit listing %d", id)
			}
		}

		old := statusValues(string(listing.Status), listing.RejectionReason)
		updates := map[string]interface{}{
			"status":           to,
			"rejection_reason": rejection,
			"verified_by_id":   verifiedBy,
		}
		if err := tx.Model(&listing).Updates(updates).Error; err != nil {
			return err
		}
		listing.Status = to
		listing.RejectionReason = rejection
		listing.VerifiedByID = verifiedBy

		return writeAudit(tx, actorID, auditAction(string(to)), "listing", id, old, statusValues(string(to), rejection))
	})
	if err != nil {
		return nil, translateError(err, "listing")
	}

	s.log.WithFields(logrus.Fields{
		"listing_id": id,
		"actor_id":   actorID,
		"status":     to,
	}).Info("Listing status changed")

	s.notify(ctx, events.Event{
		Type:         events.ListingStatusChanged,
		ResourceType: "listing",
		ResourceID:   id,
		ActorID:      &actorID,
		RecipientID:  &listing.CreatedByID,
		Status:       string(to),
		Reason:       reason,
		OccurredAt:   time.Now().UTC(),
	})
	return &listing, nil
}

func (s *ListingService) Approve(ctx context.Context, id, verifierID int64) (*models.Listing, error) {
	return s.Transition(ctx, id, verifierID, models.ListingStatusApproved, "")
}

func (s *ListingService) Reject(ctx context.Context, id, verifierID int64, reason string) (*models.Listing, error) {
	return s.Transition(ctx, id, verifierID, models.ListingStatusRejected, reason)
}

// Reapply sends a rejected listing back to moderation.
func (s *ListingService) Reapply(ctx context.Context, id, userID int64) (*models.Listing, error) {
	return s.Transition(ctx, id, userID, models.ListingStatusPending, "")
}

// Delete removes the listing together with its files and matches. Favorites
// and reviews pointing at it block the delete. Stored objects behind the
// removed files are purged after commit; failures only show in the report.
func (s *ListingService) Delete(ctx context.Context, id int64) (cleanup.Report, error) {
	report, err := deleteWithCleanup(ctx, s.db, s.cleaner, func(tx *gorm.DB, batch *cleanup.Batch) error {
		var listing models.Listing
		if err := lockForUpdate(tx).Select("id").First(&listing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("listing", id)
			}
			return err
		}

		if err := collectFiles(tx, "supplier_id", id, batch); err != nil {
			return err
		}
		return tx.Delete(&models.Listing{}, id).Error
	})
	if err != nil {
		return report, translateError(err, "listing")
	}

	s.log.WithFields(logrus.Fields{
		"listing_id":    id,
		"files_removed": report.Removed,
		"files_failed":  len(report.Failures),
	}).Info("Listing deleted")
	return report, nil
}
