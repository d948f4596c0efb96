// internal/services/request_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/supplymatch-backend/internal/cleanup"
	"github.com/javajoker/supplymatch-backend/internal/database"
	"github.com/javajoker/supplymatch-backend/internal/events"
	"github.com/javajoker/supplymatch-backend/internal/models"
	"github.com/javajoker/supplymatch-backend/internal/utils"
)

type RequestService struct {
	db      *gorm.DB
	cleaner *cleanup.Cleaner
	notifier
}

type CreateRequestRequest struct {
	CategoryID      int64  `json:"category_id"`
	Description     string `json:"description"`
	ContactUsername string `json:"contact_username,omitempty"`
	ContactPhone    string `json:"contact_phone,omitempty"`
	ContactEmail    string `json:"contact_email,omitempty"`
}

type UpdateRequestRequest struct {
	CategoryID      *int64  `json:"category_id,omitempty"`
	Description     *string `json:"description,omitempty"`
	ContactUsername *string `json:"contact_username,omitempty"`
	ContactPhone    *string `json:"contact_phone,omitempty"`
	ContactEmail    *string `json:"contact_email,omitempty"`
}

type RequestSearchParams struct {
	utils.PaginationParams
	Status      *models.RequestStatus `json:"status,omitempty"`
	CategoryID  *int64                `json:"category_id,omitempty"`
	CreatedByID *int64                `json:"created_by_id,omitempty"`
}

var requestSortFields = []string{"created_at", "updated_at"}

func NewRequestService(db *gorm.DB, cleaner *cleanup.Cleaner, publisher events.Publisher, log logrus.FieldLogger) *RequestService {
	return &RequestService{
		db:       db,
		cleaner:  cleaner,
		notifier: notifier{publisher: publisher, log: log.WithField("service", "requests")},
	}
}

func (s *RequestService) Create(ctx context.Context, creatorID int64, req *CreateRequestRequest) (*models.Request, error) {
	request := &models.Request{
		CategoryID:      req.CategoryID,
		Description:     req.Description,
		ContactUsername: req.ContactUsername,
		ContactPhone:    req.ContactPhone,
		ContactEmail:    req.ContactEmail,
		Status:          models.RequestStatusPending,
		CreatedByID:     creatorID,
	}

	if err := validateEntity(request, "request"); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(request).Error; err != nil {
		return nil, translateError(err, "request")
	}
	return request, nil
}

func (s *RequestService) Get(ctx context.Context, id int64) (*models.Request, error) {
	var request models.Request
	err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("CreatedBy").
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&request, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("request", id)
		}
		return nil, translateError(err, "request")
	}
	return &request, nil
}

func (s *RequestService) Update(ctx context.Context, id int64, req *UpdateRequestRequest) (*models.Request, error) {
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var request models.Request
		if err := lockForUpdate(tx).First(&request, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("request", id)
			}
			return err
		}

		if request.Status.IsTerminal() {
			return invalidTransition("request %d is closed", id)
		}

		updates := map[string]interface{}{}
		if req.CategoryID != nil {
			request.CategoryID = *req.CategoryID
			updates["category_id"] = *req.CategoryID
		}
		if req.Description != nil {
			request.Description = *req.Description
			updates["description"] = *req.Description
		}
		if req.ContactUsername != nil {
			request.ContactUsername = *req.ContactUsername
			updates["contact_username"] = *req.ContactUsername
		}
		if req.ContactPhone != nil {
			request.ContactPhone = *req.ContactPhone
			updates["contact_phone"] = *req.ContactPhone
		}
		if req.ContactEmail != nil {
			request.ContactEmail = *req.ContactEmail
			updates["contact_email"] = *req.ContactEmail
		}
		if len(updates) == 0 {
			return nil
		}

		if err := validateEntity(&request, "request"); err != nil {
			return err
		}
		return tx.Model(&request).Updates(updates).Error
	})
	if err != nil {
		return nil, translateError(err, "request")
	}
	return s.Get(ctx, id)
}

func (s *RequestService) List(ctx context.Context, params *RequestSearchParams) (*utils.PaginationResult[models.Request], error) {
	page := params.PaginationParams.Normalize()

	query := s.db.WithContext(ctx).Model(&models.Request{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.CategoryID != nil {
		query = query.Where("category_id = ?", *params.CategoryID)
	}
	if params.CreatedByID != nil {
		query = query.Where("created_by_id = ?", *params.CreatedByID)
	}
	if page.Search != "" {
		query = query.Where("description ILIKE ?", "%"+page.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, translateError(err, "request")
	}

	var requests []models.Request
	query = utils.ApplySort(query, page, requestSortFields)
	if err := utils.ApplyPagination(query, page).Preload("Category").Find(&requests).Error; err != nil {
		return nil, translateError(err, "request")
	}

	result := utils.CreatePaginationResult(requests, total, page)
	return &result, nil
}

func (s *RequestService) ListByCreator(ctx context.Context, userID int64) ([]models.Request, error) {
	var requests []models.Request
	err := s.db.WithContext(ctx).
		Preload("Category").
		Where("created_by_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&requests).Error
	if err != nil {
		return nil, translateError(err, "request")
	}
	return requests, nil
}

// Transition moves a request to status to on behalf of actorID.
//
// Approve and reject need a verifier, reapply needs the creator, and close
// is open to the creator or a verifier from any state but closed.
func (s *RequestService) Transition(ctx context.Context, id, actorID int64, to models.RequestStatus, reason string) (*models.Request, error) {
	if !to.Valid() {
		return nil, violation("unknown request status %q", to)
	}

	var rejection *string
	if to == models.RequestStatusRejected {
		r, err := rejectionReason(reason)
		if err != nil {
			return nil, err
		}
		rejection = r
	}

	var request models.Request
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&request, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("request", id)
			}
			return err
		}

		actor, err := loadUser(tx, actorID)
		if err != nil {
			return err
		}

		if !request.Status.CanTransitionTo(to) {
			return invalidTransition("request %d is %s and cannot become %s", id, request.Status, to)
		}

		old := statusValues(string(request.Status), request.RejectionReason)
		updates := map[string]interface{}{"status": to}
		switch to {
		case models.RequestStatusApproved, models.RequestStatusRejected:
			if !actor.IsAdmin() {
				return invalidTransition("user %d is not a verifier", actorID)
			}
			updates["verified_by_id"] = actor.ID
			updates["rejection_reason"] = rejection
			request.VerifiedByID = &actor.ID
			request.RejectionReason = rejection
		case models.RequestStatusPending:
			if actor.ID != request.CreatedByID {
				return invalidTransition("only the creator can resubmit request %d", id)
			}
			updates["verified_by_id"] = nil
			updates["rejection_reason"] = nil
			request.VerifiedByID = nil
			request.RejectionReason = nil
		case models.RequestStatusClosed:
			// Verifier and reason stay as they were.
			if actor.ID != request.CreatedByID && !actor.IsAdmin() {
				return invalidTransition("user %d cannot close request %d", actorID, id)
			}
		}

		if err := tx.Model(&request).Updates(updates).Error; err != nil {
			return err
		}
		request.Status = to

		return writeAudit(tx, actorID, auditAction(string(to)), "request", id, old, statusValues(string(to), rejection))
	})
	if err != nil {
		return nil, translateError(err, "request")
	}

	s.log.WithFields(logrus.Fields{
		"request_id": id,
		"actor_id":   actorID,
		"status":     to,
	}).Info("Request status changed")

	s.notify(ctx, events.Event{
		Type:         events.RequestStatusChanged,
		ResourceType: "request",
		ResourceID:   id,
		ActorID:      &actorID,
		RecipientID:  &request.CreatedByID,
		Status:       string(to),
		Reason:       reason,
		OccurredAt:   time.Now().UTC(),
	})
	return &request, nil
}

func (s *RequestService) Approve(ctx context.Context, id, verifierID int64) (*models.Request, error) {
	return s.Transition(ctx, id, verifierID, models.RequestStatusApproved, "")
}

func (s *RequestService) Reject(ctx context.Context, id, verifierID int64, reason string) (*models.Request, error) {
	return s.Transition(ctx, id, verifierID, models.RequestStatusRejected, reason)
}

func (s *RequestService) Reapply(ctx context.Context, id, userID int64) (*models.Request, error) {
	return s.Transition(ctx, id, userID, models.RequestStatusPending, "")
}

func (s *RequestService) Close(ctx context.Context, id, actorID int64) (*models.Request, error) {
	return s.Transition(ctx, id, actorID, models.RequestStatusClosed, "")
}

// SuppliersForRequest returns the listings that accepted a match for the
// request.
func (s *RequestService) SuppliersForRequest(ctx context.Context, requestID int64) ([]models.Listing, error) {
	var listings []models.Listing
	err := s.db.WithContext(ctx).
		Joins("JOIN matches ON matches.supplier_id = suppliers.id").
		Where("matches.request_id = ? AND matches.status IN ?", requestID,
			[]models.MatchStatus{models.MatchStatusAccepted, models.MatchStatusClosed}).
		Order("suppliers.id").
		Find(&listings).Error
	if err != nil {
		return nil, translateError(err, "listing")
	}
	return listings, nil
}

func (s *RequestService) MatchesCount(ctx context.Context, requestID int64) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Match{}).Where("request_id = ?", requestID).Count(&count).Error; err != nil {
		return 0, translateError(err, "match")
	}
	return count, nil
}

// Delete removes the request with its files and matches and purges the
// stored objects after commit.
func (s *RequestService) Delete(ctx context.Context, id int64) (cleanup.Report, error) {
	report, err := deleteWithCleanup(ctx, s.db, s.cleaner, func(tx *gorm.DB, batch *cleanup.Batch) error {
		var request models.Request
		if err := lockForUpdate(tx).Select("id").First(&request, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("request", id)
			}
			return err
		}

		if err := collectFiles(tx, "request_id", id, batch); err != nil {
			return err
		}
		return tx.Delete(&models.Request{}, id).Error
	})
	if err != nil {
		return report, translateError(err, "request")
	}

	s.log.WithFields(logrus.Fields{
		"request_id":    id,
		"files_removed": report.Removed,
		"files_failed":  len(report.Failures),
	}).Info("Request deleted")
	return report, nil
}
