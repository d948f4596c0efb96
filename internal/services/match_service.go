// internal/services/match_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/supplymatch-backend/internal/database"
	"github.com/javajoker/supplymatch-backend/internal/events"
	"github.com/javajoker/supplymatch-backend/internal/models"
)

type MatchService struct {
	db *gorm.DB
	notifier
}

func NewMatchService(db *gorm.DB, publisher events.Publisher, log logrus.FieldLogger) *MatchService {
	return &MatchService{
		db:       db,
		notifier: notifier{publisher: publisher, log: log.WithField("service", "matches")},
	}
}

// openRequest share-locks the request so it cannot be closed while a match
// is being added to it.
func openRequest(tx *gorm.DB, requestID int64) (*models.Request, error) {
	var request models.Request
	if err := lockForShare(tx).First(&request, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("request", requestID)
		}
		return nil, err
	}
	if request.Status.IsTerminal() {
		return nil, invalidTransition("request %d is closed", requestID)
	}
	return &request, nil
}

// Create links a request and a listing with a pending match.
func (s *MatchService) Create(ctx context.Context, requestID, listingID int64) (*models.Match, error) {
	var (
		match   *models.Match
		listing models.Listing
	)
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if _, err := openRequest(tx, requestID); err != nil {
			return err
		}

		if err := lockForShare(tx).First(&listing, listingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("listing", listingID)
			}
			return err
		}

		match = &models.Match{
			RequestID: requestID,
			ListingID: listingID,
			Status:    models.MatchStatusPending,
		}
		return tx.Create(match).Error
	})
	if err != nil {
		return nil, translateError(err, "match")
	}

	s.notifyCreated(ctx, match, listing.CreatedByID)
	return match, nil
}

// ProposeForRequest creates pending matches between an approved request and
// every approved listing of its category. The requester's own listings and
// already matched listings are skipped.
func (s *MatchService) ProposeForRequest(ctx context.Context, requestID int64) ([]models.Match, error) {
	var (
		matches  []models.Match
		owners   = map[int64]int64{}
		listings []models.Listing
	)
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		// Exclusive lock: two proposals for one request must not race on
		// the same pairs.
		var request models.Request
		if err := lockForUpdate(tx).First(&request, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("request", requestID)
			}
			return err
		}
		if request.Status != models.RequestStatusApproved {
			return invalidTransition("request %d is %s, only approved requests are proposed", requestID, request.Status)
		}

		matched := tx.Model(&models.Match{}).Select("supplier_id").Where("request_id = ?", requestID)
		err := tx.
			Where("category_id = ? AND status = ? AND created_by_id <> ?",
				request.CategoryID, models.ListingStatusApproved, request.CreatedByID).
			Where("id NOT IN (?)", matched).
			Order("id").
			Find(&listings).Error
		if err != nil {
			return err
		}
		if len(listings) == 0 {
			return nil
		}

		matches = make([]models.Match, 0, len(listings))
		for _, listing := range listings {
			matches = append(matches, models.Match{
				RequestID: requestID,
				ListingID: listing.ID,
				Status:    models.MatchStatusPending,
			})
			owners[listing.ID] = listing.CreatedByID
		}
		return tx.Create(&matches).Error
	})
	if err != nil {
		return nil, translateError(err, "match")
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"proposed":   len(matches),
	}).Info("Proposed matches for request")

	for i := range matches {
		s.notifyCreated(ctx, &matches[i], owners[matches[i].ListingID])
	}
	return matches, nil
}

func (s *MatchService) notifyCreated(ctx context.Context, match *models.Match, listingOwner int64) {
	s.notify(ctx, events.Event{
		Type:         events.MatchCreated,
		ResourceType: "match",
		ResourceID:   match.ID,
		RecipientID:  &listingOwner,
		Status:       string(match.Status),
		OccurredAt:   time.Now().UTC(),
	})
}

// Respond records the listing owner's answer to a pending match.
func (s *MatchService) Respond(ctx context.Context, matchID, actorID int64, accept bool) (*models.Match, error) {
	to := models.MatchStatusRejected
	if accept {
		to = models.MatchStatusAccepted
	}

	return s.transition(ctx, matchID, actorID, to, func(tx *gorm.DB, match *models.Match, actor *models.User) (int64, error) {
		var listing models.Listing
		if err := tx.Select("id", "created_by_id").First(&listing, match.ListingID).Error; err != nil {
			return 0, err
		}
		if actor.ID != listing.CreatedByID {
			return 0, invalidTransition("user %d does not own listing %d", actor.ID, listing.ID)
		}

		var request models.Request
		if err := tx.Select("id", "status", "created_by_id").First(&request, match.RequestID).Error; err != nil {
			return 0, err
		}
		if request.Status.IsTerminal() {
			return 0, invalidTransition("request %d is closed", request.ID)
		}
		return request.CreatedByID, nil
	})
}

// Close ends a pending or accepted match. The request creator or a verifier
// may close it.
func (s *MatchService) Close(ctx context.Context, matchID, actorID int64) (*models.Match, error) {
	return s.transition(ctx, matchID, actorID, models.MatchStatusClosed, func(tx *gorm.DB, match *models.Match, actor *models.User) (int64, error) {
		var request models.Request
		if err := tx.Select("id", "created_by_id").First(&request, match.RequestID).Error; err != nil {
			return 0, err
		}
		if actor.ID != request.CreatedByID && !actor.IsAdmin() {
			return 0, invalidTransition("user %d cannot close match %d", actor.ID, match.ID)
		}

		var listing models.Listing
		if err := tx.Select("id", "created_by_id").First(&listing, match.ListingID).Error; err != nil {
			return 0, err
		}
		return listing.CreatedByID, nil
	})
}

// authorizeMatch checks the actor and returns the user to notify.
type authorizeMatch func(tx *gorm.DB, match *models.Match, actor *models.User) (int64, error)

func (s *MatchService) transition(ctx context.Context, matchID, actorID int64, to models.MatchStatus, authorize authorizeMatch) (*models.Match, error) {
	var (
		match     models.Match
		recipient int64
	)
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&match, matchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("match", matchID)
			}
			return err
		}

		actor, err := loadUser(tx, actorID)
		if err != nil {
			return err
		}

		if !match.Status.CanTransitionTo(to) {
			return invalidTransition("match %d is %s and cannot become %s", matchID, match.Status, to)
		}

		recipient, err = authorize(tx, &match, actor)
		if err != nil {
			return err
		}

		if err := tx.Model(&match).Update("status", to).Error; err != nil {
			return err
		}
		match.Status = to
		return nil
	})
	if err != nil {
		return nil, translateError(err, "match")
	}

	s.notify(ctx, events.Event{
		Type:         events.MatchStatusChanged,
		ResourceType: "match",
		ResourceID:   matchID,
		ActorID:      &actorID,
		RecipientID:  &recipient,
		Status:       string(to),
		OccurredAt:   time.Now().UTC(),
	})
	return &match, nil
}

func (s *MatchService) Get(ctx context.Context, id int64) (*models.Match, error) {
	var match models.Match
	if err := s.db.WithContext(ctx).Preload("Request").Preload("Listing").First(&match, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("match", id)
		}
		return nil, translateError(err, "match")
	}
	return &match, nil
}

// ListByRequest returns the request's matches, optionally only those in
// status.
func (s *MatchService) ListByRequest(ctx context.Context, requestID int64, status *models.MatchStatus) ([]models.Match, error) {
	query := s.db.WithContext(ctx).Preload("Listing").Where("request_id = ?", requestID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var matches []models.Match
	if err := query.Order("id").Find(&matches).Error; err != nil {
		return nil, translateError(err, "match")
	}
	return matches, nil
}

func (s *MatchService) ListByListing(ctx context.Context, listingID int64, status *models.MatchStatus) ([]models.Match, error) {
	query := s.db.WithContext(ctx).Preload("Request").Where("supplier_id = ?", listingID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var matches []models.Match
	if err := query.Order("id").Find(&matches).Error; err != nil {
		return nil, translateError(err, "match")
	}
	return matches, nil
}

func (s *MatchService) Delete(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&models.Match{}, id)
	if result.Error != nil {
		return translateError(result.Error, "match")
	}
	if result.RowsAffected == 0 {
		return notFound("match", id)
	}
	return nil
}
