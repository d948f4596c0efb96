// internal/services/help_service.go
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/supplymatch-backend/internal/database"
	"github.com/javajoker/supplymatch-backend/internal/events"
	"github.com/javajoker/supplymatch-backend/internal/models"
)

type HelpService struct {
	db  *gorm.DB
	now func() time.Time
	notifier
}

func NewHelpService(db *gorm.DB, publisher events.Publisher, log logrus.FieldLogger) *HelpService {
	return &HelpService{
		db:       db,
		now:      time.Now,
		notifier: notifier{publisher: publisher, log: log.WithField("service", "help")},
	}
}

func (s *HelpService) Create(ctx context.Context, userID int64, text string) (*models.HelpRequest, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, violation("help request text is required")
	}

	help := &models.HelpRequest{
		UserID:  userID,
		Request: text,
		Status:  models.HelpStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(help).Error; err != nil {
		return nil, translateError(err, "help request")
	}

	s.notify(ctx, events.Event{
		Type:         events.HelpRequestCreated,
		ResourceType: "help_request",
		ResourceID:   help.ID,
		ActorID:      &userID,
		Status:       string(help.Status),
		OccurredAt:   s.now().UTC(),
	})
	return help, nil
}

// Answer closes a pending help request with a verifier's reply.
func (s *HelpService) Answer(ctx context.Context, id, adminID int64, answer string) (*models.HelpRequest, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, violation("answer is required")
	}

	var help models.HelpRequest
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&help, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("help request", id)
			}
			return err
		}

		if _, err := requireVerifier(tx, adminID); err != nil {
			return err
		}
		if help.Status != models.HelpStatusPending {
			return invalidTransition("help request %d is already %s", id, help.Status)
		}

		answeredAt := s.now()
		updates := map[string]interface{}{
			"status":      models.HelpStatusAnswered,
			"admin_id":    adminID,
			"answer":      answer,
			"answered_at": answeredAt,
		}
		if err := tx.Model(&help).Updates(updates).Error; err != nil {
			return err
		}
		help.Status = models.HelpStatusAnswered
		help.AdminID = &adminID
		help.Answer = &answer
		help.AnsweredAt = &answeredAt

		return writeAudit(tx, adminID, auditActionAnswer, "help_request", id,
			statusValues(string(models.HelpStatusPending), nil),
			statusValues(string(models.HelpStatusAnswered), nil))
	})
	if err != nil {
		return nil, translateError(err, "help request")
	}

	s.notify(ctx, events.Event{
		Type:         events.HelpRequestAnswered,
		ResourceType: "help_request",
		ResourceID:   id,
		ActorID:      &adminID,
		RecipientID:  &help.UserID,
		Status:       string(help.Status),
		OccurredAt:   s.now().UTC(),
	})
	return &help, nil
}

func (s *HelpService) Get(ctx context.Context, id int64) (*models.HelpRequest, error) {
	var help models.HelpRequest
	if err := s.db.WithContext(ctx).Preload("User").First(&help, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("help request", id)
		}
		return nil, translateError(err, "help request")
	}
	return &help, nil
}

// ListPending returns unanswered help requests, oldest first.
func (s *HelpService) ListPending(ctx context.Context) ([]models.HelpRequest, error) {
	var pending []models.HelpRequest
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("status = ?", models.HelpStatusPending).
		Order("created_at, id").
		Find(&pending).Error
	if err != nil {
		return nil, translateError(err, "help request")
	}
	return pending, nil
}
