// internal/services/moderation.go
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/supplymatch-backend/internal/events"
	"github.com/javajoker/supplymatch-backend/internal/models"
)

const (
	auditActionApprove = "approve"
	auditActionReject  = "reject"
	auditActionReapply = "reapply"
	auditActionClose   = "close"
	auditActionAnswer  = "answer"
)

// notifier publishes events after commit. Publishing is best effort.
type notifier struct {
	publisher events.Publisher
	log       logrus.FieldLogger
}

func (n notifier) notify(ctx context.Context, event events.Event) {
	if n.publisher == nil {
		return
	}
	if err := n.publisher.Publish(ctx, event); err != nil {
		n.log.WithError(err).WithFields(logrus.Fields{
			"event":       event.Type,
			"resource_id": event.ResourceID,
		}).Warn("Failed to publish event")
	}
}

func lockForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func lockForShare(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "SHARE"})
}

func loadUser(tx *gorm.DB, id int64) (*models.User, error) {
	var user models.User
	if err := tx.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user", id)
		}
		return nil, err
	}
	return &user, nil
}

// requireVerifier loads the acting user and checks the admin role.
func requireVerifier(tx *gorm.DB, actorID int64) (*models.User, error) {
	actor, err := loadUser(tx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, invalidTransition("user %d is not a verifier", actorID)
	}
	return actor, nil
}

func rejectionReason(reason string) (*string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, violation("rejection requires a reason")
	}
	return &reason, nil
}

func writeAudit(tx *gorm.DB, actorID int64, action, resourceType string, resourceID int64, oldValues, newValues datatypes.JSONMap) error {
	entry := models.AuditLog{
		ActorID:      &actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		OldValues:    oldValues,
		NewValues:    newValues,
	}
	return tx.Create(&entry).Error
}

func auditAction(status string) string {
	switch status {
	case string(models.ListingStatusApproved):
		return auditActionApprove
	case string(models.ListingStatusRejected):
		return auditActionReject
	case string(models.ListingStatusPending):
		return auditActionReapply
	case string(models.RequestStatusClosed):
		return auditActionClose
	}
	return status
}

func statusValues(status string, reason *string) datatypes.JSONMap {
	values := datatypes.JSONMap{"status": status}
	if reason != nil {
		values["rejection_reason"] = *reason
	}
	return values
}
