// internal/services/user_service.go
package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/supplymatch-backend/internal/models"
)

type UserService struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

type CreateUserRequest struct {
	ExternalID int64  `json:"external_id" validate:"required"`
	Username   string `json:"username,omitempty" validate:"max=100"`
	FirstName  string `json:"first_name,omitempty" validate:"max=100"`
	LastName   string `json:"last_name,omitempty" validate:"max=100"`
	Phone      string `json:"phone,omitempty" validate:"omitempty,phone"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
}

type UpdateUserRequest struct {
	Username  *string `json:"username,omitempty" validate:"omitempty,max=100"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,phone"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
}

func NewUserService(db *gorm.DB, log logrus.FieldLogger) *UserService {
	return &UserService{db: db, log: log.WithField("service", "users")}
}

func (req *CreateUserRequest) toModel() *models.User {
	return &models.User{
		ExternalID: req.ExternalID,
		Username:   req.Username,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		Email:      req.Email,
		Role:       models.RoleUser,
	}
}

func (s *UserService) Create(ctx context.Context, req *CreateUserRequest) (*models.User, error) {
	if err := validateEntity(req, "user"); err != nil {
		return nil, err
	}

	user := req.toModel()
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, translateError(err, "user")
	}
	return user, nil
}

// EnsureUser returns the user with req.ExternalID, registering it first when
// it is unknown. The second return value reports whether a row was created.
func (s *UserService) EnsureUser(ctx context.Context, req *CreateUserRequest) (*models.User, bool, error) {
	if err := validateEntity(req, "user"); err != nil {
		return nil, false, err
	}

	user := req.toModel()
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "external_id"}}, DoNothing: true}).
		Create(user)
	if result.Error != nil {
		return nil, false, translateError(result.Error, "user")
	}

	if result.RowsAffected == 1 {
		s.log.WithField("external_id", req.ExternalID).Info("Registered new user")
		return user, true, nil
	}

	existing, err := s.GetByExternalID(ctx, req.ExternalID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *UserService) Exists(ctx context.Context, externalID int64) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("external_id = ?", externalID).Count(&count).Error; err != nil {
		return false, translateError(err, "user")
	}
	return count > 0, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return loadUser(s.db.WithContext(ctx), id)
}

func (s *UserService) GetByExternalID(ctx context.Context, externalID int64) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user with external id", externalID)
		}
		return nil, translateError(err, "user")
	}
	return &user, nil
}

func (s *UserService) Update(ctx context.Context, id int64, req *UpdateUserRequest) (*models.User, error) {
	if err := validateEntity(req, "user"); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Username != nil {
		updates["username"] = *req.Username
	}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}

	db := s.db.WithContext(ctx)
	if len(updates) > 0 {
		result := db.Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return nil, translateError(result.Error, "user")
		}
		if result.RowsAffected == 0 {
			return nil, notFound("user", id)
		}
	}
	return loadUser(db, id)
}

// SetRole grants or revokes the verifier role.
func (s *UserService) SetRole(ctx context.Context, id int64, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, violation("unknown role %q", role)
	}

	db := s.db.WithContext(ctx)
	result := db.Model(&models.User{}).Where("id = ?", id).Update("role", role)
	if result.Error != nil {
		return nil, translateError(result.Error, "user")
	}
	if result.RowsAffected == 0 {
		return nil, notFound("user", id)
	}

	s.log.WithFields(logrus.Fields{"user_id": id, "role": role}).Info("User role changed")
	return loadUser(db, id)
}

// Delete fails with ErrConstraintViolation while the user still owns
// listings, requests, favorites, reviews or help requests.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&models.User{}, id)
	if result.Error != nil {
		return translateError(result.Error, "user")
	}
	if result.RowsAffected == 0 {
		return notFound("user", id)
	}
	return nil
}

func (s *UserService) ListAdmins(ctx context.Context) ([]models.User, error) {
	var admins []models.User
	if err := s.db.WithContext(ctx).Where("role = ?", models.RoleAdmin).Order("id").Find(&admins).Error; err != nil {
		return nil, translateError(err, "user")
	}
	return admins, nil
}
