// internal/services/store.go
package services

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/supplymatch-backend/internal/cleanup"
	"github.com/javajoker/supplymatch-backend/internal/events"
	"github.com/javajoker/supplymatch-backend/internal/storage"
)

// Store groups the services the bot layer and the CLI work with.
type Store struct {
	Users      *UserService
	Categories *CategoryService
	Listings   *ListingService
	Requests   *RequestService
	Files      *FileService
	Matches    *MatchService
	Favorites  *FavoriteService
	Reviews    *ReviewService
	Help       *HelpService
}

type Deps struct {
	DB        *gorm.DB
	Cleaner   *cleanup.Cleaner
	Publisher events.Publisher
	Upload    storage.UploadOptions
	Log       logrus.FieldLogger
}

func NewStore(deps Deps) *Store {
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}

	return &Store{
		Users:      NewUserService(deps.DB, deps.Log),
		Categories: NewCategoryService(deps.DB),
		Listings:   NewListingService(deps.DB, deps.Cleaner, deps.Publisher, deps.Log),
		Requests:   NewRequestService(deps.DB, deps.Cleaner, deps.Publisher, deps.Log),
		Files:      NewFileService(deps.DB, deps.Cleaner, deps.Upload, deps.Log),
		Matches:    NewMatchService(deps.DB, deps.Publisher, deps.Log),
		Favorites:  NewFavoriteService(deps.DB),
		Reviews:    NewReviewService(deps.DB),
		Help:       NewHelpService(deps.DB, deps.Publisher, deps.Log),
	}
}
