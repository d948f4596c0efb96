// internal/services/file_service.go
package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/supplymatch-backend/internal/cleanup"
	"github.com/javajoker/supplymatch-backend/internal/models"
	"github.com/javajoker/supplymatch-backend/internal/storage"
)

type FileService struct {
	db      *gorm.DB
	cleaner *cleanup.Cleaner
	options storage.UploadOptions
	log     logrus.FieldLogger
	now     func() time.Time
}

// FileOwner names the single request or listing a file belongs to.
type FileOwner struct {
	RequestID *int64
	ListingID *int64
}

func RequestOwner(id int64) FileOwner {
	return FileOwner{RequestID: &id}
}

func ListingOwner(id int64) FileOwner {
	return FileOwner{ListingID: &id}
}

type AttachFileRequest struct {
	Owner       FileOwner
	Type        models.FileType
	StoragePath string
	Name        string
}

type UploadFileRequest struct {
	Owner       FileOwner
	Type        models.FileType
	Name        string
	ContentType string
	Body        io.Reader
}

func NewFileService(db *gorm.DB, cleaner *cleanup.Cleaner, options storage.UploadOptions, log logrus.FieldLogger) *FileService {
	return &FileService{
		db:      db,
		cleaner: cleaner,
		options: options,
		log:     log.WithField("service", "files"),
		now:     time.Now,
	}
}

func checkFile(owner FileOwner, fileType models.FileType) error {
	if !fileType.Valid() {
		return violation("unknown file type %q", fileType)
	}
	file := models.File{RequestID: owner.RequestID, ListingID: owner.ListingID}
	if !file.HasSingleOwner() {
		return violation("file must belong to exactly one request or listing")
	}
	return nil
}

// Attach registers an object that is already in storage.
func (s *FileService) Attach(ctx context.Context, req *AttachFileRequest) (*models.File, error) {
	if err := checkFile(req.Owner, req.Type); err != nil {
		return nil, err
	}

	key, err := storage.CleanKey(req.StoragePath)
	if err != nil {
		return nil, violation("%v", err)
	}

	file := &models.File{
		Type:        req.Type,
		StoragePath: key,
		Name:        strings.TrimSpace(req.Name),
		RequestID:   req.Owner.RequestID,
		ListingID:   req.Owner.ListingID,
	}
	if err := s.db.WithContext(ctx).Create(file).Error; err != nil {
		return nil, translateError(err, "file")
	}
	return file, nil
}

// Upload stores the body through the configured backend and registers it.
// When the row cannot be inserted the stored object is removed again.
func (s *FileService) Upload(ctx context.Context, req *UploadFileRequest) (*models.File, error) {
	if err := checkFile(req.Owner, req.Type); err != nil {
		return nil, err
	}
	if err := s.options.CheckName(req.Name); err != nil {
		return nil, violation("%v", err)
	}

	backend := s.cleaner.Backend()
	key := storage.GenerateKey(req.Name, s.now().UTC())
	size, err := backend.Save(ctx, key, s.options.LimitReader(req.Body), req.ContentType)
	if err != nil {
		if errors.Is(err, storage.ErrFileTooLarge) {
			return nil, violation("%v", err)
		}
		return nil, err
	}

	file, err := s.Attach(ctx, &AttachFileRequest{
		Owner:       req.Owner,
		Type:        req.Type,
		StoragePath: key,
		Name:        req.Name,
	})
	if err != nil {
		if removeErr := backend.Remove(context.WithoutCancel(ctx), key); removeErr != nil {
			s.log.WithError(removeErr).WithField("storage_path", key).Warn("Failed to remove orphaned upload")
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"file_id":      file.ID,
		"storage_path": key,
		"size":         size,
	}).Info("File uploaded")
	return file, nil
}

func (s *FileService) Get(ctx context.Context, id int64) (*models.File, error) {
	var file models.File
	if err := s.db.WithContext(ctx).First(&file, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("file", id)
		}
		return nil, translateError(err, "file")
	}
	return &file, nil
}

// Open returns the file row and a reader for its stored object. The caller
// closes the reader.
func (s *FileService) Open(ctx context.Context, id int64) (*models.File, io.ReadCloser, error) {
	file, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	body, err := s.cleaner.Backend().Open(ctx, file.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, notFound("stored object for file", id)
		}
		return nil, nil, err
	}
	return file, body, nil
}

func (s *FileService) ListByRequest(ctx context.Context, requestID int64) ([]models.File, error) {
	return s.listBy(ctx, "request_id", requestID)
}

func (s *FileService) ListByListing(ctx context.Context, listingID int64) ([]models.File, error) {
	return s.listBy(ctx, "supplier_id", listingID)
}

func (s *FileService) listBy(ctx context.Context, column string, ownerID int64) ([]models.File, error) {
	var files []models.File
	if err := s.db.WithContext(ctx).Where(column+" = ?", ownerID).Order("id").Find(&files).Error; err != nil {
		return nil, translateError(err, "file")
	}
	return files, nil
}

// Delete removes one file row and then its stored object.
func (s *FileService) Delete(ctx context.Context, id int64) (cleanup.Report, error) {
	report, err := deleteWithCleanup(ctx, s.db, s.cleaner, func(tx *gorm.DB, batch *cleanup.Batch) error {
		var file models.File
		if err := lockForUpdate(tx).First(&file, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("file", id)
			}
			return err
		}

		if err := tx.Delete(&file).Error; err != nil {
			return err
		}
		batch.Add(file)
		return nil
	})
	if err != nil {
		return report, translateError(err, "file")
	}
	return report, nil
}
