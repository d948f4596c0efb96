package services

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/javajoker/supplymatch-backend/internal/cleanup"
	"github.com/javajoker/supplymatch-backend/internal/config"
	"github.com/javajoker/supplymatch-backend/internal/database"
	"github.com/javajoker/supplymatch-backend/internal/events"
	"github.com/javajoker/supplymatch-backend/internal/models"
	"github.com/javajoker/supplymatch-backend/internal/storage"
)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) ofType(t events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []events.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// switchableBackend fails every Remove while broken is set.
type switchableBackend struct {
	*storage.LocalBackend
	mu     sync.Mutex
	broken bool
}

var errDiskBusy = errors.New("device busy")

func (b *switchableBackend) setBroken(broken bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broken = broken
}

func (b *switchableBackend) Remove(ctx context.Context, key string) error {
	b.mu.Lock()
	broken := b.broken
	b.mu.Unlock()

	if broken {
		return errDiskBusy
	}
	return b.LocalBackend.Remove(ctx, key)
}

type StoreTestSuite struct {
	suite.Suite
	ctx       context.Context
	db        *gorm.DB
	root      string
	backend   *switchableBackend
	cleaner   *cleanup.Cleaner
	publisher *recordingPublisher
	hook      *logtest.Hook
	store     *Store

	category *models.Category
	admin    *models.User
	owner    *models.User
	buyer    *models.User
}

func (suite *StoreTestSuite) SetupSuite() {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		suite.T().Skip("TEST_DATABASE_URL not set")
	}

	log, _ := logtest.NewNullLogger()
	db, err := database.Initialize(config.DatabaseConfig{
		URL:          dsn,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		MaxLifetime:  60,
		LogLevel:     "silent",
	}, log)
	require.NoError(suite.T(), err)

	suite.ctx = context.Background()
	suite.db = db
	require.NoError(suite.T(), database.RunMigrations(suite.ctx, db, log))
}

func (suite *StoreTestSuite) TearDownSuite() {
	if suite.db != nil {
		log, _ := logtest.NewNullLogger()
		database.Close(suite.db, log)
	}
}

func (suite *StoreTestSuite) SetupTest() {
	require.NoError(suite.T(), suite.db.Exec(`TRUNCATE users, main_categories, categories, suppliers, requests,
		files, matches, favorites, help_requests, reviews, audit_logs, file_cleanup_failures
		RESTART IDENTITY CASCADE`).Error)

	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	suite.hook = hook

	suite.root = suite.T().TempDir()
	suite.backend = &switchableBackend{LocalBackend: storage.NewLocalBackend(suite.root)}
	suite.cleaner = cleanup.NewCleaner(suite.backend, log, cleanup.WithRecorder(suite.db))
	suite.publisher = &recordingPublisher{}
	suite.store = NewStore(Deps{
		DB:        suite.db,
		Cleaner:   suite.cleaner,
		Publisher: suite.publisher,
		Upload:    storage.UploadOptions{MaxSize: 1024, AllowedTypes: []string{".jpg", ".pdf"}},
		Log:       log,
	})

	_, err := suite.store.Categories.CreateMainCategory(suite.ctx, "Food")
	require.NoError(suite.T(), err)
	suite.category, err = suite.store.Categories.CreateCategory(suite.ctx, "Food", "Dairy")
	require.NoError(suite.T(), err)

	suite.admin = suite.mkUser(1000)
	suite.admin, err = suite.store.Users.SetRole(suite.ctx, suite.admin.ID, models.RoleAdmin)
	require.NoError(suite.T(), err)
	suite.owner = suite.mkUser(2000)
	suite.buyer = suite.mkUser(3000)
}

func (suite *StoreTestSuite) mkUser(externalID int64) *models.User {
	user, err := suite.store.Users.Create(suite.ctx, &CreateUserRequest{ExternalID: externalID, Username: "user"})
	require.NoError(suite.T(), err)
	return user
}

func (suite *StoreTestSuite) mkListing(owner *models.User) *models.Listing {
	listing, err := suite.store.Listings.Create(suite.ctx, owner.ID, &CreateListingRequest{
		CompanyName: "Acme Dairy",
		ProductName: "Milk",
		CategoryID:  suite.category.ID,
		Tags:        []string{"milk", "organic"},
	})
	require.NoError(suite.T(), err)
	return listing
}

func (suite *StoreTestSuite) mkRequest(owner *models.User) *models.Request {
	request, err := suite.store.Requests.Create(suite.ctx, owner.ID, &CreateRequestRequest{
		CategoryID:  suite.category.ID,
		Description: "Need 200 litres of milk weekly",
	})
	require.NoError(suite.T(), err)
	return request
}

func (suite *StoreTestSuite) upload(owner FileOwner, name, body string) *models.File {
	file, err := suite.store.Files.Upload(suite.ctx, &UploadFileRequest{
		Owner: owner,
		Type:  models.FileTypeDocument,
		Name:  name,
		Body:  bytes.NewBufferString(body),
	})
	require.NoError(suite.T(), err)
	return file
}

func (suite *StoreTestSuite) storedObjects() int {
	n := 0
	err := filepath.WalkDir(suite.root, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return err
	})
	require.NoError(suite.T(), err)
	return n
}

func (suite *StoreTestSuite) count(model interface{}) int64 {
	var n int64
	require.NoError(suite.T(), suite.db.Model(model).Count(&n).Error)
	return n
}

func (suite *StoreTestSuite) TestListingModeration() {
	t := suite.T()
	listing := suite.mkListing(suite.owner)
	assert.Equal(t, models.ListingStatusPending, listing.Status)

	_, err := suite.store.Listings.Approve(suite.ctx, listing.ID, suite.owner.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = suite.store.Listings.Reject(suite.ctx, listing.ID, suite.admin.ID, "  ")
	assert.ErrorIs(t, err, ErrConstraintViolation)

	rejected, err := suite.store.Listings.Reject(suite.ctx, listing.ID, suite.admin.ID, "missing certificate")
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusRejected, rejected.Status)
	require.NotNil(t, rejected.VerifiedByID)
	assert.Equal(t, suite.admin.ID, *rejected.VerifiedByID)

	_, err = suite.store.Listings.Approve(suite.ctx, listing.ID, suite.admin.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = suite.store.Listings.Reapply(suite.ctx, listing.ID, suite.buyer.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	pending, err := suite.store.Listings.Reapply(suite.ctx, listing.ID, suite.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusPending, pending.Status)
	assert.Nil(t, pending.RejectionReason)
	assert.Nil(t, pending.VerifiedByID)

	approved, err := suite.store.Listings.Approve(suite.ctx, listing.ID, suite.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusApproved, approved.Status)

	var audits []models.AuditLog
	require.NoError(t, suite.db.Where("resource_type = ? AND resource_id = ?", "listing", listing.ID).Order("id").Find(&audits).Error)
	require.Len(t, audits, 3)
	assert.Equal(t, "reject", audits[0].Action)
	assert.Equal(t, "missing certificate", audits[0].NewValues["rejection_reason"])
	assert.Equal(t, "approve", audits[2].Action)

	changes := suite.publisher.ofType(events.ListingStatusChanged)
	require.Len(t, changes, 3)
	assert.Equal(t, suite.owner.ID, *changes[0].RecipientID)
	assert.Equal(t, "missing certificate", changes[0].Reason)
}

func (suite *StoreTestSuite) TestUnknownStatusIsConstraintViolation() {
	listing := suite.mkListing(suite.owner)

	_, err := suite.store.Listings.Transition(suite.ctx, listing.ID, suite.admin.ID, models.ListingStatus("archived"), "")
	assert.ErrorIs(suite.T(), err, ErrConstraintViolation)

	_, err = suite.store.Listings.Transition(suite.ctx, listing.ID, suite.admin.ID, models.ListingStatus("closed"), "")
	assert.ErrorIs(suite.T(), err, ErrConstraintViolation)

	_, err = suite.store.Listings.Approve(suite.ctx, 9999, suite.admin.ID)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *StoreTestSuite) TestConcurrentVerifiersSerialize() {
	t := suite.T()
	second := suite.mkUser(1001)
	_, err := suite.store.Users.SetRole(suite.ctx, second.ID, models.RoleAdmin)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		listing := suite.mkListing(suite.owner)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = suite.store.Listings.Approve(suite.ctx, listing.ID, suite.admin.ID)
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = suite.store.Listings.Reject(suite.ctx, listing.ID, second.ID, "duplicate listing")
		}()
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
		assert.Equal(t, 1, succeeded)

		stored, err := suite.store.Listings.Get(suite.ctx, listing.ID)
		require.NoError(t, err)
		assert.NotEqual(t, models.ListingStatusPending, stored.Status)
	}
}

func (suite *StoreTestSuite) TestClosedRequestIsTerminal() {
	t := suite.T()
	request := suite.mkRequest(suite.buyer)
	listing := suite.mkListing(suite.owner)

	_, err := suite.store.Requests.Close(suite.ctx, request.ID, suite.owner.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	closed, err := suite.store.Requests.Close(suite.ctx, request.ID, suite.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusClosed, closed.Status)

	_, err = suite.store.Requests.Approve(suite.ctx, request.ID, suite.admin.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = suite.store.Requests.Close(suite.ctx, request.ID, suite.admin.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = suite.store.Requests.Reapply(suite.ctx, request.ID, suite.buyer.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	description := "Need 300 litres of milk weekly"
	_, err = suite.store.Requests.Update(suite.ctx, request.ID, &UpdateRequestRequest{Description: &description})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = suite.store.Matches.Create(suite.ctx, request.ID, listing.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func (suite *StoreTestSuite) TestRequestRejectAndClose() {
	t := suite.T()
	request := suite.mkRequest(suite.buyer)

	rejected, err := suite.store.Requests.Reject(suite.ctx, request.ID, suite.admin.ID, "too vague")
	require.NoError(t, err)
	assert.Equal(t, "too vague", *rejected.RejectionReason)

	closed, err := suite.store.Requests.Close(suite.ctx, request.ID, suite.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusClosed, closed.Status)

	stored, err := suite.store.Requests.Get(suite.ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusClosed, stored.Status)
	assert.Equal(t, "too vague", *stored.RejectionReason)
}

func (suite *StoreTestSuite) TestListingDeleteCascadesAndPurgesFiles() {
	t := suite.T()
	listing := suite.mkListing(suite.owner)
	request := suite.mkRequest(suite.buyer)

	first := suite.upload(ListingOwner(listing.ID), "price.pdf", "prices")
	suite.upload(ListingOwner(listing.ID), "photo.jpg", "jpeg")
	kept := suite.upload(RequestOwner(request.ID), "terms.pdf", "terms")
	assert.Equal(t, 3, suite.storedObjects())

	_, err := suite.store.Matches.Create(suite.ctx, request.ID, listing.ID)
	require.NoError(t, err)

	report, err := suite.store.Listings.Delete(suite.ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Removed)
	assert.Empty(t, report.Failures)

	_, err = suite.store.Listings.Get(suite.ctx, listing.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = suite.store.Files.Get(suite.ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(0), suite.count(&models.Match{}))
	assert.Equal(t, int64(1), suite.count(&models.File{}))

	_, err = suite.backend.Open(suite.ctx, first.StoragePath)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	assert.Equal(t, 1, suite.storedObjects())

	_, body, err := suite.store.Files.Open(suite.ctx, kept.ID)
	require.NoError(t, err)
	defer body.Close()
}

func (suite *StoreTestSuite) TestDeleteWithMissingObjectSucceeds() {
	t := suite.T()
	request := suite.mkRequest(suite.buyer)

	_, err := suite.store.Files.Attach(suite.ctx, &AttachFileRequest{
		Owner:       RequestOwner(request.ID),
		Type:        models.FileTypePhoto,
		StoragePath: "2024/01/01/gone.jpg",
	})
	require.NoError(t, err)

	report, err := suite.store.Requests.Delete(suite.ctx, request.ID)
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Missing())
	assert.Equal(t, int64(0), suite.count(&models.File{}))
	assert.Equal(t, int64(0), suite.count(&models.CleanupFailure{}))

	var logged bool
	for _, entry := range suite.hook.AllEntries() {
		if entry.Message == "Stored object already missing, skipping" {
			logged = true
			assert.Equal(t, "2024/01/01/gone.jpg", entry.Data["storage_path"])
		}
	}
	assert.True(t, logged)
}

func (suite *StoreTestSuite) TestRestrictedDeleteKeepsFiles() {
	t := suite.T()
	listing := suite.mkListing(suite.owner)
	file := suite.upload(ListingOwner(listing.ID), "price.pdf", "prices")

	_, err := suite.store.Favorites.Add(suite.ctx, suite.buyer.ID, listing.ID)
	require.NoError(t, err)

	_, err = suite.store.Listings.Delete(suite.ctx, listing.ID)
	assert.ErrorIs(t, err, ErrConstraintViolation)

	_, err = suite.store.Files.Get(suite.ctx, file.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, suite.storedObjects())

	require.NoError(t, suite.store.Favorites.Remove(suite.ctx, suite.buyer.ID, listing.ID))
	report, err := suite.store.Listings.Delete(suite.ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)
	assert.Equal(t, 0, suite.storedObjects())
}

func (suite *StoreTestSuite) TestCleanupFailureIsRecordedAndRetried() {
	t := suite.T()
	listing := suite.mkListing(suite.owner)
	file := suite.upload(ListingOwner(listing.ID), "price.pdf", "prices")

	suite.backend.setBroken(true)
	report, err := suite.store.Files.Delete(suite.ctx, file.ID)
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0], errDiskBusy)
	assert.Equal(t, 0, report.Missing())

	var failures []models.CleanupFailure
	require.NoError(t, suite.db.Find(&failures).Error)
	require.Len(t, failures, 1)
	assert.Equal(t, file.StoragePath, failures[0].StoragePath)
	assert.Nil(t, failures[0].ResolvedAt)

	retry, err := suite.cleaner.RetryFailures(suite.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, retry.StillFailing)

	suite.backend.setBroken(false)
	retry, err = suite.cleaner.RetryFailures(suite.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, retry.Resolved)
	assert.Equal(t, 0, suite.storedObjects())

	require.NoError(t, suite.db.Find(&failures).Error)
	assert.NotNil(t, failures[0].ResolvedAt)
	assert.Equal(t, 2, failures[0].Attempts)
}

func (suite *StoreTestSuite) TestFileOwnership() {
	t := suite.T()
	listing := suite.mkListing(suite.owner)
	request := suite.mkRequest(suite.buyer)

	both := FileOwner{RequestID: &request.ID, ListingID: &listing.ID}
	_, err := suite.store.Files.Attach(suite.ctx, &AttachFileRequest{Owner: both, Type: models.FileTypePhoto, StoragePath: "a.jpg"})
	assert.ErrorIs(t, err, ErrConstraintViolation)

	_, err = suite.store.Files.Attach(suite.ctx, &AttachFileRequest{Type: models.FileTypePhoto, StoragePath: "a.jpg"})
	assert.ErrorIs(t, err, ErrConstraintViolation)

	_, err = suite.store.Files.Attach(suite.ctx, &AttachFileRequest{Owner: ListingOwner(listing.ID), Type: "audio", StoragePath: "a.mp3"})
	assert.ErrorIs(t, err, ErrConstraintViolation)

	_, err = suite.store.Files.Attach(suite.ctx, &AttachFileRequest{Owner: ListingOwner(listing.ID), Type: models.FileTypePhoto, StoragePath: "../etc/passwd"})
	assert.ErrorIs(t, err, ErrConstraintViolation)

	// The schema enforces the same rule for writes that bypass the service.
	raw := &models.File{Type: models.FileTypePhoto, StoragePath: "b.jpg", RequestID: &request.ID, ListingID: &listing.ID}
	assert.ErrorIs(t, translateError(suite.db.Create(raw).Error, "file"), ErrConstraintViolation)

	files, err := suite.store.Files.ListByListing(suite.ctx, listing.ID)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func (suite *StoreTestSuite) TestUploadRules() {
	t := suite.T()

	_, err := suite.store.Files.Upload(suite.ctx, &UploadFileRequest{
		Owner: ListingOwner(9999),
		Type:  models.FileTypeDocument,
		Name:  "price.pdf",
		Body:  bytes.NewBufferString("prices"),
	})
	assert.ErrorIs(t, err, ErrConstraintViolation)
	assert.Equal(t, 0, suite.storedObjects())

	listing := suite.mkListing(suite.owner)
	_, err = suite.store.Files.Upload(suite.ctx, &UploadFileRequest{
		Owner: ListingOwner(listing.ID),
		Type:  models.FileTypeDocument,
		Name:  "setup.exe",
		Body:  bytes.NewBufferString("MZ"),
	})
	assert.ErrorIs(t, err, ErrConstraintViolation)

	_, err = suite.store.Files.Upload(suite.ctx, &UploadFileRequest{
		Owner: ListingOwner(listing.ID),
		Type:  models.FileTypeDocument,
		Name:  "big.pdf",
		Body:  bytes.NewReader(make([]byte, 4096)),
	})
	assert.ErrorIs(t, err, ErrConstraintViolation)
	assert.Equal(t, 0, suite.storedObjects())
}

func (suite *StoreTestSuite) TestMatchLifecycle() {
	t := suite.T()
	listing := suite.mkListing(suite.owner)
	request := suite.mkRequest(suite.buyer)

	_, err := suite.store.Matches.Create(suite.ctx, 9999, listing.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = suite.store.Matches.Create(suite.ctx, request.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	match, err := suite.store.Matches.Create(suite.ctx, request.ID, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusPending, match.Status)

	_, err = suite.store.Matches.Create(suite.ctx, request.ID, listing.ID)
	assert.ErrorIs(t, err, ErrConstraintViolation)

	_, err = suite.store.Matches.Respond(suite.ctx, match.ID, suite.buyer.ID, true)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	accepted, err := suite.store.Matches.Respond(suite.ctx, match.ID, suite.owner.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusAccepted, accepted.Status)

	_, err = suite.store.Matches.Respond(suite.ctx, match.ID, suite.owner.ID, false)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	suppliers, err := suite.store.Requests.SuppliersForRequest(suite.ctx, request.ID)
	require.NoError(t, err)
	require.Len(t, suppliers, 1)
	assert.Equal(t, listing.ID, suppliers[0].ID)

	closed, err := suite.store.Matches.Close(suite.ctx, match.ID, suite.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusClosed, closed.Status)

	count, err := suite.store.Requests.MatchesCount(suite.ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	created := suite.publisher.ofType(events.MatchCreated)
	require.Len(t, created, 1)
	assert.Equal(t, suite.owner.ID, *created[0].RecipientID)
	assert.Len(t, suite.publisher.ofType(events.MatchStatusChanged), 2)

	report, err := suite.store.Requests.Delete(suite.ctx, request.ID)
	require.NoError(t, err)
	assert.Zero(t, report.Removed)
	_, err = suite.store.Matches.Get(suite.ctx, match.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func (suite *StoreTestSuite) TestProposeForRequest() {
	t := suite.T()
	request := suite.mkRequest(suite.buyer)

	_, err := suite.store.Matches.ProposeForRequest(suite.ctx, request.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	approved := suite.mkListing(suite.owner)
	_, err = suite.store.Listings.Approve(suite.ctx, approved.ID, suite.admin.ID)
	require.NoError(t, err)
	own := suite.mkListing(suite.buyer)
	_, err = suite.store.Listings.Approve(suite.ctx, own.ID, suite.admin.ID)
	require.NoError(t, err)
	suite.mkListing(suite.owner)

	_, err = suite.store.Requests.Approve(suite.ctx, request.ID, suite.admin.ID)
	require.NoError(t, err)

	matches, err := suite.store.Matches.ProposeForRequest(suite.ctx, request.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, approved.ID, matches[0].ListingID)
	assert.NotZero(t, matches[0].ID)

	again, err := suite.store.Matches.ProposeForRequest(suite.ctx, request.ID)
	require.NoError(t, err)
	assert.Empty(t, again)

	pending := models.MatchStatusPending
	listed, err := suite.store.Matches.ListByListing(suite.ctx, approved.ID, &pending)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func (suite *StoreTestSuite) TestFavorites() {
	t := suite.T()
	listing := suite.mkListing(suite.owner)

	_, err := suite.store.Favorites.Add(suite.ctx, suite.buyer.ID, listing.ID)
	require.NoError(t, err)
	_, err = suite.store.Favorites.Add(suite.ctx, suite.buyer.ID, listing.ID)
	assert.ErrorIs(t, err, ErrConstraintViolation)
	_, err = suite.store.Favorites.Add(suite.ctx, suite.buyer.ID, 9999)
	assert.ErrorIs(t, err, ErrConstraintViolation)

	ok, err := suite.store.Favorites.IsFavorite(suite.ctx, suite.buyer.ID, listing.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	favorites, err := suite.store.Favorites.ListForUser(suite.ctx, suite.buyer.ID)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, "Acme Dairy", favorites[0].Listing.CompanyName)

	require.NoError(t, suite.store.Favorites.Remove(suite.ctx, suite.buyer.ID, listing.ID))
	assert.ErrorIs(t, suite.store.Favorites.Remove(suite.ctx, suite.buyer.ID, listing.ID), ErrNotFound)
}

func (suite *StoreTestSuite) TestReviews() {
	t := suite.T()
	listing := suite.mkListing(suite.owner)
	request := suite.mkRequest(suite.buyer)

	review := &CreateReviewRequest{ListingID: listing.ID, Mark: 5, Text: "Fresh and on time"}
	_, err := suite.store.Reviews.Create(suite.ctx, suite.buyer.ID, review)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	match, err := suite.store.Matches.Create(suite.ctx, request.ID, listing.ID)
	require.NoError(t, err)
	_, err = suite.store.Matches.Respond(suite.ctx, match.ID, suite.owner.ID, true)
	require.NoError(t, err)

	_, err = suite.store.Reviews.Create(suite.ctx, suite.buyer.ID, &CreateReviewRequest{ListingID: listing.ID, Mark: 6})
	assert.ErrorIs(t, err, ErrConstraintViolation)

	_, err = suite.store.Reviews.Create(suite.ctx, suite.buyer.ID, review)
	require.NoError(t, err)
	_, err = suite.store.Reviews.Create(suite.ctx, suite.buyer.ID, review)
	assert.ErrorIs(t, err, ErrConstraintViolation)

	_, err = suite.store.Reviews.Create(suite.ctx, suite.buyer.ID, &CreateReviewRequest{ListingID: 9999, Mark: 3})
	assert.ErrorIs(t, err, ErrNotFound)

	rating, err := suite.store.Reviews.Rating(suite.ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rating.Count)
	assert.InDelta(t, 5.0, rating.Average, 0.001)

	reviews, err := suite.store.Reviews.ListForListing(suite.ctx, listing.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, suite.buyer.ID, reviews[0].Author.ID)

	// Reviews pin the listing.
	_, err = suite.store.Listings.Delete(suite.ctx, listing.ID)
	assert.ErrorIs(t, err, ErrConstraintViolation)
}

func (suite *StoreTestSuite) TestHelpRequests() {
	t := suite.T()

	_, err := suite.store.Help.Create(suite.ctx, suite.buyer.ID, "   ")
	assert.ErrorIs(t, err, ErrConstraintViolation)

	help, err := suite.store.Help.Create(suite.ctx, suite.buyer.ID, "How do I add photos?")
	require.NoError(t, err)

	_, err = suite.store.Help.Answer(suite.ctx, help.ID, suite.owner.ID, "Use the attach button")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = suite.store.Help.Answer(suite.ctx, help.ID, suite.admin.ID, "")
	assert.ErrorIs(t, err, ErrConstraintViolation)

	pending, err := suite.store.Help.ListPending(suite.ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	answered, err := suite.store.Help.Answer(suite.ctx, help.ID, suite.admin.ID, "Use the attach button")
	require.NoError(t, err)
	assert.Equal(t, models.HelpStatusAnswered, answered.Status)
	assert.NotNil(t, answered.AnsweredAt)

	_, err = suite.store.Help.Answer(suite.ctx, help.ID, suite.admin.ID, "Again")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	pending, err = suite.store.Help.ListPending(suite.ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	notified := suite.publisher.ofType(events.HelpRequestAnswered)
	require.Len(t, notified, 1)
	assert.Equal(t, suite.buyer.ID, *notified[0].RecipientID)
}

func (suite *StoreTestSuite) TestUsers() {
	t := suite.T()

	user, created, err := suite.store.Users.EnsureUser(suite.ctx, &CreateUserRequest{ExternalID: 4000, FirstName: "Ann"})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := suite.store.Users.EnsureUser(suite.ctx, &CreateUserRequest{ExternalID: 4000, FirstName: "Other"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, "Ann", again.FirstName)

	exists, err := suite.store.Users.Exists(suite.ctx, 4000)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = suite.store.Users.GetByExternalID(suite.ctx, 5000)
	assert.ErrorIs(t, err, ErrNotFound)

	badPhone := "call me"
	_, err = suite.store.Users.Update(suite.ctx, user.ID, &UpdateUserRequest{Phone: &badPhone})
	assert.ErrorIs(t, err, ErrConstraintViolation)

	phone := "+79991234567"
	updated, err := suite.store.Users.Update(suite.ctx, user.ID, &UpdateUserRequest{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, updated.Phone)

	_, err = suite.store.Users.SetRole(suite.ctx, user.ID, models.Role("owner"))
	assert.ErrorIs(t, err, ErrConstraintViolation)

	admins, err := suite.store.Users.ListAdmins(suite.ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, suite.admin.ID, admins[0].ID)

	suite.mkListing(suite.owner)
	assert.ErrorIs(t, suite.store.Users.Delete(suite.ctx, suite.owner.ID), ErrConstraintViolation)
	assert.NoError(t, suite.store.Users.Delete(suite.ctx, user.ID))
	assert.ErrorIs(t, suite.store.Users.Delete(suite.ctx, user.ID), ErrNotFound)
}

func (suite *StoreTestSuite) TestCategories() {
	t := suite.T()

	_, err := suite.store.Categories.CreateCategory(suite.ctx, "Metals", "Steel")
	assert.ErrorIs(t, err, ErrConstraintViolation)
	_, err = suite.store.Categories.CreateCategory(suite.ctx, "Food", "Dairy")
	assert.ErrorIs(t, err, ErrConstraintViolation)
	_, err = suite.store.Categories.CreateMainCategory(suite.ctx, "Food")
	assert.ErrorIs(t, err, ErrConstraintViolation)

	mains, err := suite.store.Categories.ListMainCategories(suite.ctx)
	require.NoError(t, err)
	require.Len(t, mains, 1)
	require.Len(t, mains[0].Categories, 1)
	assert.Equal(t, "Dairy", mains[0].Categories[0].Name)

	assert.ErrorIs(t, suite.store.Categories.DeleteMainCategory(suite.ctx, "Food"), ErrConstraintViolation)

	suite.mkListing(suite.owner)
	assert.ErrorIs(t, suite.store.Categories.DeleteCategory(suite.ctx, suite.category.ID), ErrConstraintViolation)

	_, err = suite.store.Listings.Create(suite.ctx, suite.owner.ID, &CreateListingRequest{
		CompanyName: "Acme",
		ProductName: "Milk",
		CategoryID:  9999,
	})
	assert.ErrorIs(t, err, ErrConstraintViolation)
}

func (suite *StoreTestSuite) TestListingUpdateAndSearch() {
	t := suite.T()
	listing := suite.mkListing(suite.owner)

	website := "not a url"
	_, err := suite.store.Listings.Update(suite.ctx, listing.ID, &UpdateListingRequest{Website: &website})
	assert.ErrorIs(t, err, ErrConstraintViolation)

	city := "Kazan"
	updated, err := suite.store.Listings.Update(suite.ctx, listing.ID, &UpdateListingRequest{City: &city, Tags: []string{"cheese"}})
	require.NoError(t, err)
	assert.Equal(t, "Kazan", updated.City)
	assert.Equal(t, []string{"cheese"}, []string(updated.Tags))
	assert.Equal(t, models.ListingStatusPending, updated.Status)

	_, err = suite.store.Listings.Update(suite.ctx, 9999, &UpdateListingRequest{City: &city})
	assert.ErrorIs(t, err, ErrNotFound)

	pending := models.ListingStatusPending
	result, err := suite.store.Listings.List(suite.ctx, &ListingSearchParams{Status: &pending, Tag: "cheese"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)
	assert.Equal(t, 1, result.TotalPages)

	mine, err := suite.store.Listings.ListByCreator(suite.ctx, suite.owner.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
