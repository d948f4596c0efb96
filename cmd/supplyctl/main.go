// cmd/supplyctl/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/supplymatch-backend/internal/cleanup"
	"github.com/javajoker/supplymatch-backend/internal/config"
	"github.com/javajoker/supplymatch-backend/internal/database"
	"github.com/javajoker/supplymatch-backend/internal/events"
	"github.com/javajoker/supplymatch-backend/internal/logger"
	"github.com/javajoker/supplymatch-backend/internal/models"
	"github.com/javajoker/supplymatch-backend/internal/reports"
	"github.com/javajoker/supplymatch-backend/internal/services"
	"github.com/javajoker/supplymatch-backend/internal/storage"
)

const usage = `Usage: supplyctl <command> [args]

Commands:
  migrate up|down|status
  seed
  user promote|demote <external_id>
  listing approve <id> <admin_external_id>
  listing reject <id> <admin_external_id> <reason...>
  listing delete <id>
  request approve <id> <admin_external_id>
  request reject <id> <admin_external_id> <reason...>
  request close <id> <actor_external_id>
  request delete <id>
  match propose <request_id>
  file upload request|listing <owner_id> photo|video|document <path>
  file delete <id>
  help answer <id> <admin_external_id> <answer...>
  cleanup retry [limit]
  report suppliers|requests|activity [months]
  events tail`

type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	db       *gorm.DB
	redis    redis.UniversalClient
	cleaner  *cleanup.Cleaner
	store    *services.Store
	reporter *reports.Reporter
}

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		return 2
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		return 1
	}

	log := logger.New(cfg.Log, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize")
		return 1
	}
	defer a.close()

	if err := a.dispatch(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Println(usage)
			return 2
		}
		log.WithError(err).Error("Command failed")
		return 1
	}
	return 0
}

func newApp(cfg *config.Config, log *logrus.Logger) (*app, error) {
	// Initialize database
	db, err := database.Initialize(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	backend, err := storage.New(cfg)
	if err != nil {
		database.Close(db, log)
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: db}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		publisher = events.NewRedisPublisher(a.redis, cfg.Redis.Channel)
	}

	a.cleaner = cleanup.NewCleaner(backend, log,
		cleanup.WithRecorder(db),
		cleanup.WithRetryRate(cfg.Storage.RetryRate, cfg.Storage.RetryBurst),
	)

	a.store = services.NewStore(services.Deps{
		DB:        db,
		Cleaner:   a.cleaner,
		Publisher: publisher,
		Upload:    storage.NewUploadOptions(cfg.Storage),
		Log:       log,
	})

	a.reporter, err = reports.New(db)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("Error closing redis client")
		}
	}
	database.Close(a.db, a.log)
}

var errUsage = errors.New("invalid arguments")

func (a *app) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "migrate":
		return a.migrate(ctx, args)
	case "seed":
		return database.SeedInitialData(ctx, a.db, a.cfg.Moderation, a.log)
	case "user":
		return a.user(ctx, args)
	case "listing":
		return a.listing(ctx, args)
	case "request":
		return a.request(ctx, args)
	case "match":
		return a.match(ctx, args)
	case "file":
		return a.file(ctx, args)
	case "help":
		return a.help(ctx, args)
	case "cleanup":
		return a.cleanupRetry(ctx, args)
	case "report":
		return a.report(ctx, args)
	case "events":
		return a.tail(ctx, args)
	}
	return errUsage
}

func (a *app) migrate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}

	switch args[0] {
	case "up":
		return database.RunMigrations(ctx, a.db, a.log)
	case "down":
		return database.RollbackMigration(ctx, a.db, a.log)
	case "status":
		return database.MigrationStatus(ctx, a.db, a.log)
	}
	return errUsage
}

func (a *app) user(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}

	role := models.RoleAdmin
	switch args[0] {
	case "promote":
	case "demote":
		role = models.RoleUser
	default:
		return errUsage
	}

	user, err := a.userByExternalID(ctx, args[1])
	if err != nil {
		return err
	}

	user, err = a.store.Users.SetRole(ctx, user.ID, role)
	if err != nil {
		return err
	}
	fmt.Printf("User %d (%s) is now %s.\n", user.ExternalID, user.DisplayName(), user.Role)
	return nil
}

func (a *app) listing(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}

	switch {
	case args[0] == "delete" && len(args) == 2:
		report, err := a.store.Listings.Delete(ctx, id)
		if err != nil {
			return err
		}
		printCleanup(fmt.Sprintf("Listing %d deleted.", id), report)
		return nil
	case args[0] == "approve" && len(args) == 3:
		actor, err := a.userByExternalID(ctx, args[2])
		if err != nil {
			return err
		}
		listing, err := a.store.Listings.Approve(ctx, id, actor.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Listing %d is %s.\n", listing.ID, listing.Status)
		return nil
	case args[0] == "reject" && len(args) >= 4:
		actor, err := a.userByExternalID(ctx, args[2])
		if err != nil {
			return err
		}
		listing, err := a.store.Listings.Reject(ctx, id, actor.ID, strings.Join(args[3:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("Listing %d is %s.\n", listing.ID, listing.Status)
		return nil
	}
	return errUsage
}

func (a *app) request(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}

	if args[0] == "delete" && len(args) == 2 {
		report, err := a.store.Requests.Delete(ctx, id)
		if err != nil {
			return err
		}
		printCleanup(fmt.Sprintf("Request %d deleted.", id), report)
		return nil
	}

	if len(args) < 3 {
		return errUsage
	}
	actor, err := a.userByExternalID(ctx, args[2])
	if err != nil {
		return err
	}

	var request *models.Request
	switch {
	case args[0] == "approve" && len(args) == 3:
		request, err = a.store.Requests.Approve(ctx, id, actor.ID)
	case args[0] == "close" && len(args) == 3:
		request, err = a.store.Requests.Close(ctx, id, actor.ID)
	case args[0] == "reject" && len(args) >= 4:
		request, err = a.store.Requests.Reject(ctx, id, actor.ID, strings.Join(args[3:], " "))
	default:
		return errUsage
	}
	if err != nil {
		return err
	}
	fmt.Printf("Request %d is %s.\n", request.ID, request.Status)
	return nil
}

func (a *app) match(ctx context.Context, args []string) error {
	if len(args) != 2 || args[0] != "propose" {
		return errUsage
	}
	requestID, err := parseID(args[1])
	if err != nil {
		return err
	}

	matches, err := a.store.Matches.ProposeForRequest(ctx, requestID)
	if err != nil {
		return err
	}
	fmt.Printf("Proposed %d matches for request %d.\n", len(matches), requestID)
	return nil
}

func (a *app) file(ctx context.Context, args []string) error {
	switch {
	case len(args) == 2 && args[0] == "delete":
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		report, err := a.store.Files.Delete(ctx, id)
		if err != nil {
			return err
		}
		printCleanup(fmt.Sprintf("File %d deleted.", id), report)
		return nil
	case len(args) == 5 && args[0] == "upload":
		return a.upload(ctx, args[1], args[2], args[3], args[4])
	}
	return errUsage
}

func (a *app) upload(ctx context.Context, ownerKind, ownerID, fileType, path string) error {
	id, err := parseID(ownerID)
	if err != nil {
		return err
	}

	var owner services.FileOwner
	switch ownerKind {
	case "request":
		owner = services.RequestOwner(id)
	case "listing":
		owner = services.ListingOwner(id)
	default:
		return errUsage
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	file, err := a.store.Files.Upload(ctx, &services.UploadFileRequest{
		Owner: owner,
		Type:  models.FileType(fileType),
		Name:  filepath.Base(path),
		Body:  f,
	})
	if err != nil {
		return err
	}
	fmt.Printf("File %d stored at %s.\n", file.ID, file.StoragePath)
	return nil
}

func (a *app) help(ctx context.Context, args []string) error {
	if len(args) < 4 || args[0] != "answer" {
		return errUsage
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	actor, err := a.userByExternalID(ctx, args[2])
	if err != nil {
		return err
	}

	help, err := a.store.Help.Answer(ctx, id, actor.ID, strings.Join(args[3:], " "))
	if err != nil {
		return err
	}
	fmt.Printf("Help request %d is %s.\n", help.ID, help.Status)
	return nil
}

func (a *app) cleanupRetry(ctx context.Context, args []string) error {
	if len(args) < 1 || args[0] != "retry" {
		return errUsage
	}

	limit := a.cfg.Storage.RetryBatch
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid limit %q", args[1])
		}
		limit = n
	}

	report, err := a.cleaner.RetryFailures(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Printf("Resolved %d, still failing %d.\n", report.Resolved, report.StillFailing)
	return nil
}

func (a *app) report(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}

	months := 0
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid number of months %q", args[1])
		}
		months = n
	}

	switch args[0] {
	case "suppliers":
		rows, err := a.reporter.ModeratedSuppliers(ctx, months)
		if err != nil {
			return err
		}
		return reports.WriteCSV(os.Stdout, reports.ModeratedSupplierHeader, rows)
	case "requests":
		rows, err := a.reporter.RequestStatusCounts(ctx, months)
		if err != nil {
			return err
		}
		return reports.WriteCSV(os.Stdout, reports.StatusCountHeader, rows)
	case "activity":
		rows, err := a.reporter.SupplierActivity(ctx, months)
		if err != nil {
			return err
		}
		return reports.WriteCSV(os.Stdout, reports.SupplierActivityHeader, rows)
	}
	return errUsage
}

// tail prints published events until interrupted.
func (a *app) tail(ctx context.Context, args []string) error {
	if len(args) != 1 || args[0] != "tail" {
		return errUsage
	}
	if a.redis == nil {
		return fmt.Errorf("redis is disabled, set REDIS_ENABLED=true")
	}

	for event := range events.Subscribe(ctx, a.redis, a.cfg.Redis.Channel) {
		payload, err := events.Encode(event)
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
	}
	return nil
}

func (a *app) userByExternalID(ctx context.Context, raw string) (*models.User, error) {
	externalID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid external id %q", raw)
	}
	return a.store.Users.GetByExternalID(ctx, externalID)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func printCleanup(message string, report cleanup.Report) {
	fmt.Println(message)
	fmt.Printf("Stored objects removed: %d, missing: %d, failed: %d.\n",
		report.Removed, report.Missing(), len(report.Failures)-report.Missing())
}
