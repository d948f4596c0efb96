// internal/reports/reports.go
package reports

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

// Reporter runs read-only reporting queries over the gorm connection pool.
type Reporter struct {
	db  *sqlx.DB
	now func() time.Time
}

func New(db *gorm.DB) (*Reporter, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return NewWithDB(sqlx.NewDb(sqlDB, "pgx")), nil
}

func NewWithDB(db *sqlx.DB) *Reporter {
	return &Reporter{db: db, now: time.Now}
}

// since returns the lower bound for a report covering the last months
// months, counted as 30 days each. Zero or less means no bound.
func (r *Reporter) since(months int) time.Time {
	if months <= 0 {
		return time.Time{}
	}
	return r.now().AddDate(0, 0, -30*months)
}

// ModeratedSupplier is one approved or rejected listing.
type ModeratedSupplier struct {
	SupplierID   int64          `db:"supplier_id" json:"supplier_id"`
	Date         time.Time      `db:"date" json:"date"`
	CompanyName  string         `db:"company_name" json:"company_name"`
	MainCategory sql.NullString `db:"main_category" json:"main_category"`
	Category     sql.NullString `db:"category" json:"category"`
	Status       string         `db:"status" json:"status"`
	VerifiedBy   sql.NullString `db:"verified_by" json:"verified_by"`
}

func (r *Reporter) ModeratedSuppliers(ctx context.Context, months int) ([]ModeratedSupplier, error) {
	query := `
        SELECT
            s.id AS supplier_id,
            s.created_at AS date,
            s.company_name,
            mc.name AS main_category,
            c.name AS category,
            s.status,
            u.username AS verified_by
        FROM suppliers s
        LEFT JOIN categories c ON s.category_id = c.id
        LEFT JOIN main_categories mc ON c.main_category_name = mc.name
        LEFT JOIN users u ON s.verified_by_id = u.id
        WHERE s.status IN ('approved', 'rejected')
          AND s.created_at >= $1
        ORDER BY s.created_at DESC, s.id DESC`

	rows := []ModeratedSupplier{}
	if err := r.db.SelectContext(ctx, &rows, query, r.since(months)); err != nil {
		return nil, fmt.Errorf("failed to build supplier report: %w", err)
	}
	return rows, nil
}

type StatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int64  `db:"count" json:"count"`
}

func (r *Reporter) RequestStatusCounts(ctx context.Context, months int) ([]StatusCount, error) {
	query := `
        SELECT status, COUNT(*) AS count
        FROM requests
        WHERE created_at >= $1
        GROUP BY status
        ORDER BY status`

	rows := []StatusCount{}
	if err := r.db.SelectContext(ctx, &rows, query, r.since(months)); err != nil {
		return nil, fmt.Errorf("failed to build request report: %w", err)
	}
	return rows, nil
}

// SupplierActivity is the match and review summary of an approved listing.
type SupplierActivity struct {
	SupplierID  int64   `db:"supplier_id" json:"supplier_id"`
	CompanyName string  `db:"company_name" json:"company_name"`
	Matches     int64   `db:"matches" json:"matches"`
	Accepted    int64   `db:"accepted" json:"accepted"`
	Rejected    int64   `db:"rejected" json:"rejected"`
	Reviews     int64   `db:"reviews" json:"reviews"`
	AverageMark float64 `db:"average_mark" json:"average_mark"`
}

func (r *Reporter) SupplierActivity(ctx context.Context, months int) ([]SupplierActivity, error) {
	query := `
        SELECT
            s.id AS supplier_id,
            s.company_name,
            COALESCE(m.total, 0) AS matches,
            COALESCE(m.accepted, 0) AS accepted,
            COALESCE(m.rejected, 0) AS rejected,
            COALESCE(rv.total, 0) AS reviews,
            COALESCE(rv.average, 0)::float8 AS average_mark
        FROM suppliers s
        LEFT JOIN (
            SELECT supplier_id,
                   COUNT(*) AS total,
                   COUNT(*) FILTER (WHERE status = 'accepted') AS accepted,
                   COUNT(*) FILTER (WHERE status = 'rejected') AS rejected
            FROM matches
            WHERE created_at >= $1
            GROUP BY supplier_id
        ) m ON m.supplier_id = s.id
        LEFT JOIN (
            SELECT supplier_id, COUNT(*) AS total, AVG(mark) AS average
            FROM reviews
            WHERE created_at >= $1
            GROUP BY supplier_id
        ) rv ON rv.supplier_id = s.id
        WHERE s.status = 'approved'
        ORDER BY matches DESC, s.id`

	rows := []SupplierActivity{}
	if err := r.db.SelectContext(ctx, &rows, query, r.since(months)); err != nil {
		return nil, fmt.Errorf("failed to build activity report: %w", err)
	}
	return rows, nil
}
