// internal/reports/csv.go
package reports

import (
	"encoding/csv"
	"io"
	"strconv"
)

// Record is a report row that can be written as CSV.
type Record interface {
	Record() []string
}

var (
	ModeratedSupplierHeader = []string{"supplier_id", "date", "company_name", "main_category", "category", "status", "verified_by"}
	StatusCountHeader       = []string{"status", "count"}
	SupplierActivityHeader  = []string{"supplier_id", "company_name", "matches", "accepted", "rejected", "reviews", "average_mark"}
)

func (m ModeratedSupplier) Record() []string {
	return []string{
		strconv.FormatInt(m.SupplierID, 10),
		m.Date.Format("2006-01-02"),
		m.CompanyName,
		m.MainCategory.String,
		m.Category.String,
		m.Status,
		m.VerifiedBy.String,
	}
}

func (c StatusCount) Record() []string {
	return []string{c.Status, strconv.FormatInt(c.Count, 10)}
}

func (a SupplierActivity) Record() []string {
	return []string{
		strconv.FormatInt(a.SupplierID, 10),
		a.CompanyName,
		strconv.FormatInt(a.Matches, 10),
		strconv.FormatInt(a.Accepted, 10),
		strconv.FormatInt(a.Rejected, 10),
		strconv.FormatInt(a.Reviews, 10),
		strconv.FormatFloat(a.AverageMark, 'f', 2, 64),
	}
}

func WriteCSV[T Record](w io.Writer, header []string, rows []T) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
