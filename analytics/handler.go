package analytics

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"petshop/config"
	"petshop/money"
	"petshop/respond"
)

const maxDays = 366

func daysParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return config.GetConfig().Shop.AnalyticsDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > maxDays {
		return 0, respond.BadRequest("Invalid days")
	}
	return days, nil
}

// SalesHandler handles GET /api/analytics?days=30.
func SalesHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := daysParam(r)
		if err != nil {
			respond.Err(w, err, "Failed to fetch analytics")
			return
		}
		s, err := Sales(db, time.Now(), days)
		if err != nil {
			respond.Err(w, err, "Failed to fetch analytics")
			return
		}
		respond.JSON(w, http.StatusOK, s)
	}
}

func DashboardHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := Dashboard(r.Context(), db)
		if err != nil {
			respond.Err(w, err, "Failed to load dashboard")
			return
		}
		respond.JSON(w, http.StatusOK, s)
	}
}

// ExportSalesCSVHandler writes the daily series as CSV with a UTF-8 BOM so
// spreadsheet programs pick the right encoding.
func ExportSalesCSVHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := daysParam(r)
		if err != nil {
			respond.Err(w, err, "Failed to export analytics")
			return
		}
		now := time.Now()
		s, err := Sales(db, now, days)
		if err != nil {
			respond.Err(w, err, "Failed to export analytics")
			return
		}

		var buf bytes.Buffer
		buf.Write([]byte{0xEF, 0xBB, 0xBF})
		cw := csv.NewWriter(&buf)
		cw.UseCRLF = true
		cw.Write([]string{"date", "orders", "revenue"})
		for i, label := range s.Labels {
			cw.Write([]string{label, strconv.Itoa(s.Orders[i]), money.Format(s.Cents[i])})
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			respond.Err(w, err, "Failed to export analytics")
			return
		}

		filename := fmt.Sprintf("sales_%s_%dd.csv", now.UTC().Format("20060102"), days)
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
		w.Write(buf.Bytes())
	}
}
