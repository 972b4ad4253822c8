package routes

import (
	"net/http"
	"regexp"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
)

// registerReportRoutes registers the aggregate reporting endpoints.
//
//	GET /api/ext/reports/attendance?from=YYYY-MM-DD&to=YYYY-MM-DD
//	GET /api/ext/reports/revenue?year=YYYY
func registerReportRoutes(g *router.RouterGroup[*core.RequestEvent]) {
	r := g.Group("/reports")
	r.GET("/attendance", handleAttendanceReport)
	r.GET("/revenue", handleRevenueReport)
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
var yearPattern = regexp.MustCompile(`^\d{4}$`)

func handleAttendanceReport(e *core.RequestEvent) error {
	if !isStaff(e.Auth) {
		return apis.NewForbiddenError("staff only", nil)
	}

	to := e.Request.URL.Query().Get("to")
	if to == "" {
		to = time.Now().UTC().Format("2006-01-02")
	}
	from := e.Request.URL.Query().Get("from")
	if from == "" {
		from = time.Now().UTC().AddDate(0, 0, -30).Format("2006-01-02")
	}
	if !datePattern.MatchString(from) || !datePattern.MatchString(to) {
		return apis.NewBadRequestError("from and to must be YYYY-MM-DD", nil)
	}

	// Closed sessions only: duration is undefined until checkout.
	var rows []struct {
		Day         string  `db:"day"`
		Visits      int     `db:"visits"`
		AvgDuration float64 `db:"avg_duration"`
	}
	err := e.App.DB().NewQuery(`
		SELECT substr(check_in_time, 1, 10) AS day,
		       COUNT(*)                     AS visits,
		       AVG(duration_minutes)        AS avg_duration
		FROM gym_sessions
		WHERE check_out_time != ''
		  AND substr(check_in_time, 1, 10) >= {:from}
		  AND substr(check_in_time, 1, 10) <= {:to}
		GROUP BY day
		ORDER BY day`).
		Bind(dbx.Params{"from": from, "to": to}).
		All(&rows)
	if err != nil {
		return e.JSON(http.StatusInternalServerError, map[string]any{"message": "attendance query failed"})
	}

	total := 0
	days := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		total += row.Visits
		days = append(days, map[string]any{
			"day":                  row.Day,
			"visits":               row.Visits,
			"avg_duration_minutes": row.AvgDuration,
		})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"from":         from,
		"to":           to,
		"total_visits": total,
		"days":         days,
	})
}

func handleRevenueReport(e *core.RequestEvent) error {
	if !isAdmin(e.Auth) {
		return apis.NewForbiddenError("admin only", nil)
	}

	year := e.Request.URL.Query().Get("year")
	if year == "" {
		year = time.Now().UTC().Format("2006")
	}
	if !yearPattern.MatchString(year) {
		return apis.NewBadRequestError("year must be YYYY", nil)
	}

	var rows []struct {
		Month    string  `db:"month"`
		Total    float64 `db:"total"`
		Payments int     `db:"payments"`
	}
	err := e.App.DB().NewQuery(`
		SELECT substr(paid_at, 1, 7) AS month,
		       SUM(amount)           AS total,
		       COUNT(*)              AS payments
		FROM payments
		WHERE status = 'completed'
		  AND substr(paid_at, 1, 4) = {:year}
		GROUP BY month
		ORDER BY month`).
		Bind(dbx.Params{"year": year}).
		All(&rows)
	if err != nil {
		return e.JSON(http.StatusInternalServerError, map[string]any{"message": "revenue query failed"})
	}

	var yearTotal float64
	months := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		yearTotal += row.Total
		months = append(months, map[string]any{
			"month":    row.Month,
			"total":    row.Total,
			"payments": row.Payments,
		})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"year":   year,
		"total":  yearTotal,
		"months": months,
	})
}
