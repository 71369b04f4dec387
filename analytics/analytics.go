// Package analytics builds the sales chart and the back-office dashboard.
package analytics

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
	"petshop/database"
	"petshop/money"
)

const dayLayout = "2006-01-02"

// Series is revenue per UTC day, oldest first. Days without sales are zero.
type Series struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
	Orders []int     `json:"orders"`
	Cents  []int64   `json:"-"`
}

func windowStart(now time.Time, days int) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))
}

// DailySeries buckets rows into the days-long window ending on now's date.
func DailySeries(rows []database.RevenueRow, now time.Time, days int) *Series {
	start := windowStart(now, days)
	s := &Series{
		Labels: make([]string, days),
		Values: make([]float64, days),
		Orders: make([]int, days),
		Cents:  make([]int64, days),
	}
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		label := start.AddDate(0, 0, i).Format(dayLayout)
		s.Labels[i] = label
		index[label] = i
	}
	for _, r := range rows {
		i, ok := index[r.CreatedAt.UTC().Format(dayLayout)]
		if !ok {
			continue
		}
		s.Cents[i] += r.TotalCents
		s.Orders[i]++
	}
	for i, c := range s.Cents {
		s.Values[i] = money.Float(c)
	}
	return s
}

// Sales loads the captured orders of the window and buckets them by day.
func Sales(db database.DBTX, now time.Time, days int) (*Series, error) {
	rows, err := database.ListRevenueSince(db, windowStart(now, days))
	if err != nil {
		return nil, err
	}
	return DailySeries(rows, now, days), nil
}

// Summary is the dashboard header.
type Summary struct {
	Orders         int    `json:"orders"`
	Users          int    `json:"users"`
	Products       int    `json:"products"`
	PendingRefunds int    `json:"pendingRefunds"`
	RevenueCents   int64  `json:"revenueCents"`
	Revenue        string `json:"revenue"`
}

// Dashboard runs the summary counts concurrently.
func Dashboard(ctx context.Context, db *sqlx.DB) (*Summary, error) {
	var s Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		s.Orders, err = database.CountOrders(gctx, db)
		return err
	})
	g.Go(func() (err error) {
		s.Users, err = database.CountUsers(gctx, db)
		return err
	})
	g.Go(func() (err error) {
		s.Products, err = database.CountProducts(gctx, db)
		return err
	})
	g.Go(func() (err error) {
		s.PendingRefunds, err = database.CountPendingRefunds(gctx, db)
		return err
	})
	g.Go(func() (err error) {
		s.RevenueCents, err = database.TotalRevenue(gctx, db)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.Revenue = money.Format(s.RevenueCents)
	return &s, nil
}
