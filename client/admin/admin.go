// Package admin implements the dashboard client: stats, the customer
// table, the ranked priority queue and its bucket partition.
package admin

import (
	"context"
	"errors"
	"sync"
	"time"

	"leaddesk/client/poll"
	"leaddesk/internal/models"

	"github.com/rs/zerolog"
)

const taskRefresh = "overview"

// Bucket thresholds over the backend-computed priority score. The
// boundaries partition: every lead lands in exactly one bucket.
const (
	criticalMin = 60
	highMin     = 40
	mediumMin   = 20
)

var ErrNotConfirmed = errors.New("deletion requires confirmation")

type backend interface {
	Stats(ctx context.Context) (*models.Stats, error)
	Customers(ctx context.Context) ([]models.Lead, error)
	PriorityQueue(ctx context.Context) ([]models.Lead, error)
	SaveNotes(ctx context.Context, customerID int64, notes string) error
	SetStatus(ctx context.Context, customerID int64, status string) error
	DeleteCustomer(ctx context.Context, customerID int64) error
}

type BucketCounts struct {
	Critical int
	High     int
	Medium   int
	Low      int
}

// Buckets partitions leads by priority score: critical >=60, high >=40,
// medium >=20, low below.
func Buckets(leads []models.Lead) BucketCounts {
	var b BucketCounts
	for _, l := range leads {
		switch {
		case l.PriorityScore >= criticalMin:
			b.Critical++
		case l.PriorityScore >= highMin:
			b.High++
		case l.PriorityScore >= mediumMin:
			b.Medium++
		default:
			b.Low++
		}
	}
	return b
}

// Overview is one consistent snapshot of everything the dashboard
// shows. Derivations (buckets) are computed locally from the fetched
// queue.
type Overview struct {
	Stats     *models.Stats
	Customers []models.Lead
	Priority  []models.Lead
	Buckets   BucketCounts
	FetchedAt time.Time
}

type Config struct {
	RefreshInterval time.Duration // default 30s
	Log             zerolog.Logger
}

type Dashboard struct {
	api   backend
	cfg   Config
	sched *poll.Scheduler

	mu       sync.Mutex
	overview Overview
}

func New(api backend, cfg Config) *Dashboard {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
	return &Dashboard{
		api:   api,
		cfg:   cfg,
		sched: poll.NewScheduler(cfg.Log),
	}
}

// Start begins the periodic refresh loop.
func (d *Dashboard) Start() {
	d.sched.Start(taskRefresh, d.cfg.RefreshInterval, d.Refresh)
}

// Refresh fetches stats, customers and the priority queue and swaps the
// overview in one step. A partial failure keeps the previous snapshot.
func (d *Dashboard) Refresh(ctx context.Context) error {
	stats, err := d.api.Stats(ctx)
	if err != nil {
		return err
	}
	customers, err := d.api.Customers(ctx)
	if err != nil {
		return err
	}
	queue, err := d.api.PriorityQueue(ctx)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.overview = Overview{
		Stats:     stats,
		Customers: customers,
		Priority:  queue,
		Buckets:   Buckets(queue),
		FetchedAt: time.Now(),
	}
	d.mu.Unlock()
	return nil
}

func (d *Dashboard) Overview() Overview {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overview
}

func (d *Dashboard) SaveNotes(ctx context.Context, customerID int64, notes string) error {
	return d.api.SaveNotes(ctx, customerID, notes)
}

func (d *Dashboard) SetStatus(ctx context.Context, customerID int64, status string) error {
	if !models.ValidStatus(status) {
		return errors.New("invalid status: " + status)
	}
	return d.api.SetStatus(ctx, customerID, status)
}

// Delete removes the customer and cascades to sessions and messages.
// The confirmed flag must come from an explicit user action; without it
// nothing is sent.
func (d *Dashboard) Delete(ctx context.Context, customerID int64, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if err := d.api.DeleteCustomer(ctx, customerID); err != nil {
		return err
	}
	d.cfg.Log.Info().Int64("customer_id", customerID).Msg("customer deleted")
	return nil
}

func (d *Dashboard) Close() {
	d.sched.Close()
}
