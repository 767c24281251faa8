package admin

import (
	"context"
	"time"

	"github.com/gamekeys/backend/internal/domain/catalog"
	"github.com/gamekeys/backend/internal/domain/order"
	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/gamekeys/backend/internal/infrastructure/scheduler"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultLowStockThreshold = 5
	defaultLowStockLimit     = 20
	defaultRevenueWindow     = 30 * 24 * time.Hour
)

// JobStates reports the background jobs of this instance
type JobStates interface {
	States() []scheduler.JobState
}

// DashboardFilter selects the revenue period and the low-stock threshold
type DashboardFilter struct {
	From              *time.Time `form:"from" time_format:"2006-01-02"`
	To                *time.Time `form:"to" time_format:"2006-01-02"`
	LowStockThreshold int64      `form:"low_stock_threshold" binding:"omitempty,min=1,max=1000"`
}

// LowStockProduct is an active product running out of keys
type LowStockProduct struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Platform      string    `json:"platform"`
	AvailableKeys int64     `json:"available_keys"`
}

// RevenueSummary is the revenue of delivered orders in a period
type RevenueSummary struct {
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Total     decimal.Decimal `json:"total"`
	Formatted string          `json:"formatted"`
}

// DashboardResponse is the admin dashboard summary
type DashboardResponse struct {
	OrdersByStatus map[string]int64     `json:"orders_by_status"`
	TotalOrders    int64                `json:"total_orders"`
	Revenue        RevenueSummary       `json:"revenue"`
	LowStock       []LowStockProduct    `json:"low_stock"`
	Jobs           []scheduler.JobState `json:"jobs,omitempty"`
	GeneratedAt    time.Time            `json:"generated_at"`
}

// DashboardService builds the admin dashboard
type DashboardService struct {
	orderRepo   order.Repository
	productRepo catalog.ProductRepository
	jobs        JobStates
	logger      *zap.Logger
}

// NewDashboardService creates a new DashboardService. jobs may be nil when
// the scheduler is disabled.
func NewDashboardService(orderRepo order.Repository, productRepo catalog.ProductRepository, jobs JobStates, logger *zap.Logger) *DashboardService {
	return &DashboardService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		jobs:        jobs,
		logger:      logger,
	}
}

// GetSummary returns order counts, revenue and low-stock products
func (s *DashboardService) GetSummary(ctx context.Context, filter DashboardFilter) (*DashboardResponse, error) {
	now := time.Now()
	to := now
	if filter.To != nil {
		// Inclusive end date
		to = filter.To.Add(24*time.Hour - time.Nanosecond)
	}
	from := to.Add(-defaultRevenueWindow)
	if filter.From != nil {
		from = *filter.From
	}
	if from.After(to) {
		return nil, shared.NewDomainError("INVALID_PERIOD", "from must not be after to")
	}
	threshold := filter.LowStockThreshold
	if threshold <= 0 {
		threshold = defaultLowStockThreshold
	}

	var (
		counts   map[order.Status]int64
		revenue  decimal.Decimal
		lowStock []catalog.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.orderRepo.CountByStatus(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		revenue, err = s.orderRepo.SumRevenue(gctx, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		lowStock, err = s.productRepo.FindLowStock(gctx, threshold, defaultLowStockLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to build dashboard", zap.Error(err))
		return nil, err
	}

	resp := &DashboardResponse{
		OrdersByStatus: make(map[string]int64, len(order.AllStatuses())),
		Revenue: RevenueSummary{
			From:      from,
			To:        to,
			Total:     revenue,
			Formatted: shared.FormatBRL(revenue),
		},
		LowStock:    make([]LowStockProduct, len(lowStock)),
		GeneratedAt: now,
	}
	for _, status := range order.AllStatuses() {
		n := counts[status]
		resp.OrdersByStatus[string(status)] = n
		resp.TotalOrders += n
	}
	for i, p := range lowStock {
		resp.LowStock[i] = LowStockProduct{
			ID:            p.ID,
			Title:         p.Title,
			Platform:      string(p.Platform),
			AvailableKeys: p.AvailableKeys,
		}
	}
	if s.jobs != nil {
		resp.Jobs = s.jobs.States()
	}
	return resp, nil
}
