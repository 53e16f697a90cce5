package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/LennoxMacadangdang/caps-backend/internal/apperr"
	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/LennoxMacadangdang/caps-backend/internal/logger"
	"github.com/LennoxMacadangdang/caps-backend/internal/metrics"
	"github.com/LennoxMacadangdang/caps-backend/internal/repository"
	"go.uber.org/zap"
)

const DefaultMaxAttempts = 3

type Catalog interface {
	FetchProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
	FetchServices(ctx context.Context, ids []int64) (map[int64]*domain.Service, error)
	FetchServiceLinks(ctx context.Context, serviceIDs []int64) ([]domain.ServiceProductLink, error)
}

type Writer interface {
	ApplyStock(ctx context.Context, writes []repository.StockWrite) (int, error)
	Atomic() bool
}

// PartialDeductionError reports a failure after some deductions were
// already committed. Applied lists what stays deducted.
type PartialDeductionError struct {
	Applied []Requirement
	Err     error
}

func (e *PartialDeductionError) Error() string {
	return fmt.Sprintf("stock partially deducted (%d products): %v", len(e.Applied), e.Err)
}

func (e *PartialDeductionError) Unwrap() error { return e.Err }

type Deductor struct {
	catalog     Catalog
	writer      Writer
	metrics     *metrics.Metrics
	maxAttempts int
}

func NewDeductor(catalog Catalog, writer Writer, m *metrics.Metrics) *Deductor {
	return &Deductor{catalog: catalog, writer: writer, metrics: m, maxAttempts: DefaultMaxAttempts}
}

// Prepare fetches everything the lines touch and validates them.
func (d *Deductor) Prepare(ctx context.Context, lines []domain.CartLine) (*Plan, error) {
	productIDs, serviceIDs := domain.Split(lines)

	products, err := d.catalog.FetchProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	services, err := d.catalog.FetchServices(ctx, serviceIDs)
	if err != nil {
		return nil, err
	}
	links, err := d.catalog.FetchServiceLinks(ctx, serviceIDs)
	if err != nil {
		return nil, err
	}

	var linked []int64
	seen := map[int64]bool{}
	for _, l := range links {
		if _, ok := products[l.ProductID]; !ok && !seen[l.ProductID] {
			seen[l.ProductID] = true
			linked = append(linked, l.ProductID)
		}
	}
	if len(linked) > 0 {
		extra, err := d.catalog.FetchProducts(ctx, linked)
		if err != nil {
			return nil, err
		}
		for id, p := range extra {
			products[id] = p
		}
	}

	return Validate(lines, products, services, links)
}

// Deduct writes the plan's requirements. On a backend without transactions
// each write is conditional on the stock the plan was validated against; a
// lost race re-reads and re-validates the remaining products and retries.
func (d *Deductor) Deduct(ctx context.Context, plan *Plan) error {
	if len(plan.Requirements) == 0 {
		return nil
	}
	if d.writer.Atomic() {
		return d.deductAtomic(ctx, plan)
	}

	stocks := make(map[int64]int, len(plan.Requirements))
	for _, r := range plan.Requirements {
		stocks[r.ProductID] = plan.Products[r.ProductID].Stock
	}

	pending := plan.Requirements
	var applied []Requirement
	for attempt := 1; ; attempt++ {
		n, err := d.writer.ApplyStock(ctx, toWrites(pending, stocks))
		applied = append(applied, pending[:n]...)
		if err == nil {
			d.metrics.StockDeduction("ok")
			return nil
		}
		pending = pending[n:]

		if !errors.Is(err, repository.ErrStockChanged) {
			return d.fail(ctx, applied, apperr.Upstream(err, "Failed to update stock"))
		}
		if attempt >= d.maxAttempts {
			return d.fail(ctx, applied, apperr.New(apperr.KindConflict,
				"Stock for %s changed during checkout, please retry", pending[0].Name))
		}
		d.metrics.StockRetry()

		if err := d.refresh(ctx, pending, stocks); err != nil {
			return d.fail(ctx, applied, err)
		}
	}
}

func (d *Deductor) refresh(ctx context.Context, pending []Requirement, stocks map[int64]int) error {
	ids := make([]int64, len(pending))
	for i, r := range pending {
		ids[i] = r.ProductID
	}
	fresh, err := d.catalog.FetchProducts(ctx, ids)
	if err != nil {
		return err
	}
	for _, r := range pending {
		p, ok := fresh[r.ProductID]
		if !ok {
			return apperr.NotFound("Product %d not found", r.ProductID)
		}
		if p.Stock < r.Quantity {
			return apperr.InsufficientStock(r.Name)
		}
		stocks[r.ProductID] = p.Stock
	}
	return nil
}

func (d *Deductor) deductAtomic(ctx context.Context, plan *Plan) error {
	writes := make([]repository.StockWrite, len(plan.Requirements))
	for i, r := range plan.Requirements {
		writes[i] = repository.StockWrite{ProductID: r.ProductID, Name: r.Name, Quantity: r.Quantity}
	}
	_, err := d.writer.ApplyStock(ctx, writes)
	if err == nil {
		d.metrics.StockDeduction("ok")
		return nil
	}

	var swe *repository.StockWriteError
	if errors.As(err, &swe) && errors.Is(err, repository.ErrInsufficientStock) {
		d.metrics.StockDeduction("insufficient")
		name := fmt.Sprintf("product %d", swe.ProductID)
		if p, ok := plan.Products[swe.ProductID]; ok {
			name = p.Name
		}
		return apperr.InsufficientStock(name)
	}
	d.metrics.StockDeduction("error")
	return apperr.Upstream(err, "Failed to update stock")
}

func (d *Deductor) fail(ctx context.Context, applied []Requirement, err error) error {
	outcome := "error"
	switch apperr.KindOf(err) {
	case apperr.KindConflict:
		outcome = "conflict"
	case apperr.KindInsufficientStock:
		outcome = "insufficient"
	}
	if len(applied) == 0 {
		d.metrics.StockDeduction(outcome)
		return err
	}

	d.metrics.StockDeduction("partial")
	logger.FromContext(ctx).Error("stock deduction left partially applied",
		zap.Any("applied", applied), zap.Error(err))
	return &PartialDeductionError{Applied: applied, Err: err}
}

func toWrites(reqs []Requirement, stocks map[int64]int) []repository.StockWrite {
	writes := make([]repository.StockWrite, len(reqs))
	for i, r := range reqs {
		writes[i] = repository.StockWrite{
			ProductID: r.ProductID,
			Name:      r.Name,
			Quantity:  r.Quantity,
			Expected:  stocks[r.ProductID],
		}
	}
	return writes
}
