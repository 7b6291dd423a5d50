package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/pos-backend/pkg/logger"
)

type negativeStockCounter interface {
	CountNegative(ctx context.Context) (int64, error)
}

type negativeStockGauge interface {
	SetNegativeStock(count int64)
}

type NegativeStockJobParams struct {
	Logger *logger.Logger
	Stock  negativeStockCounter
	Gauge  negativeStockGauge
}

// NewNegativeStockJob publishes how many stock rows have gone below zero.
func NewNegativeStockJob(params NegativeStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock service required")
	}
	return &negativeStockJob{
		logg:  params.Logger,
		stock: params.Stock,
		gauge: params.Gauge,
	}, nil
}

type negativeStockJob struct {
	logg  *logger.Logger
	stock negativeStockCounter
	gauge negativeStockGauge
}

func (j *negativeStockJob) Name() string { return "negative-stock" }

func (j *negativeStockJob) Run(ctx context.Context) error {
	count, err := j.stock.CountNegative(ctx)
	if err != nil {
		return fmt.Errorf("count negative stock: %w", err)
	}
	if j.gauge != nil {
		j.gauge.SetNegativeStock(count)
	}
	logCtx := j.logg.WithField(ctx, "negative_rows", count)
	if count > 0 {
		j.logg.Warn(logCtx, "stock entries below zero")
		return nil
	}
	j.logg.Info(logCtx, "no negative stock")
	return nil
}
