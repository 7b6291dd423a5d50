package receipts

import (
	"context"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

const (
	KindSale   = "sale"
	KindReturn = "return"
)

type failureCounter interface {
	IncReceiptFailure(kind string)
}

// Service renders committed transactions and hands them to the printer.
// Delivery failures come back as CodeExternalService errors.
type Service struct {
	renderer Renderer
	printer  Printer
	metrics  failureCounter
	logg     *logger.Logger
}

func NewService(renderer Renderer, printer Printer, metrics failureCounter, logg *logger.Logger) *Service {
	if printer == nil {
		printer = NopPrinter{}
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{renderer: renderer, printer: printer, metrics: metrics, logg: logg}
}

func (s *Service) DeliverSale(ctx context.Context, tx *models.Transaction) error {
	doc := Document{Kind: KindSale, ID: tx.SaleID, Body: s.renderer.Sale(tx)}
	return s.deliver(ctx, doc)
}

func (s *Service) DeliverReturn(ctx context.Context, ret *models.ReturnTransaction) error {
	doc := Document{Kind: KindReturn, ID: ret.ReturnID, Body: s.renderer.Return(ret)}
	return s.deliver(ctx, doc)
}

func (s *Service) deliver(ctx context.Context, doc Document) error {
	err := s.printer.Print(ctx, doc)
	if err == nil {
		return nil
	}
	if s.metrics != nil {
		s.metrics.IncReceiptFailure(doc.Kind)
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"receipt_kind": doc.Kind,
		"receipt_id":   doc.ID,
		"error":        err.Error(),
	}), "receipt delivery failed")
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeExternalService, err, "deliver receipt")
}
