package order

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"flashsale/internal/model"
	"flashsale/internal/monitor"
	"flashsale/internal/repository"
	"flashsale/pkg/log"
)

// Service turns admitted tickets into durable order rows
type Service struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	voucherRepo repository.VoucherRepository
	tracer      trace.Tracer
}

// NewService creates an order service
func NewService(db *gorm.DB, orderRepo repository.OrderRepository, voucherRepo repository.VoucherRepository) *Service {
	return &Service{
		db:          db,
		orderRepo:   orderRepo,
		voucherRepo: voucherRepo,
		tracer:      monitor.Tracer("order"),
	}
}

// CreateVoucherOrder writes the order inside one transaction: verify
// the user has no order yet, take one unit off the durable stock, then
// insert the row. Both safety re-checks return nil on violation; the
// admission gate already told the user yes, so a redelivered or racing
// ticket is absorbed silently instead of surfacing a second answer.
func (s *Service) CreateVoucherOrder(ctx context.Context, ticket *model.OrderTicket) error {
	ctx, span := s.tracer.Start(ctx, "order.create",
		trace.WithAttributes(attribute.Int64("order.id", ticket.OrderID)))
	defer span.End()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		voucherRepo := s.voucherRepo.WithTx(tx)

		count, err := orderRepo.CountByUserAndVoucher(ctx, ticket.UserID, ticket.VoucherID)
		if err != nil {
			return err
		}
		if count > 0 {
			log.WithFields(map[string]interface{}{
				"user_id":    ticket.UserID,
				"voucher_id": ticket.VoucherID,
			}).Info("order already exists, skipping")
			return nil
		}

		rows, err := voucherRepo.DecrementStock(ctx, ticket.VoucherID)
		if err != nil {
			return err
		}
		if rows == 0 {
			log.WithFields(map[string]interface{}{
				"order_id":   ticket.OrderID,
				"voucher_id": ticket.VoucherID,
			}).Warn("durable stock exhausted, dropping ticket")
			return nil
		}

		return orderRepo.Create(ctx, ticket.ToOrder())
	})
}

// GetByID returns an order by its id
func (s *Service) GetByID(ctx context.Context, id int64) (*model.VoucherOrder, error) {
	return s.orderRepo.GetByID(ctx, id)
}

// ListByUser returns a user's orders, newest first
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]*model.VoucherOrder, error) {
	return s.orderRepo.ListByUser(ctx, userID)
}
