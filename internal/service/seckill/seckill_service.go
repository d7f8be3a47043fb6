package seckill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"flashsale/internal/cache"
	"flashsale/internal/model"
	"flashsale/internal/monitor"
	"flashsale/internal/queue"
	"flashsale/internal/redis"
	"flashsale/internal/repository"
	"flashsale/pkg/breaker"
	"flashsale/pkg/idgen"
	"flashsale/pkg/log"
	"flashsale/pkg/utils"
)

const (
	voucherCachePrefix = "cache:voucher:"
	orderIDCategory    = "order"
)

// Service is the flash-sale gate. It answers every purchase request
// from Redis state alone and hands admitted requests to the ingest
// queue; the database is never on this path.
type Service struct {
	voucherRepo repository.VoucherRepository
	cache       *cache.Client
	admitter    *redis.Admitter
	idGen       *idgen.Generator
	queue       queue.OrderQueue
	prefilter   *Prefilter
	breaker     *breaker.CircuitBreaker
	tracer      trace.Tracer
	voucherTTL  time.Duration
}

// NewService creates a seckill service
func NewService(
	voucherRepo repository.VoucherRepository,
	cacheClient *cache.Client,
	admitter *redis.Admitter,
	idGen *idgen.Generator,
	q queue.OrderQueue,
	prefilter *Prefilter,
	voucherTTL time.Duration,
) *Service {
	if voucherTTL <= 0 {
		voucherTTL = 30 * time.Minute
	}
	return &Service{
		voucherRepo: voucherRepo,
		cache:       cacheClient,
		admitter:    admitter,
		idGen:       idGen,
		queue:       q,
		prefilter:   prefilter,
		tracer:      monitor.Tracer("seckill"),
		voucherTTL:  voucherTTL,
		breaker: breaker.New(breaker.Config{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          10 * time.Second,
			OnStateChange: func(from, to breaker.State) {
				log.WithFields(map[string]interface{}{
					"from": from.String(),
					"to":   to.String(),
				}).Warn("admission breaker state changed")
			},
		}),
	}
}

// Seckill handles one purchase attempt. On success the returned order
// id is the user's receipt; the durable row appears shortly after.
func (s *Service) Seckill(ctx context.Context, userID, voucherID int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "seckill",
		trace.WithAttributes(
			attribute.Int64("voucher.id", voucherID),
			attribute.Int64("user.id", userID),
		))
	defer span.End()

	if userID <= 0 || voucherID <= 0 {
		return 0, utils.ErrInvalidParam
	}

	// Requests for campaigns that were never warmed stop here.
	if !s.prefilter.MightExist(voucherID) {
		return 0, utils.NewError(utils.CodeInvalidParam, "voucher not found")
	}
	if s.prefilter.IsSoldOut(voucherID) {
		monitor.AdmissionTotal.WithLabelValues(monitor.ResultSoldOut).Inc()
		return 0, utils.ErrSoldOut
	}

	voucher, err := s.getVoucher(ctx, voucherID)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return 0, utils.NewError(utils.CodeInvalidParam, "voucher not found")
		}
		return 0, err
	}

	now := time.Now()
	if !voucher.Started(now) {
		return 0, utils.ErrSaleNotStart
	}
	if voucher.Ended(now) {
		return 0, utils.ErrSaleEnded
	}

	orderID, err := s.idGen.NextID(ctx, orderIDCategory)
	if err != nil {
		return 0, fmt.Errorf("failed to generate order id: %w", err)
	}

	var result int
	err = s.breaker.Execute(func() error {
		var admitErr error
		result, admitErr = s.admitter.Admit(ctx, voucherID, userID)
		return admitErr
	})
	if err != nil {
		// Fail closed: without the admission verdict nobody gets in.
		monitor.AdmissionTotal.WithLabelValues(monitor.ResultError).Inc()
		log.WithError(err).WithFields(map[string]interface{}{
			"user_id":    userID,
			"voucher_id": voucherID,
		}).Error("admission unavailable")
		return 0, utils.ErrInternalError
	}

	switch result {
	case redis.AdmitSoldOut:
		monitor.AdmissionTotal.WithLabelValues(monitor.ResultSoldOut).Inc()
		s.prefilter.MarkSoldOut(voucherID)
		return 0, utils.ErrSoldOut
	case redis.AdmitDuplicateUser:
		monitor.AdmissionTotal.WithLabelValues(monitor.ResultDuplicate).Inc()
		return 0, utils.ErrDuplicateUser
	}

	ticket := &model.OrderTicket{OrderID: orderID, UserID: userID, VoucherID: voucherID}
	if err := s.queue.Enqueue(ctx, ticket); err != nil {
		// The claim in Redis stands but the ticket is lost; surface
		// the failure so the user can retry through the dup path.
		monitor.AdmissionTotal.WithLabelValues(monitor.ResultError).Inc()
		log.WithError(err).WithField("order_id", orderID).Error("failed to enqueue order ticket")
		return 0, utils.ErrInternalError
	}

	monitor.AdmissionTotal.WithLabelValues(monitor.ResultAdmitted).Inc()
	return orderID, nil
}

// Prewarm seeds everything the gate needs to sell a campaign: the
// cached stock counter, the bloom filter entry and the voucher cache.
// Must run before the sale window opens.
func (s *Service) Prewarm(ctx context.Context, voucherID int64) error {
	voucher, err := s.voucherRepo.GetByID(ctx, voucherID)
	if err != nil {
		return err
	}

	if err := s.admitter.SetStock(ctx, voucherID, voucher.Stock); err != nil {
		return fmt.Errorf("failed to seed stock: %w", err)
	}
	if err := s.cache.Set(ctx, voucherCacheKey(voucherID), voucher, s.voucherTTL); err != nil {
		return fmt.Errorf("failed to cache voucher: %w", err)
	}

	s.prefilter.AddCampaign(voucherID)
	s.prefilter.ClearSoldOut(voucherID)

	log.WithFields(map[string]interface{}{
		"voucher_id": voucherID,
		"stock":      voucher.Stock,
	}).Info("campaign warmed")
	return nil
}

// PrewarmAll warms every campaign whose window has not closed yet
func (s *Service) PrewarmAll(ctx context.Context) error {
	vouchers, err := s.voucherRepo.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, v := range vouchers {
		if err := s.Prewarm(ctx, v.ID); err != nil {
			log.WithError(err).WithField("voucher_id", v.ID).Error("failed to warm campaign")
		}
	}
	return nil
}

func (s *Service) getVoucher(ctx context.Context, voucherID int64) (*model.Voucher, error) {
	return cache.QueryWithPassThrough(ctx, s.cache, voucherCacheKey(voucherID), s.voucherTTL,
		func(ctx context.Context) (*model.Voucher, error) {
			voucher, err := s.voucherRepo.GetByID(ctx, voucherID)
			if errors.Is(err, repository.ErrVoucherNotFound) {
				return nil, nil
			}
			return voucher, err
		})
}

func voucherCacheKey(voucherID int64) string {
	return fmt.Sprintf("%s%d", voucherCachePrefix, voucherID)
}
