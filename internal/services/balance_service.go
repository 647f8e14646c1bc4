package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/edalik/electronics-store-user-service/internal/infrastructure/kafka"
	"github.com/edalik/electronics-store-user-service/internal/infrastructure/redis"
	"github.com/edalik/electronics-store-user-service/internal/repository"
	pkgerrors "github.com/edalik/electronics-store-user-service/pkg/errors"
)

const (
	balanceCacheTTL = 5 * time.Minute
	balanceTopic    = "balance-operations"
)

type BalanceService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error
	Payment(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error
}

type balanceService struct {
	userRepo    repository.UserRepository
	redisClient redis.RedisClient
	producer    kafka.KafkaProducer
}

func NewBalanceService(
	userRepo repository.UserRepository,
	redisClient redis.RedisClient,
	producer kafka.KafkaProducer,
) *balanceService {
	return &balanceService{
		userRepo:    userRepo,
		redisClient: redisClient,
		producer:    producer,
	}
}

func balanceKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s:balance", userID)
}

// GetBalance reads the current balance without locking. A slightly stale
// value is acceptable here: the report is advisory, not a reservation.
func (s *balanceService) GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "GetBalance")
	defer span.End()

	if cached, err := s.redisClient.Get(ctx, balanceKey(userID)); err == nil {
		if balance, err := decimal.NewFromString(cached); err == nil {
			return balance, nil
		}
		slog.Warn("unreadable cached balance, falling back to Postgres", "user_id", userID)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "user lookup failed")
		slog.Error("failed to get balance", "user_id", userID, "error", err)
		return decimal.Zero, err
	}

	if err := s.redisClient.Set(ctx, balanceKey(userID), user.Balance.String(), balanceCacheTTL); err != nil {
		slog.Error("failed to cache balance", "user_id", userID, "error", err)
	}

	return user.Balance, nil
}

// Deposit credits the user atomically. The increment statement takes the
// row write lock itself, so no explicit lock acquisition is needed; the
// transaction's lock_timeout still bounds the wait behind a writer.
func (s *balanceService) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "Deposit")
	defer span.End()

	if !amount.IsPositive() {
		span.SetStatus(codes.Error, "non-positive amount")
		return fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidInput)
	}

	err := s.userRepo.InTransaction(ctx, func(tx repository.BalanceTx) error {
		rows, err := tx.IncreaseBalance(ctx, userID, amount)
		if err != nil {
			return err
		}
		if rows < 1 {
			return pkgerrors.ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "deposit failed")
		slog.Error("deposit failed", "user_id", userID, "amount", amount, "error", err)
		return err
	}

	s.invalidateBalance(ctx, userID)
	s.publishBalanceEvent(userID, "balance_deposited", amount)

	slog.Info("deposit completed", "user_id", userID, "amount", amount)
	return nil
}

// Payment debits the user. The row lock is held from the sufficiency
// check through the write, so no concurrent operation can invalidate the
// just-checked balance.
func (s *balanceService) Payment(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "Payment")
	defer span.End()

	if !amount.IsPositive() {
		span.SetStatus(codes.Error, "non-positive amount")
		return fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidInput)
	}

	err := s.userRepo.InTransaction(ctx, func(tx repository.BalanceTx) error {
		user, err := tx.LockForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if user.Balance.LessThan(amount) {
			return pkgerrors.ErrInsufficientFunds
		}
		rows, err := tx.DecreaseBalance(ctx, userID, amount)
		if err != nil {
			return err
		}
		if rows < 1 {
			return pkgerrors.ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment failed")
		slog.Error("payment failed", "user_id", userID, "amount", amount, "error", err)
		return err
	}

	s.invalidateBalance(ctx, userID)
	s.publishBalanceEvent(userID, "balance_charged", amount)

	slog.Info("payment completed", "user_id", userID, "amount", amount)
	return nil
}

func (s *balanceService) invalidateBalance(ctx context.Context, userID uuid.UUID) {
	if err := s.redisClient.Del(ctx, balanceKey(userID)); err != nil {
		slog.Error("failed to invalidate balance cache", "user_id", userID, "error", err)
	}
}

func (s *balanceService) publishBalanceEvent(userID uuid.UUID, eventType string, amount decimal.Decimal) {
	event := map[string]interface{}{
		"event_type":  eventType,
		"user_id":     userID.String(),
		"amount":      amount.String(),
		"occurred_at": time.Now().UTC().Format(time.RFC3339),
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal balance event", "user_id", userID, "error", err)
		return
	}
	go func() {
		if err := s.producer.Send(context.Background(), balanceTopic, userID.String(), eventBytes); err != nil {
			slog.Error("failed to send balance event", "user_id", userID, "event_type", eventType)
		}
	}()
}
