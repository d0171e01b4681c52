package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tgordeev/weather-balance-service/internal/models"
	"github.com/tgordeev/weather-balance-service/internal/observability"
	"github.com/tgordeev/weather-balance-service/internal/store"
)

// ErrInvalidOperation is returned when the requested operation is neither
// increase nor decrease.
var ErrInvalidOperation = errors.New("invalid operation")

// TemperatureProvider yields a temperature reading for a city. Implemented
// by TemperatureService; narrowed to an interface so balance tests can
// substitute a fixed reading.
type TemperatureProvider interface {
	GetTemperature(ctx context.Context, city string) (models.TemperatureReading, error)
}

// BalanceService adjusts user balances by the current temperature of a city.
type BalanceService struct {
	temps           TemperatureProvider
	users           store.UserStore
	deltaMultiplier float64
}

// NewBalanceService creates a BalanceService. deltaMultiplier scales the
// temperature-to-delta rule; values <= 0 fall back to 1.
func NewBalanceService(temps TemperatureProvider, users store.UserStore, deltaMultiplier float64) *BalanceService {
	if deltaMultiplier <= 0 {
		deltaMultiplier = 1
	}
	return &BalanceService{
		temps:           temps,
		users:           users,
		deltaMultiplier: deltaMultiplier,
	}
}

// DeltaForTemperature is the business rule mapping a temperature reading to
// a balance adjustment magnitude: delta = temperature * multiplier. Kept as
// a pure function so the mapping is swappable without touching the update
// path.
func DeltaForTemperature(tempCelsius, multiplier float64) float64 {
	return tempCelsius * multiplier
}

// UpdateBalance applies a temperature-derived delta to the user's balance.
// Increase adds the delta, decrease subtracts it. The store applies the
// adjustment atomically per user, so concurrent updates are never lost.
// Fails with ErrInvalidOperation before any lookup, ErrWeatherUnavailable
// when the temperature cannot be obtained (no balance write happens), or
// store.ErrUserNotFound when the user does not exist.
func (s *BalanceService) UpdateBalance(ctx context.Context, req models.BalanceUpdateRequest) (models.BalanceUpdateResult, error) {
	start := time.Now()
	logger := loggerFromContext(ctx)

	if !req.Operation.Valid() {
		observability.BalanceUpdatesTotal.WithLabelValues("unknown", "invalid_operation").Inc()
		return models.BalanceUpdateResult{}, fmt.Errorf("%w: %q", ErrInvalidOperation, req.Operation)
	}

	reading, err := s.temps.GetTemperature(ctx, req.City)
	if err != nil {
		observability.BalanceUpdatesTotal.WithLabelValues(string(req.Operation), "weather_unavailable").Inc()
		return models.BalanceUpdateResult{}, err
	}

	delta := DeltaForTemperature(reading.Temperature, s.deltaMultiplier)
	signed := delta
	if req.Operation == models.OperationDecrease {
		signed = -delta
	}

	newBalance, err := s.users.ApplyBalanceDelta(ctx, req.UserID, signed)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			observability.BalanceUpdatesTotal.WithLabelValues(string(req.Operation), "user_not_found").Inc()
			return models.BalanceUpdateResult{}, err
		}
		observability.BalanceUpdatesTotal.WithLabelValues(string(req.Operation), "store_error").Inc()
		return models.BalanceUpdateResult{}, fmt.Errorf("apply balance delta: %w", err)
	}

	observability.BalanceUpdatesTotal.WithLabelValues(string(req.Operation), "success").Inc()
	observability.BalanceDeltaApplied.Observe(delta)
	if logger != nil {
		logger.Info("balance updated",
			zap.Int64("user_id", req.UserID),
			zap.String("operation", string(req.Operation)),
			zap.String("city", reading.City),
			zap.Float64("delta", signed),
			zap.Float64("new_balance", newBalance),
			zap.Duration("duration", time.Since(start)))
	}

	return models.BalanceUpdateResult{
		UserID:      req.UserID,
		Operation:   req.Operation,
		City:        reading.City,
		Temperature: reading.Temperature,
		Delta:       signed,
		NewBalance:  newBalance,
	}, nil
}
