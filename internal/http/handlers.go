package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tgordeev/weather-balance-service/internal/client"
	"github.com/tgordeev/weather-balance-service/internal/lifecycle"
	"github.com/tgordeev/weather-balance-service/internal/models"
	"github.com/tgordeev/weather-balance-service/internal/service"
	"github.com/tgordeev/weather-balance-service/internal/store"
	"github.com/tgordeev/weather-balance-service/internal/traffic"
	"github.com/tgordeev/weather-balance-service/internal/validation"
)

// HealthConfig holds thresholds and probes for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	// CachePing, when set, is called to check cache reachability. Used when
	// the backend is memcached.
	CachePing func() error
	// DBPing, when set, is called to check user store reachability.
	DBPing func(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	balances         *service.BalanceService
	temperatures     *service.TemperatureService
	users            store.UserStore
	weatherClient    client.WeatherClient
	healthConfig     *HealthConfig
	logger           *zap.Logger
	rateLimiter      *rate.Limiter
	cityMinLen       int
	cityMaxLen       int
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(
	balances *service.BalanceService,
	temperatures *service.TemperatureService,
	users store.UserStore,
	weatherClient client.WeatherClient,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	rateLimiter *rate.Limiter,
	cityMinLen, cityMaxLen int,
) *Handler {
	return &Handler{
		balances:      balances,
		temperatures:  temperatures,
		users:         users,
		weatherClient: weatherClient,
		healthConfig:  healthConfig,
		logger:        logger,
		rateLimiter:   rateLimiter,
		cityMinLen:    cityMinLen,
		cityMaxLen:    cityMaxLen,
	}
}

type createUserRequest struct {
	Username string  `json:"username"`
	Balance  float64 `json:"balance"`
}

type updateUserRequest struct {
	Username *string  `json:"username"`
	Balance  *float64 `json:"balance"`
}

type updateBalanceRequest struct {
	UserID    int64  `json:"user_id"`
	Operation string `json:"operation"`
	City      string `json:"city"`
}

// CreateUser handles POST /users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var body createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		return
	}
	if body.Username == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_USERNAME", "username is required")
		return
	}

	user := models.User{Username: body.Username, Balance: body.Balance}
	if err := h.users.Create(r.Context(), &user); err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			writeError(w, r, http.StatusConflict, "DUPLICATE_USERNAME", "username already exists")
			return
		}
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// GetUser handles GET /users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}
	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeError(w, r, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
			return
		}
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ListUsers handles GET /users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// UpdateUser handles PUT /users/{id}. Absent fields keep their stored value.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}
	var body updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeError(w, r, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
			return
		}
		writeStoreError(w, r, err)
		return
	}
	if body.Username != nil {
		user.Username = *body.Username
	}
	if body.Balance != nil {
		user.Balance = *body.Balance
	}

	if err := h.users.Update(r.Context(), user); err != nil {
		switch {
		case errors.Is(err, store.ErrUserNotFound):
			writeError(w, r, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
		case errors.Is(err, store.ErrDuplicateUsername):
			writeError(w, r, http.StatusConflict, "DUPLICATE_USERNAME", "username already exists")
		default:
			writeStoreError(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /users/{id}.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeError(w, r, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
			return
		}
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

// UpdateBalance handles POST /update-balance with a JSON body.
func (h *Handler) UpdateBalance(w http.ResponseWriter, r *http.Request) {
	var body updateBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		return
	}
	h.applyBalanceUpdate(w, r, body.Operation, strconv.FormatInt(body.UserID, 10), body.City)
}

// UpdateBalanceByPath handles GET /update-balance/{operation}/{id}/{city},
// the path-segment form of the same operation.
func (h *Handler) UpdateBalanceByPath(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.applyBalanceUpdate(w, r, vars["operation"], vars["id"], vars["city"])
}

// applyBalanceUpdate validates the loosely-typed inputs into a
// BalanceUpdateRequest and runs it through the balance service.
func (h *Handler) applyBalanceUpdate(w http.ResponseWriter, r *http.Request, operation, userID, city string) {
	op, err := validation.ParseOperation(operation)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_OPERATION", err.Error())
		return
	}
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "INVALID_USER_ID", "user id must be a positive integer")
		return
	}
	validCity, err := validation.ValidateCity(city, h.cityMinLen, h.cityMaxLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return
	}

	result, err := h.balances.UpdateBalance(r.Context(), models.BalanceUpdateRequest{
		UserID:    id,
		Operation: op,
		City:      validCity,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidOperation):
			writeError(w, r, http.StatusBadRequest, "INVALID_OPERATION", "operation must be increase or decrease")
		case errors.Is(err, store.ErrUserNotFound):
			writeError(w, r, http.StatusNotFound, "USER_NOT_FOUND", "user not found; balance not changed")
		case errors.Is(err, service.ErrWeatherUnavailable):
			traffic.RecordError()
			writeError(w, r, http.StatusBadGateway, "WEATHER_UNAVAILABLE", "failed to fetch weather for "+city+"; balance not changed")
			if logger := requestLogger(r); logger != nil {
				logger.Debug("weather lookup failed", zap.Error(err))
			}
		default:
			writeError(w, r, http.StatusInternalServerError, "INTERNAL", "balance update failed")
			if logger := requestLogger(r); logger != nil {
				logger.Error("balance update", zap.Error(err))
			}
		}
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, result)
}

// GetTemperature handles GET /weather/{city}: a direct cached temperature
// lookup without touching any balance.
func (h *Handler) GetTemperature(w http.ResponseWriter, r *http.Request) {
	city, err := validation.ValidateCity(mux.Vars(r)["city"], h.cityMinLen, h.cityMaxLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return
	}

	reading, err := h.temperatures.GetTemperature(r.Context(), city)
	if err != nil {
		traffic.RecordError()
		writeError(w, r, http.StatusBadGateway, "WEATHER_UNAVAILABLE", "unable to fetch temperature")
		if logger := requestLogger(r); logger != nil {
			logger.Debug("temperature lookup failed", zap.Error(err))
		}
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, reading)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if result.status == "degraded" {
		checks["weatherApi"] = "unhealthy"
	} else {
		checks["weatherApi"] = "healthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	if h.healthConfig != nil && h.healthConfig.DBPing != nil {
		if h.healthConfig.DBPing(r.Context()) == nil {
			checks["userStore"] = "healthy"
		} else {
			checks["userStore"] = "unhealthy"
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "weather-balance-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus evaluates health conditions in priority order:
// shutting-down > API key invalid > overloaded > degraded > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if err := h.weatherClient.ValidateAPIKey(ctx); err != nil {
		return healthResult{"degraded", http.StatusServiceUnavailable, "api_key_invalid"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if h.healthConfig.RateLimitRPS > 0 && h.healthConfig.OverloadWindow > 0 {
		threshold := float64(h.healthConfig.RateLimitRPS) * h.healthConfig.OverloadWindow.Seconds() * float64(h.healthConfig.OverloadThresholdPct) / 100
		if float64(traffic.RequestCount(h.healthConfig.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errCount, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errCount) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// parseUserID extracts and validates the {id} path variable. Writes a 400
// response and returns ok=false on failure.
func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "INVALID_USER_ID", "user id must be a positive integer")
		return 0, false
	}
	return id, true
}

// requestLogger returns the correlation-scoped logger from request context,
// or nil.
func requestLogger(r *http.Request) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok {
		return logger
	}
	return nil
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with
// code, message, and requestId (correlation ID) if available.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeStoreError writes a 500 response for unexpected user store failures.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusInternalServerError, "STORE_ERROR", "user store operation failed")
	if logger := requestLogger(r); logger != nil {
		logger.Error("user store error", zap.Error(err))
	}
}
