package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/edalik/electronics-store-user-service/internal/config"
	"github.com/edalik/electronics-store-user-service/internal/infrastructure/auth"
	service "github.com/edalik/electronics-store-user-service/internal/services"
)

type Handler struct {
	users    service.UserService
	balance  service.BalanceService
	resolver auth.Resolver
	mode     config.AuthMode
	validate *validator.Validate
}

func NewHandler(users service.UserService, balance service.BalanceService, resolver auth.Resolver, mode config.AuthMode) *Handler {
	return &Handler{
		users:    users,
		balance:  balance,
		resolver: resolver,
		mode:     mode,
		validate: newValidator(),
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func (h *Handler) checkValid(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeValidationError(w, r, validationFields(verrs))
		} else {
			writeError(w, r, http.StatusBadRequest, err.Error())
		}
		return false
	}
	return true
}

func validationFields(verrs validator.ValidationErrors) []fieldError {
	fields := make([]fieldError, 0, len(verrs))
	for _, e := range verrs {
		var msg string
		switch e.Tag() {
		case "required":
			msg = "is required"
		case "min":
			msg = fmt.Sprintf("must be at least %s characters", e.Param())
		case "max":
			msg = fmt.Sprintf("must be at most %s characters", e.Param())
		case "email":
			msg = "must be a valid email address"
		case "ru_phone":
			msg = "must be +7, 7 or 8 followed by 10 digits"
		default:
			msg = "is invalid"
		}
		fields = append(fields, fieldError{Field: e.Field(), Message: msg})
	}
	return fields
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) || !h.checkValid(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), req.Login, req.Password)
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) || !h.checkValid(w, r, &req) {
		return
	}

	token, err := h.users.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.users.FindByID(r.Context(), id)
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// GetOrCreateUser serves the token-identity variant: the first
// authenticated access creates the profile from the verified claims.
func (h *Handler) GetOrCreateUser(w http.ResponseWriter, r *http.Request) {
	identity, err := h.resolver.Resolve(r)
	if err != nil {
		mapError(w, r, err)
		return
	}

	user, err := h.users.GetOrCreate(r.Context(), identity)
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !h.decode(w, r, &req) || !h.checkValid(w, r, &req) {
		return
	}

	var id uuid.UUID
	if h.mode == config.AuthModeJWT {
		identity, err := h.resolver.Resolve(r)
		if err != nil {
			mapError(w, r, err)
			return
		}
		id = identity.UserID
	} else {
		if req.ID == nil {
			writeValidationError(w, r, []fieldError{{Field: "id", Message: "is required"}})
			return
		}
		id = *req.ID
	}

	user, err := h.users.Update(r.Context(), id, req.toUpdate())
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	var id uuid.UUID
	if raw, ok := mux.Vars(r)["id"]; ok {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid user id")
			return
		}
		id = parsed
	} else {
		identity, err := h.resolver.Resolve(r)
		if err != nil {
			mapError(w, r, err)
			return
		}
		id = identity.UserID
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		mapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	identity, err := h.resolver.Resolve(r)
	if err != nil {
		mapError(w, r, err)
		return
	}

	amount, err := h.balance.GetBalance(r.Context(), identity.UserID)
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Amount: amount})
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.balanceOp(w, r, h.balance.Deposit)
}

func (h *Handler) Payment(w http.ResponseWriter, r *http.Request) {
	h.balanceOp(w, r, h.balance.Payment)
}

func (h *Handler) balanceOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error) {
	identity, err := h.resolver.Resolve(r)
	if err != nil {
		mapError(w, r, err)
		return
	}

	var req amountRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !req.validAmount() {
		writeValidationError(w, r, []fieldError{{Field: "amount", Message: "must be a positive amount with at most two decimal places"}})
		return
	}

	if err := op(r.Context(), identity.UserID, req.Amount); err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
