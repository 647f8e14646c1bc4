package handler

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/edalik/electronics-store-user-service/internal/models"
)

var phonePattern = regexp.MustCompile(`^((\+7|7|8)\d{10})$`)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("ru_phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

type registerRequest struct {
	Login    string `json:"login" validate:"required,min=4,max=50"`
	Password string `json:"password" validate:"required,min=8,max=50"`
}

type loginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// updateRequest carries only the mutable profile fields. Absent or null
// fields leave the stored value unchanged; login, email and balance are
// not part of this surface.
type updateRequest struct {
	ID          *uuid.UUID   `json:"id"`
	Name        *string      `json:"name" validate:"omitempty,max=50"`
	Surname     *string      `json:"surname" validate:"omitempty,max=50"`
	Patronymic  *string      `json:"patronymic" validate:"omitempty,max=50"`
	Gender      *bool        `json:"gender"`
	Birthdate   *models.Date `json:"birthdate"`
	PhoneNumber *string      `json:"phoneNumber" validate:"omitempty,ru_phone"`
}

func (r updateRequest) toUpdate() models.UserUpdate {
	return models.UserUpdate{
		Name:        r.Name,
		Surname:     r.Surname,
		Patronymic:  r.Patronymic,
		Gender:      r.Gender,
		Birthdate:   r.Birthdate,
		PhoneNumber: r.PhoneNumber,
	}
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// validAmount requires a positive value with at most two decimal places.
func (r amountRequest) validAmount() bool {
	return r.Amount.IsPositive() && r.Amount.Exponent() >= -2
}

type balanceResponse struct {
	Amount decimal.Decimal `json:"amount"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type userResponse struct {
	ID          uuid.UUID       `json:"id"`
	Login       string          `json:"login"`
	Name        *string         `json:"name,omitempty"`
	Surname     *string         `json:"surname,omitempty"`
	Patronymic  *string         `json:"patronymic,omitempty"`
	Gender      *bool           `json:"gender,omitempty"`
	Birthdate   *models.Date    `json:"birthdate,omitempty"`
	PhoneNumber *string         `json:"phoneNumber,omitempty"`
	Email       *string         `json:"email,omitempty"`
	Balance     decimal.Decimal `json:"balance"`
	CreatedTime time.Time       `json:"createdTime"`
	UpdatedTime time.Time       `json:"updatedTime"`
}

// toUserResponse never exposes the password hash.
func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Login:       u.Login,
		Name:        u.Name,
		Surname:     u.Surname,
		Patronymic:  u.Patronymic,
		Gender:      u.Gender,
		Birthdate:   u.Birthdate,
		PhoneNumber: u.PhoneNumber,
		Email:       u.Email,
		Balance:     u.Balance,
		CreatedTime: u.CreatedTime,
		UpdatedTime: u.UpdatedTime,
	}
}
