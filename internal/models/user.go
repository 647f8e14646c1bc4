package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID           uuid.UUID
	Login        string
	PasswordHash string
	Name         *string
	Surname      *string
	Patronymic   *string
	Gender       *bool
	Birthdate    *Date
	PhoneNumber  *string
	Email        *string
	Balance      decimal.Decimal
	CreatedTime  time.Time
	UpdatedTime  time.Time
}

// UserUpdate carries the mutable profile fields of a partial update.
// Nil means "leave unchanged"; login, email and balance are not part of
// this set and can never be touched through an update.
type UserUpdate struct {
	Name        *string
	Surname     *string
	Patronymic  *string
	Gender      *bool
	Birthdate   *Date
	PhoneNumber *string
}

// ApplyUpdate merges the non-nil fields of upd onto u.
func (u *User) ApplyUpdate(upd UserUpdate) {
	if upd.Name != nil {
		u.Name = upd.Name
	}
	if upd.Surname != nil {
		u.Surname = upd.Surname
	}
	if upd.Patronymic != nil {
		u.Patronymic = upd.Patronymic
	}
	if upd.Gender != nil {
		u.Gender = upd.Gender
	}
	if upd.Birthdate != nil {
		u.Birthdate = upd.Birthdate
	}
	if upd.PhoneNumber != nil {
		u.PhoneNumber = upd.PhoneNumber
	}
}
