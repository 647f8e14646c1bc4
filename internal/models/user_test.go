package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyUpdate(t *testing.T) {
	name := "Ivan"
	surname := "Petrov"

	t.Run("nil fields leave values unchanged", func(t *testing.T) {
		user := User{Name: &name, Surname: &surname}

		newName := "Pyotr"
		user.ApplyUpdate(UserUpdate{Name: &newName})

		require.NotNil(t, user.Name)
		assert.Equal(t, "Pyotr", *user.Name)
		require.NotNil(t, user.Surname)
		assert.Equal(t, "Petrov", *user.Surname)
	})

	t.Run("empty update is a no-op", func(t *testing.T) {
		user := User{Name: &name}

		user.ApplyUpdate(UserUpdate{})

		require.NotNil(t, user.Name)
		assert.Equal(t, "Ivan", *user.Name)
	})

	t.Run("all fields applied", func(t *testing.T) {
		var user User
		gender := true
		birthdate := NewDate(1990, time.March, 15)
		phone := "+79001234567"

		user.ApplyUpdate(UserUpdate{
			Name:        &name,
			Surname:     &surname,
			Gender:      &gender,
			Birthdate:   &birthdate,
			PhoneNumber: &phone,
		})

		assert.Equal(t, &name, user.Name)
		assert.Equal(t, &surname, user.Surname)
		assert.Equal(t, &gender, user.Gender)
		assert.Equal(t, &birthdate, user.Birthdate)
		assert.Equal(t, &phone, user.PhoneNumber)
	})
}

func TestDateJSON(t *testing.T) {
	t.Run("marshals as yyyy.MM.dd", func(t *testing.T) {
		d := NewDate(1990, time.March, 15)

		out, err := json.Marshal(d)
		require.NoError(t, err)
		assert.Equal(t, `"1990.03.15"`, string(out))
	})

	t.Run("unmarshals the same format", func(t *testing.T) {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(`"2001.12.31"`), &d))
		assert.Equal(t, NewDate(2001, time.December, 31), d)
	})

	t.Run("rejects other formats", func(t *testing.T) {
		var d Date
		assert.Error(t, json.Unmarshal([]byte(`"1990-03-15"`), &d))
	})

	t.Run("round trips inside a struct", func(t *testing.T) {
		type payload struct {
			Birthdate *Date `json:"birthdate,omitempty"`
		}
		birthdate := NewDate(1985, time.July, 1)

		out, err := json.Marshal(payload{Birthdate: &birthdate})
		require.NoError(t, err)

		var decoded payload
		require.NoError(t, json.Unmarshal(out, &decoded))
		require.NotNil(t, decoded.Birthdate)
		assert.True(t, decoded.Birthdate.Equal(birthdate.Time))
	})
}

func TestDateScan(t *testing.T) {
	t.Run("from time", func(t *testing.T) {
		var d Date
		ts := time.Date(1990, time.March, 15, 0, 0, 0, 0, time.UTC)
		require.NoError(t, d.Scan(ts))
		assert.True(t, d.Equal(ts))
	})

	t.Run("from nil", func(t *testing.T) {
		var d Date
		require.NoError(t, d.Scan(nil))
		assert.True(t, d.IsZero())
	})

	t.Run("unsupported type", func(t *testing.T) {
		var d Date
		assert.Error(t, d.Scan(42))
	})
}
