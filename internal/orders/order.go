package orders

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const StatusPending = "pending"

type Order struct {
	ID       string  `json:"id"`
	UserID   string  `json:"user_id"`
	Product  string  `json:"product"`
	Quantity int     `json:"quantity"`
	Total    float64 `json:"total"`
	Status   string  `json:"status"`
	// CreatedAt is Unix time in seconds.
	CreatedAt float64 `json:"created_at"`
}

// CreateOrderRequest only requires its keys to be present; an empty product
// or a zero quantity is a valid order.
type CreateOrderRequest struct {
	UserID   *UserID   `json:"user_id" binding:"required"`
	Product  *string   `json:"product" binding:"required"`
	Quantity *Quantity `json:"quantity" binding:"required"`
}

// UserID accepts either a JSON string or a JSON integer.
type UserID string

func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*u = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = UserID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("user_id must be a string or an integer: %w", err)
	}
	*u = UserID(strconv.FormatInt(n, 10))
	return nil
}

// QuantityError reports a quantity that is not a whole number.
type QuantityError struct {
	Value string
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("quantity %s is not an integer", e.Value)
}

// Quantity accepts a JSON number or a string holding an integer. Fractional
// numbers are truncated toward zero.
type Quantity int

func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return &QuantityError{Value: string(data)}
		}
		*q = Quantity(n)
		return nil
	}
	if n, err := strconv.Atoi(string(data)); err == nil {
		*q = Quantity(n)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return &QuantityError{Value: string(data)}
	}
	*q = Quantity(int(f))
	return nil
}
