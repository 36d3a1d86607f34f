package models

import (
	"fmt"
	"strings"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusPaid      OrderStatus = "PAID"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusFulfilled OrderStatus = "FULFILLED"
)

var knownStatuses = map[OrderStatus]bool{
	StatusPending:   true,
	StatusPaid:      true,
	StatusCancelled: true,
	StatusFulfilled: true,
}

// ParseOrderStatus accepts any of the four statuses regardless of case.
// Any status may follow any other; there is no transition graph.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !knownStatuses[st] {
		return "", fmt.Errorf("invalid order status: %s", s)
	}
	return st, nil
}
