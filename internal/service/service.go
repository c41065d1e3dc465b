// Package service implements the marketplace core workflows. Database work
// for one operation runs in a single transaction; events, notification
// pushes and outbox appends happen only after commit and never fail the
// operation.
package service

import (
	"context"
	"fmt"
	"strings"

	"campusmart/internal/event"
	"campusmart/internal/model"

	"github.com/shopspring/decimal"
)

// Publisher delivers a real-time event to every connection in a room.
type Publisher interface {
	Emit(room string, name event.Name, data any)
}

// Outbox queues a notification for out-of-band delivery (email, push).
type Outbox interface {
	Append(ctx context.Context, n model.Notification) error
}

type nopPublisher struct{}

func (nopPublisher) Emit(string, event.Name, any) {}

// NopPublisher drops every event.
var NopPublisher Publisher = nopPublisher{}

// round1 rounds half away from zero to one decimal place.
func round1(x float64) float64 {
	return decimal.NewFromFloat(x).Round(1).InexactFloat64()
}

// money renders an amount with thousands separators, e.g. 12,500.00.
func money(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}

// preview shortens chat text for notification bodies.
func preview(content string, limit int) string {
	r := []rune(content)
	if len(r) <= limit {
		return content
	}
	return string(r[:limit]) + "..."
}

func naira(d decimal.Decimal, places int32) string {
	return fmt.Sprintf("₦%s", money(d, places))
}
