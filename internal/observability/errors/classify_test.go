package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/target/mmk-bol-sync/internal/bol"
	apperrors "github.com/target/mmk-bol-sync/internal/errors"
)

type customErr struct{}

func (customErr) Error() string { return "custom" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "canceled", err: fmt.Errorf("run: %w", context.Canceled), want: "canceled"},
		{name: "deadline", err: context.DeadlineExceeded, want: "timeout"},
		{name: "rate limited", err: &bol.RateLimitError{Path: "/orders"}, want: "rate_limited"},
		{name: "auth", err: &bol.AuthError{Audience: bol.AudienceRetailer}, want: "auth"},
		{name: "transport", err: &bol.TransportError{Op: "GET /orders", Err: errors.New("reset")}, want: "transport"},
		{name: "app error", err: apperrors.NotFound("gone"), want: "app_not_found"},
		{name: "wrapped custom", err: fmt.Errorf("outer: %w", customErr{}), want: "errors_customerr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
