// Package errors turns errors into short class names for metric labels and logs.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	"github.com/target/mmk-bol-sync/internal/bol"
	apperrors "github.com/target/mmk-bol-sync/internal/errors"
)

// Classify returns a normalized error class. Known marketplace and storage
// failures get fixed names; anything else is named after its innermost
// concrete type in snake_case. A nil error yields "".
func Classify(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case bol.IsRateLimited(err):
		return "rate_limited"
	case bol.IsAuth(err):
		return "auth"
	case bol.IsTransient(err):
		return "transport"
	}
	if code := apperrors.GetCode(err); code != "" {
		return "app_" + string(code)
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
