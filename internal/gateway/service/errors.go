package service

import (
	"errors"

	"github.com/entradalabs/entrada/internal/gateway/domain"
)

// friendlyMessage maps an internal error onto copy safe to surface in a
// notification. Raw error text stays in the logs.
func friendlyMessage(err error) string {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		var gw *domain.Error
		if errors.As(err, &gw) && gw.Message != "" {
			return gw.Message
		}
		return "Please check the submitted details and try again."
	case domain.KindAuth:
		var gw *domain.Error
		if errors.As(err, &gw) && gw.Message != "" {
			return gw.Message
		}
		return "Your session is no longer valid. Please sign in again."
	default:
		return "Something went wrong. Please try again shortly."
	}
}
