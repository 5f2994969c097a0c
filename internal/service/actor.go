package service

import (
	"strings"

	customError "github.com/segyhp/credit-engine/pkg/errors"
)

// requireActor rejects a write that does not say who performs it. The actor is
// recorded in created_by, updated_by and reversed_by.
func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return customError.WrapInvalidInput("actor is required")
	}
	return nil
}
