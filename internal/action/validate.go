package action

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"

	"github.com/Kerhoff/CartBot/internal/apperr"
	"github.com/Kerhoff/CartBot/internal/models"
)

var validate = validator.New()

// Raw is an unvalidated action as received from a caller or the assistant.
type Raw struct {
	Action string `json:"action" validate:"required,oneof=add update delete complete"`
	Name   string `json:"name" validate:"required,max=200"`
	Amount *int   `json:"amount,omitempty"`
}

// Parse validates raw and returns the typed action. Add and update require
// an amount of at least 1 and fail with apperr.ErrAmountRequired otherwise,
// or apperr.ErrAmountTooLarge above models.MaxItemAmount. Delete and
// complete ignore any amount.
func Parse(raw Raw) (Action, error) {
	raw.Action = strings.ToLower(strings.TrimSpace(raw.Action))
	raw.Name = strings.TrimSpace(raw.Name)

	if err := validate.Struct(raw); err != nil {
		return nil, apperr.Invalid(err)
	}

	switch Kind(raw.Action) {
	case KindAdd, KindUpdate:
		if raw.Amount == nil || *raw.Amount < 1 {
			return nil, apperr.ErrAmountRequired.WithMessage(
				"amount must be a positive integer for %s %q", raw.Action, raw.Name)
		}
		if *raw.Amount > models.MaxItemAmount {
			return nil, apperr.ErrAmountTooLarge.WithMessage(
				"amount for %s %q must not exceed %d", raw.Action, raw.Name, models.MaxItemAmount)
		}
		if Kind(raw.Action) == KindAdd {
			return Add{Name: raw.Name, Amount: *raw.Amount}, nil
		}
		return Update{Name: raw.Name, Amount: *raw.Amount}, nil
	case KindDelete:
		return Delete{Name: raw.Name}, nil
	default:
		return Complete{Name: raw.Name}, nil
	}
}

// ParseAll validates every raw action. All failures are reported together;
// a single failure keeps its own code.
func ParseAll(raws []Raw) ([]Action, error) {
	actions := make([]Action, 0, len(raws))
	result := &multierror.Error{ErrorFormat: listFailures}

	for i, raw := range raws {
		a, err := Parse(raw)
		if err != nil {
			var appErr *apperr.Error
			if !errors.As(err, &appErr) {
				appErr = apperr.ErrValidation.Wrap(err)
			}
			result = multierror.Append(result, appErr.WithMessage("action %d: %s", i+1, appErr.Message))
			continue
		}
		actions = append(actions, a)
	}

	switch len(result.Errors) {
	case 0:
		return actions, nil
	case 1:
		return nil, result.Errors[0]
	}
	return nil, apperr.ErrValidation.WithMessage("%s", result.Error()).Wrap(result)
}

// listFailures is the multierror format for a rejected batch.
func listFailures(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = apperr.MessageOf(err)
	}
	return fmt.Sprintf("%d invalid actions: %s", len(errs), strings.Join(msgs, "; "))
}
