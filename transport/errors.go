package transport

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-billgate/core"
)

// notSentError reports a request rejected before it reached the wire.
func notSentError(source error, message string, code int, metadata map[string]any) error {
	if source == nil {
		source = core.ErrRequestNotSent
	} else {
		source = fmt.Errorf("%w: %w", core.ErrRequestNotSent, source)
	}
	return transportWrapError(source, goerrors.CategoryBadInput, message, code, metadata)
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	metadata map[string]any,
) error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, category)
	} else {
		err = goerrors.Wrap(source, category, message)
	}
	err = err.WithCode(code).WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.GatewayErrorBadInput
	case goerrors.CategoryExternal:
		return core.GatewayErrorExternal
	default:
		return core.GatewayErrorInternal
	}
}
