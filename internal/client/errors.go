package client

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/pkg/api"
)

var errEmptyResponse = errors.New("server returned an empty response")

// isTransport reports whether err means the server could not be reached.
func isTransport(err error) bool {
	switch connect.CodeOf(err) {
	case connect.CodeUnavailable, connect.CodeDeadlineExceeded:
		return true
	case connect.CodeUnknown:
		// Errors that never reached the server carry no connect code.
		var connectErr *connect.Error
		return !errors.As(err, &connectErr)
	}
	return false
}

func message(err error) string {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr.Message()
	}
	return err.Error()
}

// authErr maps a failed AuthService call to the models auth errors.
func authErr(err error) error {
	if isTransport(err) {
		return &models.AuthError{Kind: models.ErrNetwork, Detail: message(err)}
	}

	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return err
	}

	switch connectErr.Meta().Get(api.AuthReasonHeader) {
	case api.AuthReasonInvalidCredential:
		return &models.AuthError{Kind: models.ErrInvalidCredential}
	case api.AuthReasonEmailInUse:
		return &models.AuthError{Kind: models.ErrEmailInUse}
	case api.AuthReasonWeakPassword:
		return &models.AuthError{Kind: models.ErrWeakPassword}
	case api.AuthReasonPopupClosed:
		return &models.AuthError{Kind: models.ErrPopupClosed}
	case api.AuthReasonInvalidEmail:
		return &models.ValidationError{Fields: []models.FieldError{{Field: "email", Message: "Email address is invalid"}}}
	}

	if connectErr.Code() == connect.CodeUnauthenticated {
		return &models.AuthError{Kind: models.ErrInvalidCredential, Detail: connectErr.Message()}
	}
	return fmt.Errorf("authentication failed: %w", err)
}

// storeErr maps a failed RecordService call to a *models.StoreError.
func storeErr(op string, err error) error {
	reason := models.ReasonTransport
	switch connect.CodeOf(err) {
	case connect.CodePermissionDenied, connect.CodeUnauthenticated:
		reason = models.ReasonPermission
	case connect.CodeNotFound:
		reason = models.ReasonNotFound
	case connect.CodeInvalidArgument:
		reason = models.ReasonInvalid
	}
	return &models.StoreError{Op: op, Reason: reason, Err: errors.New(message(err))}
}
