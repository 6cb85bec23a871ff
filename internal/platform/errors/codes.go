// Package errors provides structured error handling for the service.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodeNotificationKindInvalid     Code = "NOTIFICATION_KIND_INVALID"
	CodeNotificationRecipientEmpty  Code = "NOTIFICATION_RECIPIENT_EMPTY"
	CodeNotificationPropertyMissing Code = "NOTIFICATION_PROPERTY_MISSING"
	CodeContactSyncRequesterEmpty   Code = "CONTACT_SYNC_REQUESTER_EMPTY"
	CodeContactSyncNumbersEmpty     Code = "CONTACT_SYNC_NUMBERS_EMPTY"
	CodeIdentityDisplayNameEmpty    Code = "IDENTITY_DISPLAY_NAME_EMPTY"
	CodeDeviceTokenEmpty            Code = "DEVICE_TOKEN_EMPTY"
	CodeRoomIDEmpty                 Code = "ROOM_ID_EMPTY"

	// Auth errors
	CodeAuthTokenInvalid Code = "AUTH_TOKEN_INVALID"
	CodeAuthTokenExpired Code = "AUTH_TOKEN_EXPIRED"

	// Lookup errors
	CodeDirectoryLookupFailed   Code = "DIRECTORY_LOOKUP_FAILED"
	CodeDeviceTokenLookupFailed Code = "DEVICE_TOKEN_LOOKUP_FAILED"
	CodeCustomTokenIssueFailed  Code = "CUSTOM_TOKEN_ISSUE_FAILED"

	// Dispatch errors
	CodeDispatchFailed Code = "DISPATCH_FAILED"

	// Reconciliation errors
	CodeReconcilePartialFailure Code = "RECONCILE_PARTIAL_FAILURE"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeNotificationKindInvalid,
		CodeNotificationRecipientEmpty,
		CodeNotificationPropertyMissing,
		CodeContactSyncRequesterEmpty,
		CodeContactSyncNumbersEmpty,
		CodeIdentityDisplayNameEmpty,
		CodeDeviceTokenEmpty,
		CodeRoomIDEmpty:
		return http.StatusBadRequest

	// Unauthorized - identity token rejected
	case CodeAuthTokenInvalid,
		CodeAuthTokenExpired:
		return http.StatusUnauthorized

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	// Conflict - unique resource constraint
	case CodeConflict:
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}
