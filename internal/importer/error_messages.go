package importer

// error_messages.go maps technical errors to user-facing messages with codes
// for support reference.
//
// # Batch Errors (IMP001-IMP099)
//
//	IMP001 - Empty batch: The import contains no rows
//	         Action: Upload a file with at least one data row
//	IMP002 - Too many rows: The batch exceeds the row limit
//	         Action: Split the file into smaller batches
//	IMP003 - Invalid request: The import request could not be read
//	         Action: Send records, or headers with rows
//	IMP004 - Unknown row: A row number in the accept list is not in the batch
//	         Action: Accept only row numbers reported as duplicates
//
// # Duplicate Handling (DUP001-DUP099)
//
//	DUP001 - Strict mode: Duplicates cannot be imported while strict mode is on
//	         Action: Remove the duplicates or turn off strict mode
//	DUP002 - Not a duplicate: An accepted row was not flagged as a duplicate
//	         Action: Accept only rows reported as duplicates
//
// # Settings Errors (CFG001-CFG099)
//
//	CFG001 - Invalid settings: The dedupe settings were rejected
//	         Action: Check field keys, custom field ids and severities
//	CFG002 - Settings unavailable: The settings store could not be written
//	         Action: Please try again
//
// # Reference Errors (REF001-REF099)
//
//	REF001 - Reference unavailable: Existing records could not be loaded
//	         Action: Please try again in a few moments
//
// # Import Slot and Request Errors (UPL001-UPL099)
//
//	UPL001 - Import cancelled
//	UPL002 - System busy: too many imports in progress
//	UPL003 - Unknown source
//	UPL004 - Request cancelled
//	UPL005 - Request timeout
//
// # Rate Limiting (RATE001) and Default (ERR000)
//
// Sentinel errors are matched with errors.Is first; anything else falls back
// to case-insensitive substring patterns, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/settings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

var (
	msgEmptyBatch = UserMessage{
		Message: "The import contains no rows",
		Action:  "Upload a file with at least one data row",
		Code:    "IMP001",
	}
	msgTooManyRows = UserMessage{
		Message: "The batch exceeds the row limit",
		Action:  "Split the file into smaller batches",
		Code:    "IMP002",
	}
	msgInvalidRequest = UserMessage{
		Message: "The import request could not be read",
		Action:  "Send records, or headers with rows",
		Code:    "IMP003",
	}
	msgUnknownRow = UserMessage{
		Message: "A row number in the accept list is not in the batch",
		Action:  "Accept only row numbers reported as duplicates",
		Code:    "IMP004",
	}
	msgStrictMode = UserMessage{
		Message: "Duplicates cannot be imported while strict mode is on",
		Action:  "Remove the duplicate rows or turn off strict mode",
		Code:    "DUP001",
	}
	msgNotDuplicate = UserMessage{
		Message: "An accepted row was not flagged as a duplicate",
		Action:  "Accept only rows reported as duplicates",
		Code:    "DUP002",
	}
	msgInvalidSettings = UserMessage{
		Message: "The dedupe settings were rejected",
		Action:  "Check field keys, custom field ids and severities",
		Code:    "CFG001",
	}
	msgSettingsUnavailable = UserMessage{
		Message: "The dedupe settings could not be saved",
		Action:  "Please try again",
		Code:    "CFG002",
	}
	msgReferenceUnavailable = UserMessage{
		Message: "Existing records could not be loaded",
		Action:  "Please try again in a few moments",
		Code:    "REF001",
	}
	msgImportCancelled = UserMessage{
		Message: "Import was cancelled",
		Action:  "Start a new import when ready",
		Code:    "UPL001",
	}
	msgTooManyImports = UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgUnknownSource = UserMessage{
		Message: "Unknown import source",
		Action:  "Check the source name in the import URL",
		Code:    "UPL003",
	}
	msgRequestCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgRequestTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try importing a smaller file or check your connection",
		Code:    "UPL005",
	}
	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}
)

// sentinelMessages is checked with errors.Is, in order.
var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{ErrEmptyBatch, msgEmptyBatch},
	{ErrTooManyRows, msgTooManyRows},
	{ErrInvalidRequest, msgInvalidRequest},
	{ErrUnknownRow, msgUnknownRow},
	{ErrStrictMode, msgStrictMode},
	{ErrNotDuplicate, msgNotDuplicate},
	{settings.ErrInvalid, msgInvalidSettings},
	{ErrSettingsUnavailable, msgSettingsUnavailable},
	{ErrReferenceUnavailable, msgReferenceUnavailable},
	{ErrUnknownSource, msgUnknownSource},
	{ErrTooManyImports, msgTooManyImports},
	{errImportCancelled, msgImportCancelled},
	{context.Canceled, msgRequestCancelled},
	{context.DeadlineExceeded, msgRequestTimeout},
}

// errorPattern maps a lowercase substring to a message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns covers errors that lost their identity, e.g. when crossing a
// process boundary as text.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Batch (IMP)
	// =========================================================================
	{"no records to import", msgEmptyBatch},
	{"too many rows", msgTooManyRows},
	{"invalid import request", msgInvalidRequest},

	// =========================================================================
	// Duplicates and settings (DUP, CFG)
	// =========================================================================
	{"strict mode", msgStrictMode},
	{"invalid dedupe settings", msgInvalidSettings},

	// =========================================================================
	// Reference data (REF)
	// =========================================================================
	{"reference data unavailable", msgReferenceUnavailable},
	{"connection refused", msgReferenceUnavailable},

	// =========================================================================
	// Slots and requests (UPL, RATE)
	// =========================================================================
	{"import cancelled", msgImportCancelled},
	{"too many imports", msgTooManyImports},
	{"context canceled", msgRequestCancelled},
	{"context deadline exceeded", msgRequestTimeout},
	{"rate limit", msgRateLimited},
}

// defaultMessage is returned when nothing matches (ERR000). Support staff
// should check the logs for the technical error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.target) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
