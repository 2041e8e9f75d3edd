// Package core provides the business logic types for spreadsheet import/export.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// Error codes are grouped by category:
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: A record with this ID already exists
//	        Patterns: "duplicate key"
//	DB002 - Unique constraint: This value must be unique but already exists
//	        Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key: Referenced record does not exist
//	        Patterns: "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused: Unable to connect to database
//	DB005 - Connection reset: Database connection was interrupted
//	DB006 - Timeout: Operation timed out
//	DB007 - Deadlock: Database was busy with conflicting operations
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid date: Use YYYY-MM-DD
//	VAL002 - Invalid number: Remove currency symbols and use standard decimal format
//	VAL003 - Required field: Required field is empty
//	VAL004 - Invalid boolean: Use TRUE/FALSE or Yes/No
//	VAL005 - Invalid JSON: Cell must contain valid JSON
//	VAL006 - Invalid enum: Value is not in the allowed list
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds maximum size limit
//	FILE002 - Invalid workbook: File is not a readable .xlsx workbook
//	FILE004 - No file: No file was selected
//	FILE005 - Empty file: The uploaded file is empty
//	FILE006 - Missing Info sheet: The workbook has no Info sheet or it has no data row
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Invalid plan: The dry run reported validation errors
//	IMP002 - Stale plan: A record changed between dry run and commit
//	IMP003 - Commit failed: The import was rolled back
//	IMP004 - System busy: Too many imports in progress
//	IMP005 - Request cancelled
//	IMP006 - Request timeout
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session not found: The dry run was already committed or never existed
//	SES002 - Session expired: The dry run is older than the session TTL
//	SES003 - Invalid extension: Minutes must be between 1 and 60
//
// # Entity Errors (ENT001-ENT099)
//
//	ENT001 - Entity not found
//	ENT002 - Unknown entity type
//
// # Rate Limiting
//
//	RATE001 - Too many requests
//
// Anything else maps to ERR000; support staff should check application logs
// for the original technical error.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Patterns are matched using strings.Contains, so partial matches work.
// The first matching pattern wins, so order matters:
//   - More specific patterns should come before general ones
//   - Multiple patterns can map to the same error code
//
// To add a new error pattern:
//  1. Choose the appropriate category and code range
//  2. Add the pattern in the correct position (specific before general)
//  3. Update the package documentation at the top of this file
var errorPatterns = []errorPattern{
	// =========================================================================
	// Session Errors (SES001-SES003)
	// =========================================================================
	{
		pattern: "import session not found",
		msg: UserMessage{
			Message: "Import session not found",
			Action:  "The import may already have been applied. Run a new dry run",
			Code:    "SES001",
		},
	},
	{
		pattern: "import session expired",
		msg: UserMessage{
			Message: "Import session expired",
			Action:  "Run the dry run again and commit within the session window",
			Code:    "SES002",
		},
	},
	{
		pattern: "invalid number of minutes",
		msg: UserMessage{
			Message: "Invalid session extension",
			Action:  "Send between 1 and 60 minutes",
			Code:    "SES003",
		},
	},

	// =========================================================================
	// Import Errors (IMP001-IMP004)
	// =========================================================================
	{
		pattern: "import plan has validation errors",
		msg: UserMessage{
			Message: "The import has validation errors and cannot be applied",
			Action:  "Fix the reported rows and run the dry run again",
			Code:    "IMP001",
		},
	},
	{
		pattern: "record changed since dry run",
		msg: UserMessage{
			Message: "Data changed after the dry run",
			Action:  "Run the dry run again to see the current differences",
			Code:    "IMP002",
		},
	},
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP004",
		},
	},

	// =========================================================================
	// Database Constraint Errors (DB001-DB003)
	// These errors occur when data violates database constraints.
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Clear the ID column for rows that should be created",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate names in your workbook",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review your data for duplicate names",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Check the names used in reference columns",
			Code:    "DB003",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Check the names used in reference columns",
			Code:    "DB003",
		},
	},

	// =========================================================================
	// Database Connection Errors (DB004-DB007)
	// These errors occur when database connectivity is disrupted.
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller workbook or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// Catch-all for execution failures that matched nothing more specific.
	{
		pattern: "commit failed at",
		msg: UserMessage{
			Message: "The import failed and was rolled back",
			Action:  "Run the dry run again; nothing was changed",
			Code:    "IMP003",
		},
	},

	// =========================================================================
	// Validation Errors (VAL001-VAL006)
	// These errors occur when data doesn't match expected formats.
	// =========================================================================
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date format detected",
			Action:  "Use YYYY-MM-DD",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid number",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Remove currency symbols and use standard decimal format",
			Code:    "VAL002",
		},
	},
	{
		pattern: "required field",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Ensure all required columns have values",
			Code:    "VAL003",
		},
	},
	{
		pattern: "invalid boolean",
		msg: UserMessage{
			Message: "Invalid yes/no value",
			Action:  "Use TRUE/FALSE or Yes/No",
			Code:    "VAL004",
		},
	},
	{
		pattern: "invalid json",
		msg: UserMessage{
			Message: "Cell does not contain valid JSON",
			Action:  "Check quotes and braces in the cell",
			Code:    "VAL005",
		},
	},
	{
		pattern: "invalid enum",
		msg: UserMessage{
			Message: "Value is not in the allowed list",
			Action:  "Check the allowed values for this field",
			Code:    "VAL006",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE006)
	// These errors occur when processing uploaded files.
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the workbook or remove unused sheets",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid workbook",
		msg: UserMessage{
			Message: "File is not a readable .xlsx workbook",
			Action:  "Upload a workbook produced by the export",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a workbook to import",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a workbook with data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "missing required info sheet",
		msg: UserMessage{
			Message: "The workbook has no Info sheet",
			Action:  "Keep the Info sheet and its data row from the export",
			Code:    "FILE006",
		},
	},

	// =========================================================================
	// Request Errors (IMP005-IMP006)
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP005",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller workbook or check your connection",
			Code:    "IMP006",
		},
	},

	// =========================================================================
	// Entity Errors (ENT001-ENT002)
	// =========================================================================
	{
		pattern: "entity not found",
		msg: UserMessage{
			Message: "Entity not found",
			Action:  "Verify the entity id is correct",
			Code:    "ENT001",
		},
	},
	{
		pattern: "unknown entity type",
		msg: UserMessage{
			Message: "Unknown entity type",
			Action:  "Use product or solution",
			Code:    "ENT002",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// These errors occur when request limits are exceeded.
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
// This is the fallback for unexpected errors. Support staff should check
// application logs for the original technical error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	msg := MapError(fmt.Errorf("commit: %w", ErrSessionNotFound))
//	// msg.Code == "SES001"
//	// msg.Message == "Import session not found"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
//
// Example output: "Import session expired (Code: SES002). Run the dry run again and commit within the session window"
//
// This is the primary function for displaying errors to end users.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
// Use this to decide whether to show the raw error or the mapped user message.
//
// Example:
//
//	if IsUserFacing(err) {
//	    showToUser(FormatUserError(err))
//	} else {
//	    log.Error(err) // Log technical error
//	    showToUser("An error occurred. Please try again.")
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// WrapWithUserMessage wraps a technical error with a user-friendly message.
// The original error is preserved for logging while providing a clean message for users.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping a technical error to a user-friendly message.
// The returned UserError preserves the original technical error for logging via Unwrap(),
// while providing a clean user message via Error().
//
// Returns nil if err is nil.
//
// Example:
//
//	ue := NewUserError(commitErr)
//	log.Error(ue.Technical)          // Log original error
//	fmt.Println(ue.Error())           // Show "Import session not found"
//	fmt.Println(ue.User.Code)         // Show "SES001"
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
