// Package core provides the verification and reconciliation engine.
//
// # Error Codes Reference
//
// This file maps technical errors to user-facing messages with codes that
// reviewers can quote when reporting a problem.
//
//	REC001 - Record not found: the requested person record does not exist
//	VAL001 - Invalid input: a handle, username, or payload failed validation
//	SNAP01 - Bad snapshot: the verification snapshot CSV could not be read
//	DB001  - Store unavailable: the record store could not be reached
//	DB002  - Timeout: the operation took too long
//	RATE01 - Rate limited: too many requests from one client
//	ERR000 - Fallback for unexpected errors; check server logs
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.
package core

import "strings"

// UserMessage provides user-facing error information with a support code.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "not found",
		msg: UserMessage{
			Message: "Record not found",
			Action:  "Refresh the record list; it may have been rebuilt",
			Code:    "REC001",
		},
	},
	{
		pattern: "snapshot",
		msg: UserMessage{
			Message: "Verification snapshot could not be read",
			Action:  "Upload a CSV produced by the export endpoint",
			Code:    "SNAP01",
		},
	},
	{
		pattern: "invalid input",
		msg: UserMessage{
			Message: "Invalid input",
			Action:  "Check the submitted handle or payload and try again",
			Code:    "VAL001",
		},
	},
	{
		pattern: "store unavailable",
		msg: UserMessage{
			Message: "Record store is unreachable",
			Action:  "Try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Record store is unreachable",
			Action:  "Try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try again; the store may be under load",
			Code:    "DB002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try again; the store may be under load",
			Code:    "DB002",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Wait a moment before trying again",
			Code:    "RATE01",
		},
	},
}

// defaultMessage is the ERR000 fallback; server logs hold the original error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Try again or check the server logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-facing message. The first
// matching pattern wins; unmatched errors get the ERR000 fallback.
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
