package domain

// Well-known variable names written or read by the engine.
const (
	VarSessionID       = "sessionId"
	VarUserName        = "userName"
	VarUserType        = "userType"
	VarLastInput       = "lastInput"
	VarLastChoice      = "lastChoice"
	VarLastChoiceLabel = "lastChoiceLabel"
)

// ErrorStepID identifies the synthetic step carried by error and "ended" results.
const ErrorStepID int64 = -1

// DefaultValidationMessage is shown when a variable mapping declares no message.
const DefaultValidationMessage = "Please enter a valid value."
