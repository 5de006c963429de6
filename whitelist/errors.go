package whitelist

// ValidationError reports malformed or out-of-range input. Field names the
// offending form field so gateways can surface field-level messages.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError reports a state-machine rule violation, such as submitting
// while a pending or approved application already exists.
type ConflictError struct {
	Status  string
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NotFoundError reports an unknown application id
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return "Formulário não encontrado" }
