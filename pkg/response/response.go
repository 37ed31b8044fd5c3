package response

// ErrorBody is the error envelope of every failed request.
type ErrorBody struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Retryable bool        `json:"retryable"`
	Details   interface{} `json:"details,omitempty"`
}

func Error(code, message string, details interface{}) ErrorBody {
	return ErrorBody{Code: code, Message: message, Details: details}
}

func RetryableError(code, message string, retryable bool) ErrorBody {
	return ErrorBody{Code: code, Message: message, Retryable: retryable}
}
