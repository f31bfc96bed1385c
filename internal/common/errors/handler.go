// internal/common/errors/handler.go
package errors

// Alert is a user-facing message derived from an error.
type Alert struct {
	Code    ErrorCode `json:"code"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
}

// AlertSink receives user-facing alerts (a UI toast, a CLI printer).
type AlertSink interface {
	Alert(alert Alert)
}

// AlertFunc adapts a plain function to AlertSink.
type AlertFunc func(Alert)

func (f AlertFunc) Alert(a Alert) { f(a) }

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// ErrorReporter logs every error and forwards user-facing ones to the sink.
type ErrorReporter struct {
	logger Logger
	sink   AlertSink
}

func NewErrorReporter(logger Logger, sink AlertSink) *ErrorReporter {
	return &ErrorReporter{logger: logger, sink: sink}
}

// Report handles an error raised by an operation. It never panics and never
// returns the error to the caller's caller: nothing in the feed is fatal.
func (r *ErrorReporter) Report(operation string, err error) {
	if err == nil {
		return
	}
	stdErr := Normalize(err)
	r.logError(operation, stdErr)

	if r.sink != nil && IsUserFacing(stdErr) {
		r.sink.Alert(ToAlert(stdErr))
	}
}

// ToAlert converts a StandardError into the title/message pair shown to users.
func ToAlert(stdErr *StandardError) Alert {
	switch stdErr.Code {
	case ErrCodeRequestUnavailable:
		return Alert{Code: stdErr.Code, Title: "Request Unavailable", Message: stdErr.Message}
	case ErrCodeDialNumberMissing:
		return Alert{Code: stdErr.Code, Title: "Unavailable", Message: stdErr.Message}
	default:
		return Alert{Code: stdErr.Code, Title: "Error", Message: stdErr.Message}
	}
}

func (r *ErrorReporter) logError(operation string, stdErr *StandardError) {
	if r.logger == nil {
		return
	}
	fields := map[string]interface{}{
		"operation":     operation,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range stdErr.Metadata {
		fields[k] = v
	}
	if IsUserFacing(stdErr) {
		r.logger.Error("Operation failed", fields)
		return
	}
	r.logger.Warn("Operation failed", fields)
}
