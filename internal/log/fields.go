package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldExpenseID   = "expense_id"
	FieldCategoryID  = "category_id"
	FieldAmount      = "amount"
	FieldCurrency    = "currency"
	FieldFileName    = "file_name"
	FieldImageFormat = "image_format"
	FieldFileSize    = "file_size"
	FieldAttempt     = "attempt"
	FieldPhase       = "phase"
	FieldMerchant    = "merchant"
	FieldConfidence  = "confidence"
	FieldMessageID   = "message_id"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentAPI     = "api"
	ComponentReceipt = "receipt"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentCache   = "cache"
	ComponentCLI     = "cli"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpScan     = "scan"
	OpUpload   = "upload"
	OpCommit   = "commit"
	OpExport   = "export"
	OpLogin    = "login"
	OpConsume  = "consume"
	OpPublish  = "publish"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
	OpMigrate  = "migrate"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeServer        = "server_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithReceiptFile adds the fields describing a receipt image
func (f LogFields) WithReceiptFile(name, format string, size int) LogFields {
	f[FieldFileName] = name
	f[FieldImageFormat] = format
	f[FieldFileSize] = size
	return f
}

// WithHTTPRequest adds outbound request fields
func (f LogFields) WithHTTPRequest(method, path, query string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	return f
}

// WithHTTPResponse adds response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
