package log

import "github.com/shopspring/decimal"

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorKind   = "error_kind"
	FieldOperation   = "operation"
	FieldUser        = "user"
	FieldRecordID    = "record_id"
	FieldCategory    = "category"
	FieldAmount      = "amount"
	FieldBudgetLimit = "budget_limit"
	FieldTotalSpent  = "total_spent"
	FieldRecordCount = "record_count"
	FieldSkipped     = "skipped"
	FieldRefreshSeq  = "refresh_seq"
	FieldMonth       = "month"
	FieldYear        = "year"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentRemote    = "remote"
	ComponentSession   = "session"
	ComponentRecords   = "records"
	ComponentBudgets   = "budgets"
	ComponentAuth      = "auth"
	ComponentReconcile = "reconcile"
	ComponentNotify    = "notify"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentExport    = "export"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpLatest   = "latest"
	OpRefresh  = "refresh"
	OpLogin    = "login"
	OpRegister = "register"
	OpLogout   = "logout"
	OpPublish  = "publish"
	OpExport   = "export"
	OpConsume  = "consume"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithUser adds the acting user's identity
func (f LogFields) WithUser(email string) LogFields {
	f[FieldUser] = email
	return f
}

// WithRecord adds expense record fields
func (f LogFields) WithRecord(id int64, category string, amount string) LogFields {
	if id > 0 {
		f[FieldRecordID] = id
	}
	f[FieldCategory] = category
	f[FieldAmount] = amount
	return f
}

// WithComparison adds the derived spending status
func (f LogFields) WithComparison(total, limit decimal.Decimal) LogFields {
	f[FieldTotalSpent] = total.StringFixed(2)
	f[FieldBudgetLimit] = limit.StringFixed(2)
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

// WithHTTPResponse adds HTTP response fields
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
