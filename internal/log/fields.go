package log

// Field names shared by every component.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldDeviceID      = "device_id"
	FieldSessionID     = "session_id"
	FieldTransactionID = "transaction_id"
	FieldTeamID        = "team_id"
	FieldTokenID       = "token_id"
	FieldMode          = "mode"
	FieldScore         = "score"
	FieldMessageType   = "message_type"
)

const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentScan    = "scan"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentCatalog = "catalog"
	ComponentBackend = "backend"
)

const (
	OpScan     = "scan"
	OpDelete   = "delete"
	OpAdjust   = "adjust"
	OpSession  = "session"
	OpPersist  = "persist"
	OpRestore  = "restore"
	OpSync     = "sync"
	OpPublish  = "publish"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields builds a set of structured attributes.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithTransaction adds the identifying fields of a scan.
func (f LogFields) WithTransaction(id, teamID, tokenID string) LogFields {
	f[FieldTransactionID] = id
	f[FieldTeamID] = teamID
	f[FieldTokenID] = tokenID
	return f
}

func (f LogFields) WithHTTPRequest(method, path, clientIP string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldClientIP] = clientIP
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice flattens the fields into slog key/value arguments.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
