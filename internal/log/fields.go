package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldTable     = "table"
	FieldRowID     = "row_id"
	FieldTripID    = "trip_id"
	FieldExpenseID = "expense_id"
	FieldAmount    = "amount"
	FieldCurrency  = "currency"
	FieldCategory  = "category"
	FieldMessageID = "message_id"
	FieldSheetsRef = "sheets_ref"
	FieldDuration  = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentCLI     = "cli"
	ComponentStorage = "storage"
	ComponentLive    = "live"
	ComponentAMQP    = "amqp"
	ComponentRelay   = "relay"
	ComponentStats   = "stats"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentCache   = "cache"
)

// Operations defines standard operation names
const (
	OpStartup  = "startup"
	OpSync     = "sync"
	OpShutdown = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
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

// WithChange adds the fields identifying a row change.
func (f LogFields) WithChange(table, op string, rowID int64) LogFields {
	f[FieldTable] = table
	f[FieldOperation] = op
	f[FieldRowID] = rowID
	return f
}

// WithExpense adds expense-related fields
func (f LogFields) WithExpense(id, tripID int64, amount, currency, category string) LogFields {
	f[FieldExpenseID] = id
	f[FieldTripID] = tripID
	f[FieldAmount] = amount
	f[FieldCurrency] = currency
	f[FieldCategory] = category
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
