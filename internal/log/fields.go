package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldTraceID     = "trace_id"
	FieldUserID      = "user_id"
	FieldChatID      = "chat_id"
	FieldCommand     = "command"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldOutcome     = "outcome"
	FieldExpenseID   = "expense_id"
	FieldAmount      = "amount"
	FieldDescription = "description"
	FieldCategory    = "category"
	FieldMonth       = "month"
	FieldOfferID     = "offer_id"
	FieldCount       = "count"
	FieldSheetsRef   = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentBot       = "bot"
	ComponentExpense   = "expense"
	ComponentSelection = "selection"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
)

// Operations defines standard operation names
const (
	OpInsert   = "insert"
	OpQuery    = "query"
	OpGet      = "get"
	OpInit     = "init"
	OpConnect  = "connect"
	OpClose    = "close"
	OpParse    = "parse"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpAppend   = "append"
	OpOffer    = "offer"
	OpResolve  = "resolve"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)
