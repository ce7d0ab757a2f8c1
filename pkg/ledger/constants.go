package ledger

const (
	operationBook          = "book"
	operationCancel        = "cancel"
	operationPromote       = "promote"
	operationAddService    = "add_service"
	operationRemoveService = "remove_service"
	operationAuthenticate  = "authenticate"
	operationLoad          = "load"
	operationSave          = "save"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	subjectCounter  = "counter"
	subjectSnapshot = "snapshot"
	subjectEvent    = "event"
	subjectService  = "service"
	subjectBooking  = "booking"
	subjectUser     = "user"
	subjectRefund   = "refund"

	codeReset   = "reset"
	codeSave    = "save"
	codeAppend  = "append"
	codeSkip    = "skip"
	codeClamp   = "clamp"
	codeDesync  = "desync"
	codeRefund  = "refund"
	codeMissing = "missing"
	codeRaise   = "raise"
	codeRehash  = "rehash"
	codeRevert  = "revert"

	componentReferenceCounter = "reference_counter"
	componentSnapshot         = "snapshot"
	componentTransactionLog   = "transaction_log"
	componentInventory        = "inventory"
	componentPayments         = "payments"
	componentDirectory        = "directory"

	confirmedRefundPercent  int64 = 80
	waitlistedRefundPercent int64 = 100
)
