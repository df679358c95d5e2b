package ledger

// CreateAccountResult is the engine's per-item verdict for an account
// create event. Zero means the event was applied.
type CreateAccountResult uint32

const (
	AccountOK CreateAccountResult = iota
	AccountLinkedEventFailed
	AccountLinkedEventChainOpen
	AccountIDMustNotBeZero
	AccountIDMustNotBeIntMax
	AccountExistsWithDifferentFlags
	AccountExists
	AccountFlagsAreMutuallyExclusive
	AccountDebitsPendingMustBeZero
	AccountDebitsPostedMustBeZero
	AccountCreditsPendingMustBeZero
	AccountCreditsPostedMustBeZero
	AccountLedgerMustNotBeZero
	AccountCodeMustNotBeZero
	AccountTimestampMustBeZero
	AccountReservedField
)

var createAccountResultNames = [...]string{
	"ok",
	"linked_event_failed",
	"linked_event_chain_open",
	"id_must_not_be_zero",
	"id_must_not_be_int_max",
	"exists_with_different_flags",
	"exists",
	"flags_are_mutually_exclusive",
	"debits_pending_must_be_zero",
	"debits_posted_must_be_zero",
	"credits_pending_must_be_zero",
	"credits_posted_must_be_zero",
	"ledger_must_not_be_zero",
	"code_must_not_be_zero",
	"timestamp_must_be_zero",
	"reserved_field",
}

func (r CreateAccountResult) String() string {
	if int(r) < len(createAccountResultNames) {
		return createAccountResultNames[r]
	}
	return "unknown"
}

// CreateTransferResult is the engine's per-item verdict for a transfer
// create event. Zero means the event was applied.
type CreateTransferResult uint32

const (
	TransferOK CreateTransferResult = iota
	TransferLinkedEventFailed
	TransferLinkedEventChainOpen
	TransferIDMustNotBeZero
	TransferIDMustNotBeIntMax
	TransferExistsWithDifferentFlags
	TransferExists
	TransferFlagsAreMutuallyExclusive
	TransferDebitAccountIDMustNotBeZero
	TransferCreditAccountIDMustNotBeZero
	TransferAccountsMustBeDifferent
	TransferPendingIDMustBeZero
	TransferPendingIDMustNotBeZero
	TransferPendingTransferNotFound
	TransferPendingTransferNotPending
	TransferPendingTransferAlreadyPosted
	TransferPendingTransferAlreadyVoided
	TransferPendingTransferExpired
	TransferAmountMustNotBeZero
	TransferLedgerMustNotBeZero
	TransferCodeMustNotBeZero
	TransferDebitAccountNotFound
	TransferCreditAccountNotFound
	TransferAccountsMustHaveTheSameLedger
	TransferMustHaveTheSameLedgerAsAccounts
	TransferExceedsCredits
	TransferExceedsDebits
	TransferTimeoutReservedForPendingTransfer
	TransferTimestampMustBeZero
	TransferExceedsPendingTransferAmount
)

var createTransferResultNames = [...]string{
	"ok",
	"linked_event_failed",
	"linked_event_chain_open",
	"id_must_not_be_zero",
	"id_must_not_be_int_max",
	"exists_with_different_flags",
	"exists",
	"flags_are_mutually_exclusive",
	"debit_account_id_must_not_be_zero",
	"credit_account_id_must_not_be_zero",
	"accounts_must_be_different",
	"pending_id_must_be_zero",
	"pending_id_must_not_be_zero",
	"pending_transfer_not_found",
	"pending_transfer_not_pending",
	"pending_transfer_already_posted",
	"pending_transfer_already_voided",
	"pending_transfer_expired",
	"amount_must_not_be_zero",
	"ledger_must_not_be_zero",
	"code_must_not_be_zero",
	"debit_account_not_found",
	"credit_account_not_found",
	"accounts_must_have_the_same_ledger",
	"transfer_must_have_the_same_ledger_as_accounts",
	"exceeds_credits",
	"exceeds_debits",
	"timeout_reserved_for_pending_transfer",
	"timestamp_must_be_zero",
	"exceeds_pending_transfer_amount",
}

func (r CreateTransferResult) String() string {
	if int(r) < len(createTransferResultNames) {
		return createTransferResultNames[r]
	}
	return "unknown"
}
