package finance

import sm "github.com/erp/finkernel/internal/domain/statemachine"

// Lifecycle states shared by the financial entities.
const (
	StateDraft           sm.State = "draft"
	StatePendingApproval sm.State = "pending_approval"
	StateApproved        sm.State = "approved"
	StatePosted          sm.State = "posted"
	StateProcessing      sm.State = "processing"
	StateCompleted       sm.State = "completed"
	StateFailed          sm.State = "failed"
	StateRejected        sm.State = "rejected"
	StateCancelled       sm.State = "cancelled"
	StateActive          sm.State = "active"
	StateSuspended       sm.State = "suspended"
	StateArchived        sm.State = "archived"
	StateReversed        sm.State = "reversed"
)

// Actions accepted by the graphs below.
const (
	ActionSubmit        sm.Action = "submit"
	ActionWithdraw      sm.Action = "withdraw"
	ActionApprove       sm.Action = "approve"
	ActionReject        sm.Action = "reject"
	ActionPost          sm.Action = "post"
	ActionArchive       sm.Action = "archive"
	ActionCancel        sm.Action = "cancel"
	ActionProcess       sm.Action = "process"
	ActionComplete      sm.Action = "complete"
	ActionFail          sm.Action = "fail"
	ActionRetry         sm.Action = "retry"
	ActionSuspend       sm.Action = "suspend"
	ActionReactivate    sm.Action = "reactivate"
	ActionRequestChange sm.Action = "request_change"
	ActionReverse       sm.Action = "reverse"
)

// DocumentGraph drives invoices, credit notes and receipts.
var DocumentGraph = sm.MustNew(sm.Definition{
	Name:    "document",
	Initial: StateDraft,
	States: []sm.State{
		StateDraft, StatePendingApproval, StateApproved, StatePosted,
		StateRejected, StateCancelled, StateArchived,
	},
	Transitions: []sm.Transition{
		{From: StateDraft, Action: ActionSubmit, To: StatePendingApproval},
		{From: StateDraft, Action: ActionCancel, To: StateCancelled},
		{From: StatePendingApproval, Action: ActionApprove, To: StateApproved},
		{From: StatePendingApproval, Action: ActionReject, To: StateRejected},
		{From: StatePendingApproval, Action: ActionWithdraw, To: StateDraft},
		{From: StateApproved, Action: ActionPost, To: StatePosted},
		{From: StatePosted, Action: ActionArchive, To: StateArchived},
	},
	Immutable: []sm.State{StateApproved, StatePosted, StateArchived, StateCancelled},
	Terminal:  []sm.State{StateRejected, StateCancelled, StateArchived},
	Review:    []sm.State{StatePendingApproval},
})

// PaymentGraph drives outgoing payments. failed is retryable and accepts a
// corrected bank account.
var PaymentGraph = sm.MustNew(sm.Definition{
	Name:    "payment",
	Initial: StateDraft,
	States: []sm.State{
		StateDraft, StatePendingApproval, StateApproved, StateProcessing,
		StateCompleted, StateFailed, StateRejected, StateCancelled,
	},
	Transitions: []sm.Transition{
		{From: StateDraft, Action: ActionSubmit, To: StatePendingApproval},
		{From: StateDraft, Action: ActionCancel, To: StateCancelled},
		{From: StatePendingApproval, Action: ActionApprove, To: StateApproved},
		{From: StatePendingApproval, Action: ActionReject, To: StateRejected},
		{From: StatePendingApproval, Action: ActionWithdraw, To: StateDraft},
		{From: StateApproved, Action: ActionProcess, To: StateProcessing},
		{From: StateProcessing, Action: ActionComplete, To: StateCompleted},
		{From: StateProcessing, Action: ActionFail, To: StateFailed},
		{From: StateFailed, Action: ActionRetry, To: StateProcessing},
		{From: StateFailed, Action: ActionCancel, To: StateCancelled},
	},
	Immutable: []sm.State{StateApproved, StateProcessing, StateCompleted, StateCancelled},
	Terminal:  []sm.State{StateCompleted, StateRejected, StateCancelled},
	Review:    []sm.State{StatePendingApproval},
})

// MasterDataGraph drives vendors, customers and bank accounts.
var MasterDataGraph = sm.MustNew(sm.Definition{
	Name:    "master_data",
	Initial: StateDraft,
	States: []sm.State{
		StateDraft, StatePendingApproval, StateActive, StateSuspended,
		StateRejected, StateArchived,
	},
	Transitions: []sm.Transition{
		{From: StateDraft, Action: ActionSubmit, To: StatePendingApproval},
		{From: StateDraft, Action: ActionArchive, To: StateArchived},
		{From: StatePendingApproval, Action: ActionApprove, To: StateActive},
		{From: StatePendingApproval, Action: ActionReject, To: StateRejected},
		{From: StatePendingApproval, Action: ActionWithdraw, To: StateDraft},
		{From: StateActive, Action: ActionSuspend, To: StateSuspended},
		{From: StateActive, Action: ActionRequestChange, To: StateDraft},
		{From: StateSuspended, Action: ActionReactivate, To: StateActive},
		{From: StateSuspended, Action: ActionArchive, To: StateArchived},
	},
	Immutable: []sm.State{StateActive, StateArchived},
	Terminal:  []sm.State{StateRejected, StateArchived},
	Review:    []sm.State{StatePendingApproval},
})

// JournalGraph drives general ledger journal entries. Posted entries are
// only undone by a reversing entry.
var JournalGraph = sm.MustNew(sm.Definition{
	Name:    "journal_entry",
	Initial: StateDraft,
	States: []sm.State{
		StateDraft, StatePendingApproval, StateApproved, StatePosted,
		StateReversed, StateRejected, StateCancelled,
	},
	Transitions: []sm.Transition{
		{From: StateDraft, Action: ActionSubmit, To: StatePendingApproval},
		{From: StateDraft, Action: ActionCancel, To: StateCancelled},
		{From: StatePendingApproval, Action: ActionApprove, To: StateApproved},
		{From: StatePendingApproval, Action: ActionReject, To: StateRejected},
		{From: StatePendingApproval, Action: ActionWithdraw, To: StateDraft},
		{From: StateApproved, Action: ActionPost, To: StatePosted},
		{From: StatePosted, Action: ActionReverse, To: StateReversed},
	},
	Immutable: []sm.State{StateApproved, StatePosted, StateReversed, StateCancelled},
	Terminal:  []sm.State{StateReversed, StateRejected, StateCancelled},
	Review:    []sm.State{StatePendingApproval},
})
