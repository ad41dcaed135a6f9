package reservations

type HoldStatus string

const (
	HoldActive   HoldStatus = "ACTIVE"
	HoldExpired  HoldStatus = "EXPIRED"
	HoldConsumed HoldStatus = "CONSUMED"
	HoldReleased HoldStatus = "RELEASED"
)

var holdNext = map[HoldStatus]map[HoldStatus]bool{
	HoldActive:   {HoldExpired: true, HoldConsumed: true, HoldReleased: true},
	HoldExpired:  {},
	HoldConsumed: {},
	HoldReleased: {},
}

func (s HoldStatus) CanTransition(to HoldStatus) bool { return holdNext[s][to] }
func (s HoldStatus) Terminal() bool                   { return len(holdNext[s]) == 0 }

type BookingStatus string

const (
	BookingStatusPendingPayment BookingStatus = "PENDING_PAYMENT"
	BookingStatusConfirmed      BookingStatus = "CONFIRMED"
	BookingStatusCancelled      BookingStatus = "CANCELLED"
)

var bookingNext = map[BookingStatus]map[BookingStatus]bool{
	BookingStatusPendingPayment: {BookingStatusConfirmed: true, BookingStatusCancelled: true},
	BookingStatusConfirmed:      {BookingStatusCancelled: true},
	BookingStatusCancelled:      {},
}

func (s BookingStatus) CanTransition(to BookingStatus) bool { return bookingNext[s][to] }
func (s BookingStatus) Terminal() bool                      { return len(bookingNext[s]) == 0 }

type PaymentStatus string

const (
	PaymentAuthorized PaymentStatus = "AUTHORIZED"
	PaymentCaptured   PaymentStatus = "CAPTURED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
	PaymentFailed     PaymentStatus = "FAILED"
)

// An authorized but never captured payment is released through a refund.
var paymentNext = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentAuthorized: {PaymentCaptured: true, PaymentRefunded: true, PaymentFailed: true},
	PaymentCaptured:   {PaymentRefunded: true},
	PaymentRefunded:   {},
	PaymentFailed:     {},
}

func (s PaymentStatus) CanTransition(to PaymentStatus) bool { return paymentNext[s][to] }
func (s PaymentStatus) Terminal() bool                      { return len(paymentNext[s]) == 0 }

type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskAssigned   TaskStatus = "ASSIGNED"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskCancelled  TaskStatus = "CANCELLED"
)

var taskNext = map[TaskStatus]map[TaskStatus]bool{
	TaskPending:    {TaskAssigned: true, TaskCancelled: true},
	TaskAssigned:   {TaskPending: true, TaskInProgress: true, TaskCancelled: true},
	TaskInProgress: {TaskCompleted: true, TaskCancelled: true},
	TaskCompleted:  {},
	TaskCancelled:  {},
}

func (s TaskStatus) CanTransition(to TaskStatus) bool { return taskNext[s][to] }
func (s TaskStatus) Terminal() bool                   { return len(taskNext[s]) == 0 }

// Open reports whether a cancellation cascade still applies to the task.
func (s TaskStatus) Open() bool {
	return s == TaskPending || s == TaskAssigned || s == TaskInProgress
}

func ParseTaskStatus(s string) (TaskStatus, bool) {
	st := TaskStatus(s)
	_, ok := taskNext[st]
	return st, ok
}
