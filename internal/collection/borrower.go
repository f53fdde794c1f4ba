package collection

// Borrower holds the account facts the agent works from. In this demo the
// facts are fixed; a production deployment would load them per call from the
// servicing system of record.
type Borrower struct {
	Name            string
	LoanAccount     string
	LoanType        string
	EMIAmount       string
	OverdueEMIs     string
	TotalOutstanding string
	LastPaymentDate string
}

// DefaultBorrower is the demo account.
var DefaultBorrower = Borrower{
	Name:            "Rajesh Kumar",
	LoanAccount:     "QF-2024-78543",
	LoanType:        "Personal Loan",
	EMIAmount:       "Rs. 8,500",
	OverdueEMIs:     "2 months (December 2024, January 2025)",
	TotalOutstanding: "Rs. 17,000",
	LastPaymentDate: "November 28, 2024",
}

// Payment plans the agent may offer, keyed by the transition that selects
// them. The partial-plan wording is load-bearing: it is written verbatim
// into the session state and read back by the dashboard.
const (
	PlanFullPayment = "Full payment of Rs. 17,000 immediately"
	PlanSingleEMI   = "Rs. 8,500 now + remaining EMI within 15 days"
	PlanPartial     = "Rs. 5,000 now + remaining in 2 installments"
)

// State bag keys written by transition handlers.
const (
	KeyIdentityConfirmed = "identity_confirmed"
	KeyDisputed          = "disputed"
	KeyReason            = "reason"
	KeyPlan              = "plan"
	KeyPaymentDate       = "payment_date"
	KeyPTPConfirmed      = "ptp_confirmed"
	KeyCallbackRequested = "callback_requested"
	KeyCallbackTime      = "callback_time"
)
