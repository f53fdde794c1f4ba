// Package collection declares the loan-collection conversation flow: the
// scripted stages a call moves through, from greeting to a promise to pay.
package collection

import (
	"fmt"

	"github.com/quickfin/loanvoice/pkg/domain"
	"github.com/quickfin/loanvoice/pkg/flow"
)

// Node IDs, exported for the dashboard and tests.
const (
	NodeGreeting            = "greeting"
	NodeOverdueInfo         = "overdue_info"
	NodeUnderstandSituation = "understand_situation"
	NodePaymentOptions      = "payment_options"
	NodeCommitment          = "commitment"
	NodePromiseToPay        = "promise_to_pay"
	NodeEnd                 = "end"
	NodeWrongPersonEnd      = "wrong_person_end"
	NodeCallbackEnd         = "callback_end"
)

// NewGraph builds the loan-collection flow for the given borrower.
// Construction is pure; building twice yields independent graphs.
func NewGraph(b Borrower) (*flow.Graph, error) {
	builder := flow.New(NodeGreeting)

	builder.Add(NodeGreeting).
		Label("Greeting").
		Prompt(promptGreeting(b)).
		Transition("confirm_identity", fmt.Sprintf("The person confirms they are %s.", b.Name)).
		To(NodeOverdueInfo).
		Handle(func(args domain.Args, s *domain.Session) (string, string, error) {
			s.Set(KeyIdentityConfirmed, "true")
			return "borrower confirmed identity", NodeOverdueInfo, nil
		}).
		Transition("deny_identity", fmt.Sprintf("The person says they are not %s or that this is a wrong number.", b.Name)).
		GoTo(NodeWrongPersonEnd, "wrong person reached").
		Transition("request_callback", "The borrower asks to be called back at another time, right at the start.").
		Param("callback_time", "When the borrower wants to be called back, in their own words.").
		To(NodeCallbackEnd).
		Handle(func(args domain.Args, s *domain.Session) (string, string, error) {
			s.Set(KeyCallbackRequested, "true")
			s.Set(KeyCallbackTime, args.Get("callback_time", "not specified"))
			return "callback requested during greeting", NodeCallbackEnd, nil
		})

	builder.Add(NodeOverdueInfo).
		Label("Overdue Info").
		Prompt(promptOverdueInfo(b)).
		Transition("acknowledge_overdue", "The borrower acknowledges the overdue payment.").
		GoTo(NodeUnderstandSituation, "borrower acknowledged overdue").
		Transition("dispute_overdue", "The borrower disputes the amount or claims to have already paid.").
		To(NodeUnderstandSituation).
		Handle(func(args domain.Args, s *domain.Session) (string, string, error) {
			s.Set(KeyDisputed, "true")
			return "borrower disputed the overdue amount", NodeUnderstandSituation, nil
		})

	builder.Add(NodeUnderstandSituation).
		Label("Situation").
		Prompt(promptUnderstandSituation).
		Transition("record_situation", "The borrower has explained why the payment was delayed.").
		Required("reason", "The borrower's stated reason for the delay, briefly.").
		To(NodePaymentOptions).
		Handle(func(args domain.Args, s *domain.Session) (string, string, error) {
			reason := args["reason"]
			s.Set(KeyReason, reason)
			return fmt.Sprintf("situation recorded: %s", reason), NodePaymentOptions, nil
		}).
		Transition("request_callback", "The borrower cannot talk now and asks for a callback.").
		Param("callback_time", "When the borrower wants to be called back, in their own words.").
		To(NodeCallbackEnd).
		Handle(func(args domain.Args, s *domain.Session) (string, string, error) {
			s.Set(KeyCallbackRequested, "true")
			s.Set(KeyCallbackTime, args.Get("callback_time", "not specified"))
			return "callback requested while discussing situation", NodeCallbackEnd, nil
		})

	builder.Add(NodePaymentOptions).
		Label("Options").
		Prompt(promptPaymentOptions(b)).
		Transition("select_full_payment", "The borrower agrees to pay the full outstanding amount immediately.").
		To(NodeCommitment).
		Handle(selectPlan(PlanFullPayment)).
		Transition("select_single_emi", "The borrower agrees to pay one EMI now and the other within 15 days.").
		To(NodeCommitment).
		Handle(selectPlan(PlanSingleEMI)).
		Transition("select_partial_plan", "The borrower agrees to the partial plan: Rs. 5,000 now, remaining in 2 installments.").
		To(NodeCommitment).
		Handle(selectPlan(PlanPartial)).
		Transition("request_callback", "The borrower wants a senior representative to call back about restructuring.").
		Param("callback_time", "When the borrower wants to be called back, in their own words.").
		To(NodeCallbackEnd).
		Handle(func(args domain.Args, s *domain.Session) (string, string, error) {
			s.Set(KeyCallbackRequested, "true")
			s.Set(KeyCallbackTime, args.Get("callback_time", "not specified"))
			return "borrower asked for restructuring callback", NodeCallbackEnd, nil
		})

	builder.Add(NodeCommitment).
		Label("Commitment").
		Prompt(promptCommitment).
		Transition("confirm_commitment", "The borrower has named a specific date for the first payment.").
		Required("payment_date", "The date the borrower committed to pay, in their own words.").
		To(NodePromiseToPay).
		Handle(func(args domain.Args, s *domain.Session) (string, string, error) {
			date := args["payment_date"]
			s.Set(KeyPaymentDate, date)
			return fmt.Sprintf("payment committed for %s", date), NodePromiseToPay, nil
		}).
		Transition("reconsider_options", "The borrower backs out of the chosen plan and wants to hear the options again.").
		GoTo(NodePaymentOptions, "borrower reconsidering options")

	builder.Add(NodePromiseToPay).
		Label("PTP").
		Prompt(promptPromiseToPay).
		Transition("confirm_ptp", "The borrower confirms the promise to pay as repeated back.").
		To(NodeEnd, NodePaymentOptions).
		Handle(func(args domain.Args, s *domain.Session) (string, string, error) {
			// A PTP without a plan on record is not a real commitment;
			// route the conversation back instead of closing on bad state.
			if _, ok := s.Get(KeyPlan); !ok {
				return "no plan on record, revisiting options", NodePaymentOptions, nil
			}
			s.Set(KeyPTPConfirmed, "true")
			return "promise to pay confirmed", NodeEnd, nil
		}).
		Transition("revise_plan", "The borrower wants to change the plan or the date before confirming.").
		GoTo(NodePaymentOptions, "borrower revising plan")

	builder.Add(NodeEnd).
		Label("Complete").
		Prompt(promptEnd).
		End()

	builder.Add(NodeWrongPersonEnd).
		Label("Wrong Person").
		Prompt(promptWrongPersonEnd).
		End()

	builder.Add(NodeCallbackEnd).
		Label("Callback").
		Prompt(promptCallbackEnd).
		End()

	return builder.Build()
}

// selectPlan returns a handler that records the chosen plan and moves to the
// commitment stage.
func selectPlan(plan string) domain.Handler {
	return func(args domain.Args, s *domain.Session) (string, string, error) {
		s.Set(KeyPlan, plan)
		return fmt.Sprintf("plan selected: %s", plan), NodeCommitment, nil
	}
}
