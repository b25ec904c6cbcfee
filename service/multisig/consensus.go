package multisig

// Consensus is the derived state of a proposal.
type Consensus struct {
	Status     Status `json:"status"`
	CanExecute bool   `json:"can_execute"`
}

// EvaluateStatus derives the consensus state from votes, the executed flag and
// the required threshold. Rules apply in order: executed, any rejection,
// approvals reaching the threshold, otherwise initiated. A threshold below one
// can never be met.
func EvaluateStatus(approvedBy, rejectedBy []string, executed bool, threshold int) Consensus {
	switch {
	case executed:
		return Consensus{Status: StatusExecuted}
	case countDistinct(rejectedBy) > 0:
		return Consensus{Status: StatusRejected}
	case threshold > 0 && countDistinct(approvedBy) >= threshold:
		return Consensus{Status: StatusApproved, CanExecute: true}
	default:
		return Consensus{Status: StatusInitiated}
	}
}

// Evaluate applies EvaluateStatus to a correlated transaction.
func (tx Transaction) Evaluate(threshold int) Consensus {
	return EvaluateStatus(tx.ApprovedBy, tx.RejectedBy, tx.Executed, threshold)
}

func countDistinct(addrs []string) int {
	return len(uniqueAddresses(addrs))
}
