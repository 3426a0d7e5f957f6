package types

// ActivityKind classifies a ledger entry
type ActivityKind string

const (
	KindSwap    ActivityKind = "swap"
	KindSend    ActivityKind = "send"
	KindReceive ActivityKind = "receive"
	KindApprove ActivityKind = "approve"
)

// Allowed reports whether the ledger accepts entries of this kind
func (k ActivityKind) Allowed() bool {
	switch k {
	case KindSwap, KindSend, KindReceive, KindApprove:
		return true
	default:
		return false
	}
}

// Leg is one side of a recorded operation, already formatted for display
type Leg struct {
	Amount string `json:"amount"`
	Symbol string `json:"symbol"`
}

// ActivityEntry is an immutable record of a submitted operation
type ActivityEntry struct {
	Hash        string       `json:"hash"`
	Kind        ActivityKind `json:"type"`
	Direction   string       `json:"direction,omitempty"`
	Memo        string       `json:"memo,omitempty"`
	Sold        Leg          `json:"sold"`
	Received    Leg          `json:"received"`
	Rate        string       `json:"rate,omitempty"`
	Time        string       `json:"time"`
	ExplorerURL string       `json:"explorer_url"`
	CreatedAt   int64        `json:"created_at"`
}

// DedupeKey is the identity of an entry inside an account log
func (e ActivityEntry) DedupeKey() string {
	return e.Hash + "-" + string(e.Kind)
}
