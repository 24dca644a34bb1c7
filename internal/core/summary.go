package core

// LedgerStats is a compact summary of the current session ledger.
type LedgerStats struct {
	Transactions int          `json:"transactions"`
	Unknown      int          `json:"unknown"`
	ByMode       map[Mode]int `json:"byMode"`
	TotalValue   int64        `json:"totalValue"`
}

// CompletedGroup pairs a completed group with the tokens that satisfied it.
type CompletedGroup struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Multiplier  int      `json:"multiplier"`
	TokenIDs    []string `json:"tokens"`
}
