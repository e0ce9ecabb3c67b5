package pipeline

const (
	// DefaultUserID is the single tenant every upload is stored under.
	DefaultUserID = "001"

	// PreviewLimit is the number of transactions echoed back in a Summary.
	PreviewLimit = 10

	// NoTransactionsMessage is reported when extraction yields nothing.
	NoTransactionsMessage = "No transactions found in the file"
)
