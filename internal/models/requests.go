package models

// QueryRequest represents one natural-language question.
type QueryRequest struct {
	Question string
	// Format is "json" (default) or "csv".
	Format string
}

// Output formats accepted on requests and plans.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)
