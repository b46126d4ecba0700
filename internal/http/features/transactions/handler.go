package transactions

import (
	"net/http"
	"time"

	"github.com/aeonbank/stepauth/internal/httputil"
)

// Handler serves the mock transaction history shown on the dashboard
// after login. The data is illustrative; it exists to exercise the
// authenticated-token path.
type Handler struct{}

// NewHandler creates a new transactions handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Transaction is one mock ledger entry.
type Transaction struct {
	ID              int    `json:"id"`
	Date            string `json:"date"`
	ReferenceID     string `json:"reference_id"`
	To              string `json:"to"`
	TransactionType string `json:"transaction_type"`
	Amount          string `json:"amount"`
}

// ListResponse is the transaction history payload.
type ListResponse struct {
	Success bool          `json:"success"`
	Data    []Transaction `json:"data"`
	Total   int           `json:"total"`
}

// List handles GET /transaction-history.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	day := func(offset int) string {
		return now.AddDate(0, 0, -offset).Format("1/2/2006")
	}

	history := []Transaction{
		{ID: 1, Date: day(0), ReferenceID: "#123456788", To: "Bloom Enterprice", TransactionType: "DuitNow Payment", Amount: "RM 10.00"},
		{ID: 2, Date: day(1), ReferenceID: "#123456789", To: "Tech Solutions Sdn Bhd", TransactionType: "Online Transfer", Amount: "RM 250.50"},
		{ID: 3, Date: day(2), ReferenceID: "#123456790", To: "Monthly Utilities", TransactionType: "Bill Payment", Amount: "RM 85.75"},
		{ID: 4, Date: day(3), ReferenceID: "#123456791", To: "Grocery Store", TransactionType: "Debit Card", Amount: "RM 45.20"},
		{ID: 5, Date: day(4), ReferenceID: "#123456792", To: "Coffee Bean Cafe", TransactionType: "DuitNow Payment", Amount: "RM 12.80"},
	}

	httputil.JSON(w, http.StatusOK, ListResponse{
		Success: true,
		Data:    history,
		Total:   len(history),
	})
}
