package transactions

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandler_List(t *testing.T) {
	handler := NewHandler()

	req := httptest.NewRequest(http.MethodGet, "/transaction-history", nil)
	rr := httptest.NewRecorder()
	handler.List(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var resp ListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Success {
		t.Error("success should be true")
	}
	if resp.Total != len(resp.Data) {
		t.Errorf("total = %d, want %d", resp.Total, len(resp.Data))
	}
	if len(resp.Data) == 0 {
		t.Fatal("history should not be empty")
	}
	for i, tx := range resp.Data {
		if tx.ID == 0 || tx.Date == "" || tx.ReferenceID == "" || tx.To == "" || tx.Amount == "" {
			t.Errorf("entry %d is incomplete: %+v", i, tx)
		}
	}
}
