package autoswingtrade

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8700"
	c := NewClient(baseURL)

	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.baseURL != baseURL {
		t.Errorf("expected baseURL %q, got %q", baseURL, c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func TestGetStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(Status{Running: true, Cash: 1000, PositionCount: 2})
	}))
	defer srv.Close()

	st, err := NewClient(srv.URL).GetStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !st.Running || st.Cash != 1000 || st.PositionCount != 2 {
		t.Errorf("status = %+v", st)
	}
}

func TestGetTradesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("symbol") != "005930" || q.Get("days") != "7" {
			t.Errorf("query = %v", q)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"count":  1,
			"trades": []Trade{{Symbol: "005930", Qty: 10}},
		})
	}))
	defer srv.Close()

	trades, err := NewClient(srv.URL).GetTrades(context.Background(), "005930", 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 || trades[0].Qty != 10 {
		t.Errorf("trades = %+v", trades)
	}
}

func TestSubmitIntentRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var intent Intent
		if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
			t.Error(err)
		}
		if intent.Symbol != "A" {
			t.Errorf("intent = %+v", intent)
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(IntentResult{Accepted: false, Reason: "position_limit"})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).SubmitIntent(context.Background(), Intent{
		Symbol: "A", Side: "buy", Qty: 1, Price: 100,
	})
	if err != nil {
		t.Fatalf("rejection must not be a transport error: %v", err)
	}
	if res.Accepted || res.Reason != "position_limit" {
		t.Errorf("result = %+v", res)
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).GetStatus(context.Background()); err == nil {
		t.Error("5xx should surface as an error")
	}
}
