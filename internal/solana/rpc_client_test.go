package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const testRecipient = "EcNDgT8jmBqDiRm4zcg4PjqdqjBwmCF51v2h1KUuo9z7"

func writeResult(t *testing.T, w http.ResponseWriter, id uint64, result interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestHTTPClient_GetParsedTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		switch req.Method {
		case "getTransaction":
			opts, _ := req.Params[1].(map[string]interface{})
			if opts["encoding"] != "jsonParsed" {
				t.Errorf("expected jsonParsed encoding, got %v", opts["encoding"])
			}
			writeResult(t, w, req.ID, map[string]interface{}{
				"slot":      int64(123456),
				"blockTime": int64(1700000000),
				"meta": map[string]interface{}{
					"err": nil,
					"innerInstructions": []interface{}{
						map[string]interface{}{
							"index": 0,
							"instructions": []interface{}{
								map[string]interface{}{
									"program":   "system",
									"programId": SystemProgramID,
									"parsed": map[string]interface{}{
										"type": "transfer",
										"info": map[string]interface{}{
											"source":      "payer",
											"destination": testRecipient,
											"lamports":    uint64(5_000_000),
										},
									},
								},
							},
						},
					},
				},
				"transaction": map[string]interface{}{
					"message": map[string]interface{}{
						"instructions": []interface{}{
							map[string]interface{}{
								"program":   "spl-memo",
								"programId": "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr",
								"parsed":    "hello",
							},
							map[string]interface{}{
								"programId": "ComputeBudget111111111111111111111111111111",
								"data":      "3DTZbgwsozUF",
							},
						},
					},
				},
			})
		case "getSignatureStatuses":
			writeResult(t, w, req.ID, map[string]interface{}{
				"context": map[string]interface{}{"slot": 123500},
				"value": []interface{}{
					map[string]interface{}{
						"slot":               123456,
						"confirmations":      nil,
						"err":                nil,
						"confirmationStatus": "finalized",
					},
				},
			})
		default:
			t.Errorf("unexpected method %s", req.Method)
		}
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	tx, err := client.GetParsedTransaction(context.Background(), "testsig123")
	if err != nil {
		t.Fatalf("GetParsedTransaction: %v", err)
	}
	if tx == nil {
		t.Fatal("expected transaction, got nil")
	}

	if tx.Slot != 123456 {
		t.Errorf("expected slot 123456, got %d", tx.Slot)
	}
	if tx.BlockTime == nil || *tx.BlockTime != 1700000000 {
		t.Errorf("expected blockTime 1700000000, got %v", tx.BlockTime)
	}
	if tx.Err != nil {
		t.Errorf("expected no tx error, got %v", tx.Err)
	}
	if tx.ConfirmationStatus != CommitmentFinalized {
		t.Errorf("expected finalized, got %q", tx.ConfirmationStatus)
	}

	if len(tx.Instructions) != 2 {
		t.Fatalf("expected 2 top-level instructions, got %d", len(tx.Instructions))
	}
	if tx.Instructions[0].Type != "" {
		t.Errorf("string-parsed instruction should have no type, got %q", tx.Instructions[0].Type)
	}
	if tx.Instructions[1].Program != "" {
		t.Errorf("unparsed instruction should have no program, got %q", tx.Instructions[1].Program)
	}

	if len(tx.InnerInstructions) != 1 {
		t.Fatalf("expected 1 inner instruction, got %d", len(tx.InnerInstructions))
	}
	inner := tx.InnerInstructions[0]
	if !inner.IsTransferTo(testRecipient) {
		t.Errorf("expected transfer to recipient, got %+v", inner)
	}
	if inner.Lamports != 5_000_000 {
		t.Errorf("expected 5000000 lamports, got %d", inner.Lamports)
	}
}

func TestHTTPClient_GetParsedTransaction_NotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		writeResult(t, w, req.ID, nil)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	tx, err := client.GetParsedTransaction(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetParsedTransaction: %v", err)
	}
	if tx != nil {
		t.Errorf("expected nil transaction, got %+v", tx)
	}
	if calls.Load() != 1 {
		t.Errorf("status lookup should be skipped for unknown tx, got %d calls", calls.Load())
	}
}

func TestHTTPClient_GetSignatureStatus_Unknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		writeResult(t, w, req.ID, map[string]interface{}{"value": []interface{}{nil}})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	status, err := client.GetSignatureStatus(context.Background(), "sig")
	if err != nil {
		t.Fatalf("GetSignatureStatus: %v", err)
	}
	if status != nil {
		t.Errorf("expected nil status, got %+v", status)
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		writeResult(t, w, req.ID, map[string]interface{}{
			"value": []interface{}{
				map[string]interface{}{"slot": 1, "confirmationStatus": "confirmed"},
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	status, err := client.GetSignatureStatus(context.Background(), "sig")
	if err != nil {
		t.Fatalf("GetSignatureStatus: %v", err)
	}
	if status == nil || status.ConfirmationStatus != CommitmentConfirmed {
		t.Errorf("expected confirmed status, got %+v", status)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32602,
				"message": "Invalid param: WrongSize",
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.GetParsedTransaction(context.Background(), "bad")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %T", err)
	}
	if rpcErr.Code != -32602 {
		t.Errorf("expected code -32602, got %d", rpcErr.Code)
	}
	if attempts.Load() != 1 {
		t.Errorf("RPC errors must not be retried, got %d attempts", attempts.Load())
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetParsedTransaction(ctx, "sig")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestLamportsToSOL(t *testing.T) {
	got := LamportsToSOL(20_000_000)
	if got.String() != "0.02" {
		t.Errorf("expected 0.02, got %s", got)
	}
	if !LamportsToSOL(LamportsPerSOL).Equal(LamportsToSOL(1_000_000_000)) {
		t.Error("one SOL mismatch")
	}
}
