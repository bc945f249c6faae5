package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"solana-meme-radar/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 4 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements Ledger using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

var _ Ledger = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	start := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(start).Seconds())
	}()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return errors.Wrap(err, "create request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = errors.Wrap(err, "http request")
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = errors.Wrap(err, "read response")
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = errors.New("rate limited (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = errors.Newf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = errors.Wrap(err, "unmarshal response")
			continue
		}

		// RPC errors are not retried
		if rpcResp.Error != nil {
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return errors.Wrap(err, "unmarshal result")
			}
		}
		return nil
	}

	return errors.Wrap(lastErr, "max retries exceeded")
}

// GetParsedTransaction fetches a transaction at confirmed commitment and
// annotates it with its current confirmation status.
func (c *HTTPClient) GetParsedTransaction(ctx context.Context, signature string) (*ParsedTransaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"commitment":                     CommitmentConfirmed,
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result *parsedTransactionResult
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, errors.Wrapf(err, "get transaction %s", signature)
	}
	if result == nil {
		return nil, nil
	}

	tx := &ParsedTransaction{
		Signature: signature,
		Slot:      result.Slot,
		BlockTime: result.BlockTime,
	}
	if result.Meta != nil {
		tx.Err = result.Meta.Err
		for _, inner := range result.Meta.InnerInstructions {
			for _, raw := range inner.Instructions {
				tx.InnerInstructions = append(tx.InnerInstructions, raw.decode())
			}
		}
	}
	if result.Transaction != nil {
		for _, raw := range result.Transaction.Message.Instructions {
			tx.Instructions = append(tx.Instructions, raw.decode())
		}
	}

	status, err := c.GetSignatureStatus(ctx, signature)
	if err != nil {
		return nil, err
	}
	if status != nil {
		tx.ConfirmationStatus = status.ConfirmationStatus
	}
	return tx, nil
}

// SignatureStatus is an entry of getSignatureStatuses.
type SignatureStatus struct {
	Slot               int64       `json:"slot"`
	Confirmations      *int64      `json:"confirmations"`
	Err                interface{} `json:"err"`
	ConfirmationStatus string      `json:"confirmationStatus"`
}

// GetSignatureStatus returns nil, nil when the node has no status for signature.
func (c *HTTPClient) GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	params := []interface{}{
		[]string{signature},
		map[string]interface{}{"searchTransactionHistory": true},
	}

	var result struct {
		Value []*SignatureStatus `json:"value"`
	}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, errors.Wrapf(err, "get signature status %s", signature)
	}
	if len(result.Value) == 0 {
		return nil, nil
	}
	return result.Value[0], nil
}

type parsedTransactionResult struct {
	Slot        int64              `json:"slot"`
	BlockTime   *int64             `json:"blockTime"`
	Meta        *parsedMeta        `json:"meta"`
	Transaction *parsedTransaction `json:"transaction"`
}

type parsedMeta struct {
	Err               interface{}        `json:"err"`
	InnerInstructions []innerInstruction `json:"innerInstructions"`
}

type innerInstruction struct {
	Index        int              `json:"index"`
	Instructions []rawInstruction `json:"instructions"`
}

type parsedTransaction struct {
	Message struct {
		Instructions []rawInstruction `json:"instructions"`
	} `json:"message"`
}

// rawInstruction.Parsed is an object for known programs and a plain string
// for some (e.g. memo).
type rawInstruction struct {
	Program   string          `json:"program"`
	ProgramID string          `json:"programId"`
	Parsed    json.RawMessage `json:"parsed"`
}

type parsedBody struct {
	Type string `json:"type"`
	Info struct {
		Source      string `json:"source"`
		Destination string `json:"destination"`
		Lamports    uint64 `json:"lamports"`
	} `json:"info"`
}

func (r rawInstruction) decode() Instruction {
	ins := Instruction{Program: r.Program, ProgramID: r.ProgramID}
	if len(r.Parsed) == 0 || r.Parsed[0] != '{' {
		return ins
	}
	var body parsedBody
	if err := json.Unmarshal(r.Parsed, &body); err != nil {
		return ins
	}
	ins.Type = body.Type
	ins.Source = body.Info.Source
	ins.Destination = body.Info.Destination
	ins.Lamports = body.Info.Lamports
	return ins
}
