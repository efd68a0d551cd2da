// Package chainclient provides the JSON-RPC 2.0 client for Halcyon
// nodes. It is the wallet's only chain query/broadcast boundary and the
// sole source of truth for whether a note is spent.
package chainclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/halcyon-cash/halcyon-wallet/internal/syncer"
	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

// Client is a JSON-RPC 2.0 HTTP client. It implements syncer.ChainSource.
type Client struct {
	endpoint string
	http     *http.Client
}

// New creates a new chain client targeting the given endpoint URL.
func New(endpoint string) *Client {
	return NewWithTimeout(endpoint, 10*time.Second)
}

// NewWithTimeout creates a new chain client with a custom HTTP timeout.
func NewWithTimeout(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// request is a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int         `json:"id"`
}

// response is a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is returned when the node responds with an error.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call invokes a JSON-RPC method and unmarshals the result into the
// provided pointer. If result is nil, the response result is discarded.
func (c *Client) Call(ctx context.Context, method string, params, result interface{}) error {
	req := request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var rpcResp response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return &RPCError{
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
		}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}

	return nil
}

// ChainInfo is the node's chain_getInfo result.
type ChainInfo struct {
	Network string `json:"network"`
	Height  uint64 `json:"height"`
	Peers   int    `json:"peers"`
	Synced  bool   `json:"synced"`
}

// Status returns the node's chain status.
func (c *Client) Status(ctx context.Context) (*ChainInfo, error) {
	var info ChainInfo
	if err := c.Call(ctx, "chain_getInfo", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ChainHeight returns the node's current block height.
func (c *Client) ChainHeight(ctx context.Context) (uint64, error) {
	info, err := c.Status(ctx)
	if err != nil {
		return 0, err
	}
	return info.Height, nil
}

// NotesByFirstName returns the node's current unspent notes whose first
// name matches the hash. Payloads arrive as versioned wire notes and
// are decoded per version; one undecodable note fails the whole call so
// a sync pass never sees a partial snapshot.
func (c *Client) NotesByFirstName(ctx context.Context, first types.Hash) ([]syncer.FetchedNote, error) {
	var raws []json.RawMessage
	if err := c.Call(ctx, "note_getByFirstName", []string{first.String()}, &raws); err != nil {
		return nil, err
	}
	notes := make([]syncer.FetchedNote, 0, len(raws))
	for i, raw := range raws {
		n, err := DecodeWireNote(raw)
		if err != nil {
			return nil, fmt.Errorf("note %d: %w", i, err)
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// SendTransaction submits an encoded transaction and returns its hash.
func (c *Client) SendTransaction(ctx context.Context, encodedTx []byte) (string, error) {
	var txHash string
	params := []string{base64.StdEncoding.EncodeToString(encodedTx)}
	if err := c.Call(ctx, "tx_submit", params, &txHash); err != nil {
		return "", err
	}
	return txHash, nil
}

// IsTransactionAccepted reports whether the node has accepted the
// transaction with the given hash.
func (c *Client) IsTransactionAccepted(ctx context.Context, txHash string) (bool, error) {
	var accepted bool
	if err := c.Call(ctx, "tx_isAccepted", []string{txHash}, &accepted); err != nil {
		return false, err
	}
	return accepted, nil
}
