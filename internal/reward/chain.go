package reward

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"
)

// RPCClient is a minimal Ethereum JSON-RPC transport. The engine only needs
// eth_call for display reads and eth_sendTransaction for the claim, so a bare
// HTTP client keeps the dependency surface flat.
type RPCClient struct {
	url  string
	http *http.Client
}

func NewRPCClient(url string) *RPCClient {
	return &RPCClient{url: url, http: &http.Client{Timeout: 30 * time.Second}}
}

// NewRPCClientWithHTTP is test-only.
func NewRPCClientWithHTTP(url string, hc *http.Client) *RPCClient {
	return &RPCClient{url: url, http: hc}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

func (c *RPCClient) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode rpc request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc transport: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rpc status %d: %s", resp.StatusCode, snippet)
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	if out.Error != nil {
		return nil, out.Error
	}
	return out.Result, nil
}

// Call executes a read-only contract call against the latest block.
func (c *RPCClient) Call(ctx context.Context, to string, calldata []byte) ([]byte, error) {
	raw, err := c.call(ctx, "eth_call", map[string]string{
		"to":   to,
		"data": "0x" + hex.EncodeToString(calldata),
	}, "latest")
	if err != nil {
		return nil, err
	}
	var hexResult string
	if err := json.Unmarshal(raw, &hexResult); err != nil {
		return nil, fmt.Errorf("decode call result: %w", err)
	}
	return decodeHex(hexResult)
}

// RPCWallet sends transactions from a node-managed account. It satisfies the
// Wallet interface for deployments where the signing capability lives behind
// the RPC endpoint; interactive wallets plug in their own implementation.
type RPCWallet struct {
	rpc  *RPCClient
	from string
}

func NewRPCWallet(rpc *RPCClient, from string) *RPCWallet {
	return &RPCWallet{rpc: rpc, from: from}
}

func (w *RPCWallet) SendTransaction(ctx context.Context, to string, calldata []byte) (string, error) {
	raw, err := w.rpc.call(ctx, "eth_sendTransaction", map[string]string{
		"from": w.from,
		"to":   to,
		"data": "0x" + hex.EncodeToString(calldata),
	})
	if err != nil {
		return "", err
	}
	var hash string
	if err := json.Unmarshal(raw, &hash); err != nil {
		return "", fmt.Errorf("decode tx hash: %w", err)
	}
	return hash, nil
}

// TokenInfo is the display-only view of the reward token for one holder.
type TokenInfo struct {
	TokenAddress string `json:"tokenAddress"`
	Symbol       string `json:"symbol"`
	Decimals     uint8  `json:"decimals"`
	Balance      string `json:"balance"`
}

// ContractReader performs the read-only reward-contract calls used for display.
type ContractReader struct {
	rpc      *RPCClient
	contract string
}

func NewContractReader(rpc *RPCClient, contract string) *ContractReader {
	return &ContractReader{rpc: rpc, contract: contract}
}

// RewardToken returns the ERC-20 address the contract pays out in.
func (r *ContractReader) RewardToken(ctx context.Context) (string, error) {
	out, err := r.rpc.Call(ctx, r.contract, selector("rewardToken()"))
	if err != nil {
		return "", err
	}
	return decodeAddress(out)
}

// ContractBalance returns the remaining reward pool in token base units.
func (r *ContractReader) ContractBalance(ctx context.Context) (*big.Int, error) {
	out, err := r.rpc.Call(ctx, r.contract, selector("getContractBalance()"))
	if err != nil {
		return nil, err
	}
	return decodeUint(out)
}

// TotalDistributed returns the lifetime rewards paid out in token base units.
func (r *ContractReader) TotalDistributed(ctx context.Context) (*big.Int, error) {
	out, err := r.rpc.Call(ctx, r.contract, selector("totalRewardsDistributed()"))
	if err != nil {
		return nil, err
	}
	return decodeUint(out)
}

// IsWhitelisted reports whether an address is cleared to claim.
func (r *ContractReader) IsWhitelisted(ctx context.Context, addr string) (bool, error) {
	word, err := wordFromAddress(addr)
	if err != nil {
		return false, err
	}
	calldata := append(selector("isWhitelisted(address)"), word[:]...)
	out, err := r.rpc.Call(ctx, r.contract, calldata)
	if err != nil {
		return false, err
	}
	return decodeBool(out)
}

// TokenInfo resolves the reward token and reads symbol, decimals and the
// holder's balance, formatted into whole-token units.
func (r *ContractReader) TokenInfo(ctx context.Context, holder string) (TokenInfo, error) {
	token, err := r.RewardToken(ctx)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("reward token: %w", err)
	}

	symRaw, err := r.rpc.Call(ctx, token, selector("symbol()"))
	if err != nil {
		return TokenInfo{}, fmt.Errorf("symbol: %w", err)
	}
	symbol, err := decodeString(symRaw)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("symbol: %w", err)
	}

	decRaw, err := r.rpc.Call(ctx, token, selector("decimals()"))
	if err != nil {
		return TokenInfo{}, fmt.Errorf("decimals: %w", err)
	}
	decimals, err := decodeUint(decRaw)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("decimals: %w", err)
	}

	word, err := wordFromAddress(holder)
	if err != nil {
		return TokenInfo{}, err
	}
	balRaw, err := r.rpc.Call(ctx, token, append(selector("balanceOf(address)"), word[:]...))
	if err != nil {
		return TokenInfo{}, fmt.Errorf("balance: %w", err)
	}
	balance, err := decodeUint(balRaw)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("balance: %w", err)
	}

	return TokenInfo{
		TokenAddress: token,
		Symbol:       symbol,
		Decimals:     uint8(decimals.Uint64()),
		Balance:      FormatUnits(balance, uint8(decimals.Uint64())),
	}, nil
}

// FormatUnits renders a base-unit amount as a decimal token amount.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	s := amount.String()
	if decimals == 0 {
		return s
	}
	d := int(decimals)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for len(s) <= d {
		s = "0" + s
	}
	whole, frac := s[:len(s)-d], s[len(s)-d:]
	frac = strings.TrimRight(frac, "0")
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
