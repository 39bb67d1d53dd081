package http

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cryptoquest-engine/internal/reward"
)

func uintWord(n uint64) string { return fmt.Sprintf("%064x", n) }

// newChainServer fakes the node with a fixed response per call. The reader's
// call order is deterministic: rewardToken, symbol, decimals, balanceOf,
// isWhitelisted, getContractBalance, totalRewardsDistributed.
func newChainServer(t *testing.T, results []string) *httptest.Server {
	t.Helper()
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls >= len(results) {
			t.Errorf("unexpected rpc call %d", calls)
			return
		}
		result := results[calls]
		calls++
		json.NewEncoder(w).Encode(map[string]any{"result": result})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestWalletViewAggregatesChainReads(t *testing.T) {
	token := "00000000000000000000000000000000000000cc"
	symbol := "0x" + uintWord(32) + uintWord(3) +
		hex.EncodeToString([]byte("CQT")) + strings.Repeat("00", 29)

	server := newChainServer(t, []string{
		"0x" + strings.Repeat("0", 24) + token, // rewardToken()
		symbol,
		"0x" + uintWord(18),
		"0x" + uintWord(1500000000000000000),  // balanceOf: 1.5 tokens
		"0x" + uintWord(1),                    // isWhitelisted: true
		"0x" + uintWord(10000000000000000000), // pool: 10 tokens
		"0x" + uintWord(2500000000000000000),  // distributed: 2.5 tokens
	})

	reader := reward.NewContractReader(reward.NewRPCClient(server.URL), "0x00000000000000000000000000000000000000aa")
	mux := http.NewServeMux()
	NewWalletHandler(reader).Register(mux)
	api := httptest.NewServer(mux)
	defer api.Close()

	resp, err := http.Get(api.URL + "/wallet/0x1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out walletResponse
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Token.Symbol != "CQT" || out.Token.Decimals != 18 {
		t.Fatalf("unexpected token %+v", out.Token)
	}
	if out.Token.TokenAddress != "0x"+token {
		t.Fatalf("token address = %q", out.Token.TokenAddress)
	}
	if out.Token.Balance != "1.5" {
		t.Fatalf("balance = %q", out.Token.Balance)
	}
	if !out.Whitelisted {
		t.Fatal("expected whitelisted holder")
	}
	if out.ContractBalance != "10" || out.TotalDistributed != "2.5" {
		t.Fatalf("pool=%q distributed=%q", out.ContractBalance, out.TotalDistributed)
	}
}

func TestWalletViewSurfacesChainFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 3, "message": "execution reverted"},
		})
	}))
	defer server.Close()

	reader := reward.NewContractReader(reward.NewRPCClient(server.URL), "0x00000000000000000000000000000000000000aa")
	mux := http.NewServeMux()
	NewWalletHandler(reader).Register(mux)
	api := httptest.NewServer(mux)
	defer api.Close()

	resp, err := http.Get(api.URL + "/wallet/0x1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
}
