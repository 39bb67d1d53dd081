package http

import (
	"log"
	"net/http"
	"strings"

	"cryptoquest-engine/internal/reward"
)

// WalletHandler serves the read-only on-chain views: the reward token as
// seen by one holder plus the contract's pool and whitelist status.
type WalletHandler struct {
	reader *reward.ContractReader
}

func NewWalletHandler(reader *reward.ContractReader) *WalletHandler {
	return &WalletHandler{reader: reader}
}

// Register mounts the wallet route on a mux.
func (h *WalletHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/wallet/", h.handleWallet)
}

type walletResponse struct {
	Address          string           `json:"address"`
	Whitelisted      bool             `json:"whitelisted"`
	Token            reward.TokenInfo `json:"token"`
	ContractBalance  string           `json:"contractBalance"`
	TotalDistributed string           `json:"totalDistributed"`
}

func (h *WalletHandler) handleWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	addr, ok := strings.CutPrefix(r.URL.Path, "/wallet/")
	if !ok || addr == "" || strings.Contains(addr, "/") {
		http.NotFound(w, r)
		return
	}

	ctx := r.Context()
	info, err := h.reader.TokenInfo(ctx, addr)
	if err != nil {
		log.Printf("token info for %s: %v", addr, err)
		http.Error(w, "failed to read token info", http.StatusBadGateway)
		return
	}
	whitelisted, err := h.reader.IsWhitelisted(ctx, addr)
	if err != nil {
		log.Printf("whitelist check for %s: %v", addr, err)
		http.Error(w, "failed to read whitelist", http.StatusBadGateway)
		return
	}
	balance, err := h.reader.ContractBalance(ctx)
	if err != nil {
		log.Printf("contract balance: %v", err)
		http.Error(w, "failed to read contract balance", http.StatusBadGateway)
		return
	}
	distributed, err := h.reader.TotalDistributed(ctx)
	if err != nil {
		log.Printf("total distributed: %v", err)
		http.Error(w, "failed to read distribution total", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, walletResponse{
		Address:          addr,
		Whitelisted:      whitelisted,
		Token:            info,
		ContractBalance:  reward.FormatUnits(balance, info.Decimals),
		TotalDistributed: reward.FormatUnits(distributed, info.Decimals),
	})
}
