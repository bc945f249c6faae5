package api

import (
	"net/http"
	"strconv"
	"strings"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/registry"
)

// List limits per tier.
const (
	defaultLimit     = 50
	premiumMaxLimit  = 100
	freeMaxLimit     = 20
	freeMomentumTop  = 3
	maxSearchLength  = 100
	searchForbidden  = "Search is a premium feature. Upgrade to premium to search tokens."
	tokenNotFound    = "Token not found"
)

// freeToken is the token view served to free-tier callers. Trade counts,
// short-window price changes and pair details are premium-only.
type freeToken struct {
	MintAddress    string          `json:"mintAddress"`
	Name           string          `json:"name"`
	Symbol         string          `json:"symbol"`
	CreatedAt      int64           `json:"createdAt"`
	LastUpdated    int64           `json:"lastUpdated"`
	MarketCap      float64         `json:"marketCap"`
	Liquidity      float64         `json:"liquidity"`
	Volume24h      float64         `json:"volume24h"`
	PriceUSD       float64         `json:"priceUsd"`
	PriceChange24h float64         `json:"priceChange24h"`
	BuyRatio       float64         `json:"buyRatio"`
	Metadata       domain.Metadata `json:"metadata"`
}

func stripPremium(t domain.Token) freeToken {
	return freeToken{
		MintAddress:    t.MintAddress,
		Name:           t.Name,
		Symbol:         t.Symbol,
		CreatedAt:      t.CreatedAt,
		LastUpdated:    t.LastUpdated,
		MarketCap:      t.MarketCap,
		Liquidity:      t.Liquidity,
		Volume24h:      t.Volume24h,
		PriceUSD:       t.PriceUSD,
		PriceChange24h: t.PriceChange24h,
		BuyRatio:       t.BuyRatio,
		Metadata:       t.Metadata,
	}
}

// tokensView returns tokens as served to tier.
func tokensView(tokens []domain.Token, tier domain.Tier) any {
	if tier == domain.TierPremium {
		if tokens == nil {
			return []domain.Token{}
		}
		return tokens
	}
	out := make([]freeToken, len(tokens))
	for i, t := range tokens {
		out[i] = stripPremium(t)
	}
	return out
}

type pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type tokenListResponse struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data"`
	Pagination pagination  `json:"pagination"`
	Tier       domain.Tier `json:"tier"`
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	ent := s.entitlement(r)
	q := r.URL.Query()

	search := strings.TrimSpace(q.Get("search"))
	if len(search) > maxSearchLength {
		search = search[:maxSearchLength]
	}
	if search != "" && ent.Tier != domain.TierPremium {
		errorResponse(w, http.StatusForbidden, searchForbidden)
		return
	}

	maxLimit := freeMaxLimit
	if ent.Tier == domain.TierPremium {
		maxLimit = premiumMaxLimit
	}
	limit := min(max(intParam(q.Get("limit"), defaultLimit), 1), maxLimit)
	offset := max(intParam(q.Get("offset"), 0), 0)
	if ent.Tier != domain.TierPremium {
		offset = 0
	}

	page := s.tokens.Query(registry.Query{
		SortField: q.Get("sort"),
		SortOrder: q.Get("order"),
		Search:    search,
		Limit:     limit,
		Offset:    offset,
	})
	jsonResponse(w, http.StatusOK, tokenListResponse{
		Success:    true,
		Data:       tokensView(page.Tokens, ent.Tier),
		Pagination: pagination{Total: page.Total, Limit: limit, Offset: offset},
		Tier:       ent.Tier,
	})
}

func (s *Server) handleHighMomentum(w http.ResponseWriter, r *http.Request) {
	ent := s.entitlement(r)
	tokens := s.tokens.RankByMomentum()
	if ent.Tier != domain.TierPremium && len(tokens) > freeMomentumTop {
		tokens = tokens[:freeMomentumTop]
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    tokensView(tokens, ent.Tier),
		"count":   len(tokens),
		"tier":    ent.Tier,
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	ent := s.entitlement(r)
	t, ok := s.tokens.Get(r.PathValue("mintAddress"))
	if !ok {
		errorResponse(w, http.StatusNotFound, tokenNotFound)
		return
	}
	var data any = t
	if ent.Tier != domain.TierPremium {
		data = stripPremium(t)
	}
	jsonResponse(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

type statsView struct {
	registry.Stats
	WSClients int `json:"wsClients"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	view := statsView{Stats: s.tokens.Stats()}
	if s.live != nil {
		view.WSClients = s.live.ClientCount()
	}
	jsonResponse(w, http.StatusOK, map[string]any{"success": true, "data": view})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(s.started).Seconds(),
		"timestamp": now.UnixMilli(),
	})
}

// intParam parses a query integer, returning def when absent or invalid.
func intParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
