package registry

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-meme-radar/internal/domain"
)

func seedQueryRegistry(t *testing.T) *Registry {
	t.Helper()
	r, _ := newTestRegistry(100)
	seed := []domain.TokenPatch{
		{MintAddress: "MintBonk", Name: lo.ToPtr("bonk"), Symbol: lo.ToPtr("BONK"), CreatedAt: lo.ToPtr(int64(300)), MarketCap: lo.ToPtr(5.0)},
		{MintAddress: "MintWif", Name: lo.ToPtr("Dogwifhat"), Symbol: lo.ToPtr("WIF"), CreatedAt: lo.ToPtr(int64(100)), MarketCap: lo.ToPtr(9.0)},
		{MintAddress: "MintPopcat", Name: lo.ToPtr("Popcat"), Symbol: lo.ToPtr("POP"), CreatedAt: lo.ToPtr(int64(200)), MarketCap: lo.ToPtr(5.0)},
		{MintAddress: "MintAbc", Name: lo.ToPtr("Alpha"), Symbol: lo.ToPtr("abc"), CreatedAt: lo.ToPtr(int64(400)), MarketCap: lo.ToPtr(1.0)},
	}
	for _, p := range seed {
		r.Merge(p)
	}
	return r
}

func mints(tokens []domain.Token) []string {
	return lo.Map(tokens, func(t domain.Token, _ int) string { return t.MintAddress })
}

func TestQuery_Search(t *testing.T) {
	r := seedQueryRegistry(t)

	page := r.Query(Query{Search: "  POP "})
	assert.Equal(t, []string{"MintPopcat"}, mints(page.Tokens))
	assert.Equal(t, 1, page.Total)

	page = r.Query(Query{Search: "mintw"})
	assert.Equal(t, []string{"MintWif"}, mints(page.Tokens), "mint address matches")

	page = r.Query(Query{Search: "zzz"})
	assert.Empty(t, page.Tokens)
	assert.Zero(t, page.Total)
}

func TestQuery_NumericSortTiesByInsertion(t *testing.T) {
	r := seedQueryRegistry(t)

	page := r.Query(Query{SortField: SortMarketCap, SortOrder: OrderDesc})
	assert.Equal(t, []string{"MintWif", "MintBonk", "MintPopcat", "MintAbc"}, mints(page.Tokens))

	page = r.Query(Query{SortField: SortMarketCap, SortOrder: OrderAsc})
	assert.Equal(t, []string{"MintAbc", "MintBonk", "MintPopcat", "MintWif"}, mints(page.Tokens))
}

func TestQuery_StringSortCaseFolded(t *testing.T) {
	r := seedQueryRegistry(t)

	page := r.Query(Query{SortField: SortName, SortOrder: OrderAsc})
	assert.Equal(t, []string{"MintAbc", "MintBonk", "MintWif", "MintPopcat"}, mints(page.Tokens))

	page = r.Query(Query{SortField: SortSymbol, SortOrder: OrderAsc})
	assert.Equal(t, []string{"MintAbc", "MintBonk", "MintPopcat", "MintWif"}, mints(page.Tokens))
}

func TestQuery_UnknownSortMatchesCreatedAtDesc(t *testing.T) {
	r := seedQueryRegistry(t)

	want := r.Query(Query{SortField: SortCreatedAt, SortOrder: OrderDesc})
	for _, order := range []string{"", OrderAsc, OrderDesc, "sideways"} {
		got := r.Query(Query{SortField: "holders", SortOrder: order})
		assert.Equal(t, want, got, "order %q", order)
	}
	assert.Equal(t, []string{"MintAbc", "MintBonk", "MintPopcat", "MintWif"}, mints(want.Tokens))
}

func TestQuery_Pagination(t *testing.T) {
	r := seedQueryRegistry(t)

	page := r.Query(Query{SortField: SortCreatedAt, SortOrder: OrderAsc, Limit: 2, Offset: 1})
	require.Len(t, page.Tokens, 2)
	assert.Equal(t, []string{"MintPopcat", "MintBonk"}, mints(page.Tokens))
	assert.Equal(t, 4, page.Total)

	page = r.Query(Query{Limit: 2, Offset: 10})
	assert.NotNil(t, page.Tokens)
	assert.Empty(t, page.Tokens)
	assert.Equal(t, 4, page.Total)

	page = r.Query(Query{Offset: -3})
	assert.Len(t, page.Tokens, 4)
}
