package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testSession(items []Item, metadata map[string]string) Session {
	return Session{
		ID:             "cs_test_123",
		PurchaserName:  "Jane Smith",
		Email:          "jane@example.com",
		AmountTotal:    10000,
		AmountSubtotal: 10000,
		Items:          items,
		Metadata:       metadata,
	}
}

func TestClassifyDescription(t *testing.T) {
	tests := []struct {
		description string
		want        Category
	}{
		{"4 tickets for Night at the Races", CategoryEventTickets},
		{"2 horse sponsorships", CategoryHorses},
		{"2 Horse Sponsorships", CategoryHorses},
		{"Program Book Ad - Full Page\nBusiness: Acme Feed", CategoryProgramAd},
		{"Raffle Tickets - 3 individual", CategoryRaffleIndividual},
		{"Raffle Tickets - 2 books (10 tickets)", CategoryRaffleBook},
		{"Cash Donation (tax-deductible)", CategoryDonation},
		{"Processing Fee", CategoryProcessingFee},
		{"Mystery item", CategoryUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyDescription(tt.description), tt.description)
	}
}

func TestCategoryTags(t *testing.T) {
	tags := categoryTags(map[string]string{
		MetaItemCategories: `["event_tickets","horses","bogus"]`,
	})
	require.Len(t, tags, 3)
	assert.Equal(t, CategoryEventTickets, tags[0])
	assert.Equal(t, CategoryHorses, tags[1])
	assert.Equal(t, CategoryUnknown, tags[2])

	assert.Nil(t, categoryTags(map[string]string{}))
	assert.Nil(t, categoryTags(map[string]string{MetaItemCategories: "{not json"}))
}

func TestReconstruct_TagsPreferredOverDescription(t *testing.T) {
	// The tag says donation even though the text matches nothing.
	sess := testSession(
		[]Item{{Description: "Gift", Quantity: 1, AmountTotal: 5000}},
		map[string]string{MetaItemCategories: `["donation"]`},
	)

	c := Reconstruct(zap.NewNop(), sess)

	require.Len(t, c.Lines, 1)
	assert.Equal(t, CategoryDonation, c.Lines[0].Category)
	assert.True(t, decimal.RequireFromString("50.00").Equal(c.Lines[0].Amount))
}

func TestReconstruct_DescriptionFallback(t *testing.T) {
	// Sessions created before category tagging carry no itemCategories key.
	sess := testSession(
		[]Item{
			{Description: "4 tickets for Night at the Races", Quantity: 4, AmountTotal: 10000},
			{Description: "Raffle Tickets - 2 books (10 tickets)", Quantity: 2, AmountTotal: 4000},
		},
		map[string]string{MetaTableName: "Smith Party"},
	)

	c := Reconstruct(zap.NewNop(), sess)

	require.Len(t, c.Lines, 2)
	assert.Equal(t, CategoryEventTickets, c.Lines[0].Category)
	assert.Equal(t, "Smith Party", c.Lines[0].TableName)
	assert.Equal(t, CategoryRaffleBook, c.Lines[1].Category)
	assert.Equal(t, 10, c.Lines[1].TicketCount())
}

func TestReconstruct_UnknownLineSkipped(t *testing.T) {
	sess := testSession(
		[]Item{
			{Description: "Mystery item", Quantity: 1, AmountTotal: 1000},
			{Description: "Cash Donation (tax-deductible)", Quantity: 1, AmountTotal: 2500},
		},
		nil,
	)

	c := Reconstruct(zap.NewNop(), sess)

	require.Len(t, c.Lines, 1)
	assert.Equal(t, CategoryDonation, c.Lines[0].Category)
}

func TestReconstruct_MalformedMetadataDegrades(t *testing.T) {
	// Truncated horses JSON: the detail is dropped, placeholders fill in.
	sess := testSession(
		[]Item{{Description: "2 horse sponsorships", Quantity: 2, AmountTotal: 5000}},
		map[string]string{MetaHorses: `[{"name":"Thunder","owner":"Ja`},
	)

	c := Reconstruct(zap.NewNop(), sess)

	require.Len(t, c.Lines, 1)
	require.Len(t, c.Lines[0].Horses, 2)
	assert.Equal(t, "Horse 1", c.Lines[0].Horses[0].Name)
	assert.Equal(t, "Jane Smith", c.Lines[0].Horses[0].Owner)
	assert.Equal(t, "Horse 2", c.Lines[0].Horses[1].Name)
}

func TestZipHorses(t *testing.T) {
	entries := []HorseEntry{
		{Name: "Thunder", Owner: "Jane"},
		{Name: "", Owner: ""},
		{Name: "Surplus", Owner: "Nobody"},
	}

	// Paid quantity 2: the third entry is dropped, gaps get defaults.
	horses := zipHorses(entries, 2, "Jane Smith")

	require.Len(t, horses, 2)
	assert.Equal(t, HorseEntry{Name: "Thunder", Owner: "Jane"}, horses[0])
	assert.Equal(t, HorseEntry{Name: "Horse 2", Owner: "Jane Smith"}, horses[1])
}

func TestZipHorses_NoPurchaser(t *testing.T) {
	horses := zipHorses(nil, 1, "")

	require.Len(t, horses, 1)
	assert.Equal(t, "Horse 1", horses[0].Name)
	assert.Equal(t, "Owner", horses[0].Owner)
}

func TestAdFor_MetadataWins(t *testing.T) {
	ads := []AdEntry{{Business: "Acme Feed", Size: "Full Page", Design: "emailed"}}

	ad := adFor(ads, 0, "Program Book Ad - Half Page\nBusiness: Wrong")

	assert.Equal(t, "Acme Feed", ad.Business)
	assert.Equal(t, "Full Page", ad.Size)
	assert.Equal(t, "emailed", ad.Design)
}

func TestAdFor_DescriptionFallback(t *testing.T) {
	ad := adFor(nil, 0, "Program Book Ad - Half Page\nBusiness: Acme Feed & Tack")

	assert.Equal(t, "Half Page", ad.Size)
	assert.Equal(t, "Acme Feed & Tack", ad.Business)
	assert.Equal(t, "unknown", ad.Design)
}

func TestAdFor_UnparseableDescription(t *testing.T) {
	ad := adFor(nil, 0, "something else entirely")

	assert.Equal(t, "Unknown", ad.Size)
	assert.Equal(t, "Business", ad.Business)
}

func TestReconstruct_MultipleAdsMatchedInOrder(t *testing.T) {
	sess := testSession(
		[]Item{
			{Description: "Program Book Ad - Full Page\nBusiness: First", Quantity: 1, AmountTotal: 10000},
			{Description: "Program Book Ad - Half Page\nBusiness: Second", Quantity: 1, AmountTotal: 5000},
		},
		map[string]string{
			MetaProgramAds: `[{"business":"Acme","size":"Full Page","design":"emailed"},{"business":"Beta Co","size":"Half Page","design":"reuse last year"}]`,
		},
	)

	c := Reconstruct(zap.NewNop(), sess)

	require.Len(t, c.Lines, 2)
	assert.Equal(t, "Acme", c.Lines[0].Ad.Business)
	assert.Equal(t, "Beta Co", c.Lines[1].Ad.Business)
}

func TestZipRaffleOwners_ClampAndRemainder(t *testing.T) {
	entries := []RaffleOwner{
		{Name: "Alice", Contact: "alice@example.com", Tickets: 3},
		{Name: "Bob", Contact: "", Tickets: 10}, // overshoots
	}

	owners := zipRaffleOwners(entries, 5, "Jane Smith", "jane@example.com")

	require.Len(t, owners, 2)
	assert.Equal(t, 3, owners[0].Tickets)
	assert.Equal(t, "Bob", owners[1].Name)
	assert.Equal(t, 2, owners[1].Tickets, "clamped to the remaining paid total")
	assert.Equal(t, "jane@example.com", owners[1].Contact, "empty contact falls back to purchaser email")
}

func TestZipRaffleOwners_ShortfallGoesToPurchaser(t *testing.T) {
	entries := []RaffleOwner{{Name: "Alice", Contact: "a@example.com", Tickets: 2}}

	owners := zipRaffleOwners(entries, 10, "Jane Smith", "jane@example.com")

	require.Len(t, owners, 2)
	assert.Equal(t, "Jane Smith", owners[1].Name)
	assert.Equal(t, 8, owners[1].Tickets)
}

func TestZipRaffleOwners_NoMetadata(t *testing.T) {
	owners := zipRaffleOwners(nil, 5, "Jane Smith", "jane@example.com")

	require.Len(t, owners, 1)
	assert.Equal(t, RaffleOwner{Name: "Jane Smith", Contact: "jane@example.com", Tickets: 5}, owners[0])
}

func TestZipRaffleOwners_ZeroTicketEntryCountsAsOne(t *testing.T) {
	entries := []RaffleOwner{{Name: "Alice", Tickets: 0}}

	owners := zipRaffleOwners(entries, 3, "Jane", "jane@example.com")

	require.Len(t, owners, 2)
	assert.Equal(t, 1, owners[0].Tickets)
	assert.Equal(t, 2, owners[1].Tickets)
}

func TestLineTicketCount(t *testing.T) {
	assert.Equal(t, 3, Line{Category: CategoryRaffleIndividual, Quantity: 3}.TicketCount())
	assert.Equal(t, 10, Line{Category: CategoryRaffleBook, Quantity: 2}.TicketCount())
}

func TestDollars(t *testing.T) {
	assert.True(t, decimal.RequireFromString("48.55").Equal(Dollars(4855)))
	assert.True(t, decimal.Zero.Equal(Dollars(0)))
}
