package cart

import (
	"encoding/json"
	"strings"
)

// Metadata bag keys. Written by the checkout endpoint when the session is
// created, read back here after payment confirmation.
const (
	MetaPurchaserName  = "purchaserName"
	MetaPhone          = "phone"
	MetaDancerFamily   = "dancerFamily"
	MetaTableName      = "tableName"
	MetaHorses         = "horses"
	MetaProgramAds     = "programAds"
	MetaRaffleOwners   = "raffleOwners"
	MetaItemCategories = "itemCategories"
)

// Fixed description substrings the checkout step embeds in line items. These
// are the backward-compatible fallback for sessions created before explicit
// category tagging; the strings must match create-checkout output verbatim.
const (
	descEventTickets  = "tickets for Night at the Races"
	descHorses        = "horse sponsorships"
	descProgramAd     = "Program Book Ad"
	descRaffle        = "Raffle Tickets"
	descRaffleBooks   = "books"
	descDonation      = "Cash Donation"
	descProcessingFee = "Processing Fee"
)

// categoryTags decodes the itemCategories metadata value: a JSON array of
// category strings index-aligned with the session's line items. A missing or
// malformed value yields nil and classification falls back to description
// matching.
func categoryTags(metadata map[string]string) []Category {
	raw, ok := metadata[MetaItemCategories]
	if !ok || raw == "" {
		return nil
	}
	var tags []Category
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	for i, t := range tags {
		if !knownCategory(t) {
			tags[i] = CategoryUnknown
		}
	}
	return tags
}

func knownCategory(c Category) bool {
	switch c {
	case CategoryEventTickets, CategoryHorses, CategoryProgramAd,
		CategoryRaffleIndividual, CategoryRaffleBook,
		CategoryDonation, CategoryProcessingFee:
		return true
	}
	return false
}

// classifyDescription infers the item category from the line's display text.
// Each line matches exactly one category; anything unrecognized is
// CategoryUnknown and is skipped (but logged) downstream.
func classifyDescription(description string) Category {
	switch {
	case strings.Contains(description, descEventTickets):
		return CategoryEventTickets
	case strings.Contains(strings.ToLower(description), descHorses):
		return CategoryHorses
	case strings.Contains(description, descProgramAd):
		return CategoryProgramAd
	case strings.Contains(description, descRaffle):
		if strings.Contains(description, descRaffleBooks) {
			return CategoryRaffleBook
		}
		return CategoryRaffleIndividual
	case strings.Contains(description, descDonation):
		return CategoryDonation
	case strings.Contains(description, descProcessingFee):
		return CategoryProcessingFee
	default:
		return CategoryUnknown
	}
}
