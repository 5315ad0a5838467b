package cart

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// detail holds everything recovered from the metadata bag. Parse failures on
// any one key are warnings: the affected detail is treated as absent and the
// cart still reconstructs from line items alone.
type detail struct {
	tableName    string
	horses       []HorseEntry
	ads          []AdEntry
	raffleOwners []RaffleOwner
	tags         []Category
}

func parseDetail(lg *zap.Logger, sessionID string, metadata map[string]string) detail {
	return detail{
		tableName:    metadata[MetaTableName],
		tags:         categoryTags(metadata),
		horses:       metaSlice[HorseEntry](lg, sessionID, metadata, MetaHorses),
		ads:          metaSlice[AdEntry](lg, sessionID, metadata, MetaProgramAds),
		raffleOwners: metaSlice[RaffleOwner](lg, sessionID, metadata, MetaRaffleOwners),
	}
}

// metaSlice decodes one JSON-array metadata value. Malformed JSON yields nil,
// never a partially decoded slice: values are truncated upstream to fit the
// ~500 char metadata limit, so broken JSON is an expected degradation.
func metaSlice[T any](lg *zap.Logger, sessionID string, metadata map[string]string, key string) []T {
	raw, ok := metadata[key]
	if !ok || raw == "" {
		return nil
	}
	var vals []T
	if err := json.Unmarshal([]byte(raw), &vals); err != nil {
		lg.Warn("metadata parse warning, treating detail as absent",
			zap.String("session_id", sessionID),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil
	}
	return vals
}

// Reconstruct rebuilds the semantic cart for one confirmed session. Every
// line item is classified into exactly one category (explicit tag when the
// session carries one, description matching otherwise) and zipped against
// metadata detail in input order. The result is always usable: detail gaps
// are filled with synthesized defaults derived from the purchaser.
func Reconstruct(lg *zap.Logger, sess Session) Cart {
	d := parseDetail(lg, sess.ID, sess.Metadata)

	c := Cart{Session: sess, Lines: make([]Line, 0, len(sess.Items))}
	adIndex := 0
	for i, item := range sess.Items {
		category := CategoryUnknown
		if i < len(d.tags) {
			category = d.tags[i]
		}
		if category == CategoryUnknown {
			category = classifyDescription(item.Description)
		}

		line := Line{
			Category:    category,
			Description: item.Description,
			Quantity:    item.Quantity,
			Amount:      Dollars(item.AmountTotal),
		}

		switch category {
		case CategoryEventTickets:
			line.TableName = d.tableName
		case CategoryHorses:
			line.Horses = zipHorses(d.horses, item.Quantity, sess.PurchaserName)
		case CategoryProgramAd:
			line.Ad = adFor(d.ads, adIndex, item.Description)
			adIndex++
		case CategoryRaffleIndividual, CategoryRaffleBook:
			line.RaffleOwners = zipRaffleOwners(d.raffleOwners, line.TicketCount(), sess.PurchaserName, sess.Email)
		case CategoryUnknown:
			lg.Warn("unrecognized line item, skipping",
				zap.String("session_id", sess.ID),
				zap.String("description", item.Description),
			)
			continue
		}

		c.Lines = append(c.Lines, line)
	}
	return c
}

// zipHorses pairs metadata horse entries against the paid quantity in input
// order. The paid quantity is authoritative: surplus detail entries are
// dropped, missing positions get sequential placeholder names with the
// purchaser as owner.
func zipHorses(entries []HorseEntry, quantity int, purchaser string) []HorseEntry {
	horses := make([]HorseEntry, quantity)
	for i := range quantity {
		h := HorseEntry{}
		if i < len(entries) {
			h = entries[i]
		}
		if h.Name == "" {
			h.Name = fmt.Sprintf("Horse %d", i+1)
		}
		if h.Owner == "" {
			h.Owner = fallback(purchaser, "Owner")
		}
		horses[i] = h
	}
	return horses
}

// adFor picks the idx-th metadata ad entry, filling gaps from the display
// text. Ad lines always have quantity 1, so ads are matched to metadata by
// their occurrence order across the session's lines.
func adFor(entries []AdEntry, idx int, description string) AdEntry {
	ad := AdEntry{}
	if idx < len(entries) {
		ad = entries[idx]
	}
	if ad.Size == "" {
		ad.Size = adSizeFromDescription(description)
	}
	if ad.Business == "" {
		ad.Business = adBusinessFromDescription(description)
	}
	if ad.Design == "" {
		ad.Design = "unknown"
	}
	return ad
}

// adSizeFromDescription recovers the size label from text shaped like
// "Program Book Ad - Full Page".
func adSizeFromDescription(description string) string {
	if _, size, ok := strings.Cut(description, " - "); ok {
		if nl := strings.IndexByte(size, '\n'); nl >= 0 {
			size = size[:nl]
		}
		if size = strings.TrimSpace(size); size != "" {
			return size
		}
	}
	return "Unknown"
}

// adBusinessFromDescription recovers the business name from text shaped like
// "Business: Acme Feed & Tack".
func adBusinessFromDescription(description string) string {
	if _, rest, ok := strings.Cut(description, "Business: "); ok {
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[:nl]
		}
		if rest = strings.TrimSpace(rest); rest != "" {
			return rest
		}
	}
	return "Business"
}

// zipRaffleOwners expands metadata owner entries into exactly total single
// ticket assignments' worth of owners, one RaffleOwner per owner with a
// normalized ticket count. Owners beyond the paid total are dropped, owner
// counts are clamped to the remaining total, and any shortfall is assigned to
// the purchaser.
func zipRaffleOwners(entries []RaffleOwner, total int, purchaser, email string) []RaffleOwner {
	owners := make([]RaffleOwner, 0, len(entries)+1)
	remaining := total
	for _, e := range entries {
		if remaining == 0 {
			break
		}
		tickets := e.Tickets
		if tickets <= 0 {
			tickets = 1
		}
		if tickets > remaining {
			tickets = remaining
		}
		owners = append(owners, RaffleOwner{
			Name:    fallback(e.Name, fallback(purchaser, "Owner")),
			Contact: fallback(e.Contact, email),
			Tickets: tickets,
		})
		remaining -= tickets
	}
	if remaining > 0 {
		owners = append(owners, RaffleOwner{
			Name:    fallback(purchaser, "Owner"),
			Contact: email,
			Tickets: remaining,
		})
	}
	return owners
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
