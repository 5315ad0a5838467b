package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiInsert_SingleRow(t *testing.T) {
	sql, args := multiInsert("horses",
		[]string{"order_id", "horse_name"},
		1,
		func(_ int) []any { return []any{"o1", "Thunder"} },
	)

	assert.Equal(t, "INSERT INTO horses (order_id, horse_name) VALUES ($1,$2)", sql)
	assert.Equal(t, []any{"o1", "Thunder"}, args)
}

func TestMultiInsert_MultipleRows(t *testing.T) {
	rows := [][]any{
		{"o1", "100001", "Jane"},
		{"o1", "100002", "Jane"},
		{"o1", "100003", "Bob"},
	}

	sql, args := multiInsert("raffle_tickets",
		[]string{"order_id", "ticket_number", "owner_name"},
		len(rows),
		func(i int) []any { return rows[i] },
	)

	assert.Equal(t,
		"INSERT INTO raffle_tickets (order_id, ticket_number, owner_name) VALUES ($1,$2,$3),($4,$5,$6),($7,$8,$9)",
		sql,
	)
	require.Len(t, args, 9)
	assert.Equal(t, "100003", args[7])
}
