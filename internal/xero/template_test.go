package xero

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMap(t *testing.T) {
	fields := map[string]string{
		"ticket_id":      "42",
		"ticket_subject": "Printer on fire",
		"labour_hours":   "1.5",
	}

	assert.Equal(t, "Ticket 42: Printer on fire (1.5h)",
		FormatMap("Ticket {ticket_id}: {ticket_subject} ({labour_hours}h)", fields))
	assert.Equal(t, "Ticket 42 - ",
		FormatMap("Ticket {ticket_id} - {missing_key}", fields), "missing keys render empty")
	assert.Equal(t, "no placeholders", FormatMap("no placeholders", fields))
	assert.Equal(t, "", FormatMap("", fields))
	assert.Equal(t, "dangling { brace", FormatMap("dangling { brace", fields), "unmatched brace passes through")
}
