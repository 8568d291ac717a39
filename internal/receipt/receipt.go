// Package receipt parses the JSON receipt exports produced by the tax
// service mobile app into line items usable for categorization.
package receipt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/qifbot/qifbot/internal/common"
)

// timeLayout is the receipt timestamp format. It looks like RFC3339 but
// carries no zone suffix.
const timeLayout = "2006-01-02T15:04:05"

// Item is a single purchased line item. Sum is in minor currency units.
type Item struct {
	Name string `json:"name"`
	Sum  int64  `json:"sum"`
}

func (i Item) String() string {
	return fmt.Sprintf("%s:%d", i.Name, i.Sum)
}

// Receipt is one parsed purchase: the ordered line items, the declared
// total in minor units, and the purchase timestamp.
type Receipt struct {
	Date     time.Time
	Items    []Item
	TotalSum int64
}

type rawReceipt struct {
	TotalSum int64  `json:"totalSum"`
	DateTime string `json:"dateTime"`
	Items    []Item `json:"items"`
}

type rawDocument struct {
	Document struct {
		Receipt *rawReceipt `json:"receipt"`
	} `json:"document"`
}

// Parse decodes a receipt from its JSON export. Both the enveloped form
// {"document":{"receipt":{...}}} and the bare receipt object are accepted.
func Parse(data []byte) (*Receipt, error) {
	var envelope rawDocument
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode receipt: %w", err)
	}

	raw := envelope.Document.Receipt
	if raw == nil {
		raw = &rawReceipt{}
		if err := json.Unmarshal(data, raw); err != nil {
			return nil, fmt.Errorf("failed to decode receipt: %w", err)
		}
	}

	if len(raw.Items) == 0 {
		return nil, fmt.Errorf("%w: no items", common.ErrInvalidReceipt)
	}

	date, err := time.Parse(timeLayout, raw.DateTime)
	if err != nil {
		return nil, fmt.Errorf("failed to parse receipt date %q: %w", raw.DateTime, err)
	}

	return &Receipt{
		Date:     date,
		Items:    raw.Items,
		TotalSum: raw.TotalSum,
	}, nil
}

// ItemNames returns the line item names in receipt order.
func (r *Receipt) ItemNames() []string {
	names := make([]string, len(r.Items))
	for i, item := range r.Items {
		names[i] = item.Name
	}
	return names
}
