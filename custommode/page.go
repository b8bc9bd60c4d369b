package custommode

import (
	"fmt"

	"lcxl3/sysex"
)

// SplitPages cuts an encoded payload into wire-page chunks. Every mode, even
// an empty one, occupies at least one page; a payload over the slot's page
// budget fails with ErrModeTooLarge.
func SplitPages(payload []byte) ([][]byte, error) {
	count := (len(payload) + sysex.PagePayloadMax - 1) / sysex.PagePayloadMax
	if count == 0 {
		count = 1
	}
	if count > sysex.PageCountMax {
		return nil, fmt.Errorf("encoded mode is %d bytes, %d pages over the %d-page budget: %w",
			len(payload), count, sysex.PageCountMax, ErrModeTooLarge)
	}

	pages := make([][]byte, 0, count)
	for start := 0; start < len(payload); start += sysex.PagePayloadMax {
		end := start + sysex.PagePayloadMax
		if end > len(payload) {
			end = len(payload)
		}
		pages = append(pages, payload[start:end])
	}
	if len(pages) == 0 {
		pages = append(pages, []byte{})
	}
	return pages, nil
}

// JoinPages reassembles chunks already ordered by page index.
func JoinPages(pages [][]byte) []byte {
	var total int
	for _, p := range pages {
		total += len(p)
	}
	joined := make([]byte, 0, total)
	for _, p := range pages {
		joined = append(joined, p...)
	}
	return joined
}
