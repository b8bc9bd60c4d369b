package device

import (
	"context"
	"fmt"
	"time"

	"lcxl3/custommode"
	"lcxl3/sysex"
)

// Slot addressing. Public slots are 1-based the way the hardware labels
// them; the wire carries slot-1.
const (
	SlotMin = 1
	SlotMax = 15
)

func wireSlot(slot int) (byte, error) {
	if slot < SlotMin || slot > SlotMax {
		return 0, &SlotRangeError{Slot: slot}
	}
	return byte(slot - 1), nil
}

// ReadMode fetches the custom mode stored in slot. The unit answers one
// request with every page of the mode; pages must arrive in index order
// exactly once each.
//
// Example:
//
//	mode, err := dev.ReadMode(ctx, 2)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(mode.Name)
func (d *Device) ReadMode(ctx context.Context, slot int) (*custommode.Mode, error) {
	ws, err := wireSlot(slot)
	if err != nil {
		return nil, err
	}
	if err := d.claimTransfer(); err != nil {
		return nil, err
	}
	defer d.releaseTransfer()

	d.drainFrames()
	if err := d.port.Send(sysex.BuildModeReadRequest(0, ws)); err != nil {
		return nil, &TransferError{Slot: slot, Page: -1, Reason: "send read request", Cause: err}
	}
	d.log.Debug().Int("slot", slot).Msg("read request sent")

	var pages [][]byte
	total := -1
	for next := 0; total < 0 || next < total; next++ {
		page, err := d.awaitReadPage(ctx, slot, next, ws)
		if err != nil {
			return nil, err
		}

		count := int(page.PageCount)
		if count < 1 || count > sysex.PageCountMax {
			return nil, &TransferError{
				Slot: slot, Page: next,
				Reason: fmt.Sprintf("page count %d outside 1..%d", count, sysex.PageCountMax),
			}
		}
		if total < 0 {
			total = count
		} else if count != total {
			return nil, &TransferError{
				Slot: slot, Page: next,
				Reason: fmt.Sprintf("page count changed from %d to %d", total, count),
			}
		}
		pages = append(pages, page.Data)
	}

	mode, err := custommode.DecodeReadPayload(custommode.JoinPages(pages))
	if err != nil {
		return nil, fmt.Errorf("slot %d: %w", slot, err)
	}
	if mode.DefaultName {
		mode.Name = fmt.Sprintf("Custom %d", slot)
	}
	now := time.Now()
	mode.CreatedAt = now
	mode.ModifiedAt = now

	d.log.Info().Int("slot", slot).Int("pages", total).Str("name", mode.Name).Msg("mode read")
	return mode, nil
}

// awaitReadPage returns the next reply page, skipping unrelated traffic.
// A reply for the wrong slot, a duplicate index, or an index out of order
// ends the transfer.
func (d *Device) awaitReadPage(ctx context.Context, slot, next int, ws byte) (sysex.ModePage, error) {
	for {
		raw, err := d.nextFrame(ctx, d.config.PageTimeout, "mode page")
		if err != nil {
			if ctx.Err() != nil {
				return sysex.ModePage{}, ctx.Err()
			}
			return sysex.ModePage{}, &TransferError{Slot: slot, Page: next, Reason: "awaiting page", Cause: err}
		}

		if cmd, cerr := sysex.ModeCommand(raw); cerr != nil || cmd != sysex.CmdModeReadReply {
			d.log.Debug().Msg("skipping unrelated frame during read")
			continue
		}
		page, err := sysex.ParseModeReadReply(raw)
		if err != nil {
			return sysex.ModePage{}, &TransferError{Slot: slot, Page: next, Reason: "malformed page", Cause: err}
		}
		if page.Slot != ws {
			return sysex.ModePage{}, &TransferError{
				Slot: slot, Page: next,
				Reason: fmt.Sprintf("page addressed to wire slot %d, want %d", page.Slot, ws),
			}
		}
		if int(page.Page) != next {
			return sysex.ModePage{}, &TransferError{
				Slot: slot, Page: next,
				Reason: fmt.Sprintf("page %d arrived, want %d", page.Page, next),
			}
		}
		return page, nil
	}
}

// WriteMode stores a custom mode into slot, one acknowledged page at a
// time. Each page is retried a fixed number of times on a missing or
// failed ack before the transfer gives up; nothing is reported written
// until every page is acknowledged.
//
// Example:
//
//	mode := custommode.NewMode("BASS RIG")
//	if err := dev.WriteMode(ctx, 2, mode); err != nil {
//	    return err
//	}
func (d *Device) WriteMode(ctx context.Context, slot int, m *custommode.Mode) error {
	ws, err := wireSlot(slot)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("mode cannot be nil")
	}

	payload, err := custommode.EncodeWritePayload(m)
	if err != nil {
		return err
	}
	pages, err := custommode.SplitPages(payload)
	if err != nil {
		return err
	}

	if err := d.claimTransfer(); err != nil {
		return err
	}
	defer d.releaseTransfer()
	d.drainFrames()

	count := byte(len(pages))
	for i, data := range pages {
		page := sysex.ModePage{Page: byte(i), Slot: ws, PageCount: count, Data: data}
		if err := d.writePage(ctx, slot, page); err != nil {
			return err
		}
	}

	d.log.Info().Int("slot", slot).Int("pages", len(pages)).Str("name", m.Name).Msg("mode written")
	return nil
}

// writePage sends one page until the unit acknowledges it or the retry
// budget runs out.
func (d *Device) writePage(ctx context.Context, slot int, page sysex.ModePage) error {
	frame := sysex.BuildModeWritePage(page)

	var lastErr error
	for attempt := 0; attempt <= d.config.WriteRetries; attempt++ {
		if attempt > 0 {
			d.log.Debug().Int("page", int(page.Page)).Int("attempt", attempt).Msg("resending page")
			d.drainFrames()
		}

		if err := d.port.Send(frame); err != nil {
			return &TransferError{Slot: slot, Page: int(page.Page), Reason: "send page", Cause: err}
		}

		ackPage, status, err := d.awaitWriteAck(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}
		if ackPage != page.Page {
			lastErr = fmt.Errorf("ack for page %d, want %d", ackPage, page.Page)
			continue
		}
		if status != sysex.WriteStatusOK {
			lastErr = fmt.Errorf("status 0x%02X, want 0x%02X", status, sysex.WriteStatusOK)
			continue
		}
		return nil
	}

	return &TransferError{Slot: slot, Page: int(page.Page), Reason: "page not acknowledged", Cause: lastErr}
}

// awaitWriteAck returns the next write ack, skipping unrelated traffic.
func (d *Device) awaitWriteAck(ctx context.Context) (ackPage, status byte, err error) {
	for {
		raw, err := d.nextFrame(ctx, d.config.PageTimeout, "write ack")
		if err != nil {
			return 0, 0, err
		}
		if cmd, cerr := sysex.ModeCommand(raw); cerr != nil || cmd != sysex.CmdModeWriteAck {
			d.log.Debug().Msg("skipping unrelated frame during write")
			continue
		}
		return sysex.ParseWriteAck(raw)
	}
}
