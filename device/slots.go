package device

import (
	"context"
	"fmt"
	"time"
)

// Slot exchange on the channel-message pair. The unit reports and accepts
// its active slot as a CC value offset by slotReportBase, and only honours
// the exchange while the note guard is held.
const (
	slotGuardChannel = 15
	slotGuardKey     = 11
	slotController   = 30
	slotReportBase   = 6
	slotSetChannel   = 6
	slotQueryChannel = 7
)

// SelectSlot switches the unit's active custom-mode slot. This rides the
// channel-message pair, not the frame port, and the unit sends no reply.
func (d *Device) SelectSlot(slot int) error {
	ws, err := wireSlot(slot)
	if err != nil {
		return err
	}
	if d.daw == nil {
		return ErrDAWUnavailable
	}

	if err := d.daw.SendNoteOn(slotGuardChannel, slotGuardKey, 127); err != nil {
		return fmt.Errorf("slot guard: %w", err)
	}
	defer d.daw.SendNoteOn(slotGuardChannel, slotGuardKey, 0)

	if err := d.daw.SendControlChange(slotSetChannel, slotController, slotReportBase+ws); err != nil {
		return fmt.Errorf("slot select: %w", err)
	}
	d.log.Debug().Int("slot", slot).Msg("slot selected")
	return nil
}

// ActiveSlot asks the unit which custom-mode slot is active. CC traffic on
// other controllers is ignored while waiting for the report.
func (d *Device) ActiveSlot(ctx context.Context) (int, error) {
	if d.daw == nil {
		return 0, ErrDAWUnavailable
	}

	if err := d.daw.SendNoteOn(slotGuardChannel, slotGuardKey, 127); err != nil {
		return 0, fmt.Errorf("slot guard: %w", err)
	}
	defer d.daw.SendNoteOn(slotGuardChannel, slotGuardKey, 0)

	if err := d.daw.SendControlChange(slotQueryChannel, slotController, 0); err != nil {
		return 0, fmt.Errorf("slot query: %w", err)
	}

	timer := time.NewTimer(d.config.SlotReportTimeout)
	defer timer.Stop()

	for {
		select {
		case cc, ok := <-d.daw.ControlChanges():
			if !ok {
				return 0, ErrClosed
			}
			if cc.Channel != slotSetChannel || cc.Controller != slotController {
				continue
			}
			ws := int(cc.Value) - slotReportBase
			if ws < 0 || ws > SlotMax-SlotMin {
				continue
			}
			return ws + SlotMin, nil
		case <-timer.C:
			return 0, &ProtocolTimeoutError{Phase: "slot report", Window: d.config.SlotReportTimeout}
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
