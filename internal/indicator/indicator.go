package indicator

import (
	"fmt"
	"log"

	"github.com/warthog618/go-gpiocdev"
)

// Indicator mirrors the low-power flag onto a GPIO line, for boards
// that route a status LED to one. Purely cosmetic: failures are the
// caller's to log and never affect policy.
type Indicator struct {
	logger *log.Logger
	chip   *gpiocdev.Chip
	line   *gpiocdev.Line
	dryRun bool
}

// New opens the chip and requests the line as an output, initially low.
func New(logger *log.Logger, chipName string, offset int, dryRun bool) (*Indicator, error) {
	ind := &Indicator{logger: logger, dryRun: dryRun}

	if !dryRun {
		chip, err := gpiocdev.NewChip(chipName)
		if err != nil {
			return nil, fmt.Errorf("failed to open GPIO chip %s: %w", chipName, err)
		}

		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
		if err != nil {
			chip.Close()
			return nil, fmt.Errorf("failed to request indicator GPIO %d: %w", offset, err)
		}

		ind.chip = chip
		ind.line = line
	}

	return ind, nil
}

// Set drives the line high while low-power mode is active.
func (i *Indicator) Set(lowPower bool) error {
	value := 0
	if lowPower {
		value = 1
	}

	if i.dryRun {
		i.logger.Printf("DRY RUN: Would set low-power indicator to %d", value)
		return nil
	}

	if err := i.line.SetValue(value); err != nil {
		return fmt.Errorf("failed to set indicator GPIO: %w", err)
	}
	return nil
}

// Close releases the line and chip.
func (i *Indicator) Close() error {
	if i.dryRun {
		return nil
	}

	var lastErr error
	if err := i.line.Close(); err != nil {
		i.logger.Printf("Failed to close indicator GPIO line: %v", err)
		lastErr = err
	}
	if err := i.chip.Close(); err != nil {
		i.logger.Printf("Failed to close GPIO chip: %v", err)
		lastErr = err
	}
	return lastErr
}
