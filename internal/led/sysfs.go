package led

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

const sysfsLEDPath = "/sys/class/leds"

// blinkPeriodMs is the on and off time of the timer trigger.
const blinkPeriodMs = "250"

// sysfs implements Controller using Linux sysfs LED interface
type sysfs struct {
	root string
	leds map[string]string // LED type -> sysfs name mapping
}

func newSysfs(root string, leds map[string]string) *sysfs {
	return &sysfs{
		root: root,
		leds: leds,
	}
}

// Set controls an LED's state and optional pattern. A disabled LED always
// ends with trigger none and brightness 0.
func (s *sysfs) Set(ledType string, enabled bool, pattern string) error {
	sysfsName, ok := s.leds[ledType]
	if !ok {
		return fmt.Errorf("LED type %q not supported on this board", ledType)
	}

	ledPath := filepath.Join(s.root, sysfsName)
	if _, err := os.Stat(ledPath); os.IsNotExist(err) {
		return fmt.Errorf("LED %q not found at %s", ledType, ledPath)
	}

	if !enabled {
		if err := s.write(ledPath, "trigger", "none"); err != nil {
			return err
		}
		return s.write(ledPath, "brightness", "0")
	}

	switch pattern {
	case "":
	case PatternSolid:
		if err := s.write(ledPath, "trigger", "none"); err != nil {
			return err
		}
	case PatternBlink:
		if err := s.write(ledPath, "trigger", "timer"); err != nil {
			return err
		}
		// delay_on/delay_off appear once the timer trigger is active
		if err := s.write(ledPath, "delay_on", blinkPeriodMs); err != nil {
			return err
		}
		if err := s.write(ledPath, "delay_off", blinkPeriodMs); err != nil {
			return err
		}
		return nil
	case PatternHeartbeat:
		return s.write(ledPath, "trigger", "heartbeat")
	default:
		return fmt.Errorf("LED pattern %q not supported", pattern)
	}

	return s.write(ledPath, "brightness", "1")
}

func (s *sysfs) write(ledPath, attr, value string) error {
	if err := os.WriteFile(filepath.Join(ledPath, attr), []byte(value), 0o644); err != nil {
		return fmt.Errorf("failed to set LED %s: %w", attr, err)
	}
	return nil
}

// Available returns the LED types of this board, sorted.
func (s *sysfs) Available() []string {
	types := make([]string, 0, len(s.leds))
	for ledType := range s.leds {
		types = append(types, ledType)
	}
	slices.Sort(types)
	return types
}

func (s *sysfs) Patterns() []string {
	return []string{PatternSolid, PatternBlink, PatternHeartbeat}
}
