package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/gwillem/droid/pkg/droid"
	"github.com/gwillem/droid/pkg/feetechbus"
)

type SetupCommand struct {
	I2CBus string `long:"i2c" description:"I²C bus for the antenna controller, e.g. /dev/i2c-1"`
}

type servoPort struct {
	port   string
	servos []feetech.FoundServo
}

func (c *SetupCommand) Execute(args []string) error {
	logger, err := newLogger(opts.Verbose)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	fmt.Println(headerStyle.Render("Droid Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━"))
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("Scanning for the head servo bus...")
	fmt.Println()
	found := findServoPorts(logger, cfg.Servos)

	switch len(found) {
	case 0:
		fmt.Println("No servo bus found. Servos will be simulated.")
		fmt.Println(dimStyle.Render("Make sure the head is connected and powered on."))
		cfg.ServoPort = ""
	case 1:
		cfg.ServoPort = found[0].port
	default:
		port, ok := choosePort(found)
		if !ok {
			return nil
		}
		cfg.ServoPort = port
	}

	if c.I2CBus != "" {
		cfg.I2CBus = c.I2CBus
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	path := configPath()
	if err := cfg.SaveTo(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("  Servo bus: %s\n", describe(cfg.ServoPort))
	fmt.Printf("  I²C bus:   %s\n", describe(cfg.I2CBus))
	fmt.Printf("Configuration saved to %s\n", path)
	fmt.Println()
	fmt.Println("Run the self-test with: " + headerStyle.Render("droid selftest"))
	return nil
}

func findServoPorts(logger *zap.Logger, servos droid.ServoConfigs) []servoPort {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing ports: %v\n", err)
		return nil
	}

	lo, hi := idRange(servos)
	var found []servoPort
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		bus, err := feetechbus.Open(logger, port)
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		res, err := bus.Scan(ctx, lo, hi)
		cancel()
		bus.Close()
		if err != nil {
			continue
		}

		if hasRequired(res, servos) {
			fmt.Printf("  Found %d servo(s) on %s\n", len(res), port)
			found = append(found, servoPort{port: port, servos: res})
		}
	}
	return found
}

func idRange(servos droid.ServoConfigs) (lo, hi int) {
	for i, id := range servos.IDs() {
		if i == 0 || id < lo {
			lo = id
		}
		if id > hi {
			hi = id
		}
	}
	return lo, hi
}

// hasRequired reports whether every required servo answered.
func hasRequired(found []feetech.FoundServo, servos droid.ServoConfigs) bool {
	ids := make(map[int]bool, len(found))
	for _, s := range found {
		ids[s.ID] = true
	}
	for _, sc := range servos {
		if sc.Required && !ids[sc.ID] {
			return false
		}
	}
	return len(found) > 0
}

func choosePort(found []servoPort) (string, bool) {
	options := make([]huh.Option[string], 0, len(found))
	for _, f := range found {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%d servos)", f.port, len(f.servos)), f.port))
	}

	var port string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which port is the head servo bus?").
				Options(options...).
				Value(&port),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		return "", false
	}
	return port, true
}
