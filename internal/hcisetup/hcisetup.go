// Package hcisetup provides the startup perform/action pair a protocol
// uses to bring the HCI transport up and configure the device's public
// address, plus the reset-reason vocabulary reported on the first
// HAL-initialized event after a reset.
//
// Grounded on HCI.cpp/HCI.h's start_HCI, set_public_MAC_addr,
// set_MAC_addr_action, and the RESET_* switch in
// display_initialization_or_reset.
package hcisetup

import (
	"fmt"
	"log/slog"

	"github.com/dohiam/BLE-protocols/internal/bleevent"
)

// ResetReason is the byte reported in a HAL-initialized event's
// reason_code field, read via bleevent.Packet.ResetReason.
type ResetReason byte

const (
	ResetNormal         ResetReason = 1
	ResetUpdaterACI     ResetReason = 2
	ResetUpdaterBadFlag ResetReason = 3
	ResetUpdaterPin     ResetReason = 4
	ResetWatchdog       ResetReason = 5
	ResetLockup         ResetReason = 6
	ResetBrownout       ResetReason = 7
	ResetCrash          ResetReason = 8
	ResetECCError       ResetReason = 9
)

// String renders the reason code the way display_initialization_or_reset's
// switch does, one line per case.
func (r ResetReason) String() string {
	switch r {
	case ResetNormal:
		return "normal startup"
	case ResetUpdaterACI:
		return "updater mode entered with ACI command"
	case ResetUpdaterBadFlag:
		return "updater mode entered due to a bad BLUE flag"
	case ResetUpdaterPin:
		return "updater mode entered with IRQ pin"
	case ResetWatchdog:
		return "reset caused by watchdog"
	case ResetLockup:
		return "reset due to lockup"
	case ResetBrownout:
		return "brownout reset"
	case ResetCrash:
		return "reset caused by a crash (NMI or hard fault)"
	case ResetECCError:
		return "reset caused by an ECC error"
	default:
		return fmt.Sprintf("unknown reset reason 0x%02X", byte(r))
	}
}

// IsError reports whether the reason indicates an abnormal reset,
// matching which cases display_initialization_or_reset logs at the
// error level rather than the informational one.
func (r ResetReason) IsError() bool {
	switch r {
	case ResetNormal, ResetUpdaterACI, ResetUpdaterPin:
		return false
	default:
		return true
	}
}

// DefaultDeviceName mirrors OUR_DEVICE_NAME.
const DefaultDeviceName = "BlueNRG-MS"

// MACAddr is a 6-byte public Bluetooth device address.
type MACAddr [6]byte

// DefaultMACAddr mirrors OUR_MAC_ADDR.
var DefaultMACAddr = MACAddr{0x12, 0x34, 0x00, 0xE1, 0x80, 0x02}

// Transport abstracts the host's HCI bring-up calls (HCI_Init,
// BNRG_SPI_Init, BlueNRG_RST, aci_hal_write_config_data in the
// original), so this package stays testable without real hardware.
type Transport interface {
	Init() error
	Reset() error
	WritePublicAddr(addr MACAddr) error
}

// Setup drives transport bring-up and public address configuration, in
// the shape a protocol's perform/action pair expects.
type Setup struct {
	transport  Transport
	deviceName string
	addr       MACAddr
	logger     *slog.Logger
}

// New creates a Setup over transport, using the default device name
// and MAC address unless overridden with WithDeviceName/WithMACAddr.
func New(transport Transport, logger *slog.Logger) *Setup {
	if logger == nil {
		logger = slog.Default()
	}
	return &Setup{transport: transport, deviceName: DefaultDeviceName, addr: DefaultMACAddr, logger: logger}
}

// WithDeviceName overrides the advertised device name.
func (s *Setup) WithDeviceName(name string) *Setup {
	s.deviceName = name
	return s
}

// WithMACAddr overrides the public address written on StartHCI.
func (s *Setup) WithMACAddr(addr MACAddr) *Setup {
	s.addr = addr
	return s
}

// DeviceName returns the configured device name, the analog of
// get_device_name.
func (s *Setup) DeviceName() string { return s.deviceName }

// StartHCI is the perform action for a protocol's first step: bring up
// the transport. Grounded on start_HCI.
func (s *Setup) StartHCI(any) bool {
	if err := s.transport.Init(); err != nil {
		s.logger.Error("HCI init failed", "error", err)
		return false
	}
	if err := s.transport.Reset(); err != nil {
		s.logger.Error("HCI reset failed", "error", err)
		return false
	}
	return true
}

// SetMACAddrAction is the rule action to run once the reset reason is
// observed to be a normal startup: write the configured public
// address. Grounded on set_MAC_addr_action/set_public_MAC_addr.
func (s *Setup) SetMACAddrAction(p *bleevent.Packet, arg any) bool {
	if err := s.transport.WritePublicAddr(s.addr); err != nil {
		s.logger.Error("setting public address failed", "error", err)
		return false
	}
	s.logger.Info("public address set", "addr", fmt.Sprintf("%X", s.addr))
	return true
}

// LogResetReason is a convenience action that logs the reset reason
// found in p at the appropriate level, the analog of the switch inside
// display_initialization_or_reset.
func (s *Setup) LogResetReason(p *bleevent.Packet, arg any) bool {
	reason, ok := p.ResetReason()
	if !ok {
		return false
	}
	r := ResetReason(reason)
	if r.IsError() {
		s.logger.Error("abnormal reset", "reason", r.String())
	} else {
		s.logger.Info("HAL initialized or reset", "reason", r.String())
	}
	return true
}
