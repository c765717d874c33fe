package sh

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/max1187x/pkg/fwupdate"
	"github.com/robotalks/max1187x/pkg/mtp"
)

func readChip(c *ishell.Context, fn func(s *Shell, info ChipInfo, text string)) {
	s := ShellFrom(c)
	ctx, cancel := s.Context()
	defer cancel()
	chip, err := s.Driver.ReadChipData(ctx)
	if err != nil {
		c.Err(err)
		return
	}
	fn(s, NewChipInfo(chip), FormatFirmwareVersion(chip))
}

// ParseReportArgs parses [ID] [TIMEOUT] of the report command.
func ParseReportArgs(args []string) (id uint16, timeout time.Duration, err error) {
	id, timeout = mtp.AnyReport, DefaultTimeout
	if len(args) > 0 {
		var v uint64
		if v, err = strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 16); err != nil {
			return
		}
		id = uint16(v)
	}
	if len(args) > 1 {
		timeout, err = time.ParseDuration(args[1])
	}
	return
}

var (
	// FwVerCmd reads the firmware version and chip ID.
	FwVerCmd = ishell.Cmd{
		Name: "fw_ver",
		Help: "print firmware version and chip ID",
		Func: func(c *ishell.Context) {
			readChip(c, func(s *Shell, info ChipInfo, text string) {
				s.Print(c, info, text)
			})
		},
	}

	// ChipIDCmd reads the chip ID.
	ChipIDCmd = ishell.Cmd{
		Name: "chip_id",
		Help: "print chip ID",
		Func: func(c *ishell.Context) {
			readChip(c, func(s *Shell, info ChipInfo, text string) {
				s.Print(c, info.ChipID, fmt.Sprintf("0x%02X", info.ChipID))
			})
		},
	}

	// ConfigIDCmd reads the touch configuration ID.
	ConfigIDCmd = ishell.Cmd{
		Name: "config_id",
		Help: "print touch configuration ID",
		Func: func(c *ishell.Context) {
			readChip(c, func(s *Shell, info ChipInfo, text string) {
				s.Print(c, info.ConfigID, fmt.Sprintf("0x%04X", info.ConfigID))
			})
		},
	}

	// CommandCmd sends a raw command.
	CommandCmd = ishell.Cmd{
		Name:    "command",
		Aliases: []string{"cmd"},
		Help:    "HEXWORDS... send a raw command, e.g. command 0020 0001 0002",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			words, err := mtp.ParseWords(strings.Join(c.Args, " "))
			if err != nil {
				c.Err(err)
				return
			}
			if err = s.Driver.SendRawCommand(words); err != nil {
				c.Err(err)
				return
			}
			s.OK(c)
		},
	}

	// ReportCmd waits for a report.
	ReportCmd = ishell.Cmd{
		Name:    "report",
		Aliases: []string{"rpt"},
		Help:    "[ID] [TIMEOUT] wait for a report, any report without ID",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			id, timeout, err := ParseReportArgs(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			ctx, cancel := s.Context()
			defer cancel()
			rpt, err := s.Driver.GetReport(ctx, id, timeout)
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, ReportInfo{ID: rpt.ID(), Words: rpt.Words}, FormatReport(rpt))
		},
	}

	// FwUpdateCmd validates and updates the firmware.
	FwUpdateCmd = ishell.Cmd{
		Name: "fw_update",
		Help: "[force] validate firmware against the catalog and reprogram",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			force := len(c.Args) > 0 && c.Args[0] == "force"
			s.Driver.FlashProgress = func(p fwupdate.Progress) {
				if !s.OutputJSON {
					c.Printf("%s %d\n", p.Phase, p.Attempt)
				}
			}
			defer func() { s.Driver.FlashProgress = nil }()
			res, err := s.Driver.ValidateFirmware(context.Background(), force)
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, res, FormatResult(res))
		},
	}

	// PORCmd power cycles the device.
	PORCmd = ishell.Cmd{
		Name: "por",
		Help: "power on reset",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if err := s.Driver.PowerOnReset(); err != nil {
				c.Err(err)
				return
			}
			s.OK(c)
		},
	}

	// SResetCmd resets the firmware.
	SResetCmd = ishell.Cmd{
		Name: "sreset",
		Help: "soft reset",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			ctx, cancel := s.Context()
			defer cancel()
			if err := s.Driver.SoftReset(ctx); err != nil {
				c.Err(err)
				return
			}
			s.OK(c)
		},
	}

	// I2CResetCmd makes the device leave the bootloader.
	I2CResetCmd = ishell.Cmd{
		Name: "i2c_reset",
		Help: "exit bootloader",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if err := s.Driver.BootloaderReset(); err != nil {
				c.Err(err)
				return
			}
			s.OK(c)
		},
	}

	// IRQCountCmd prints or resets the interrupt counter.
	IRQCountCmd = ishell.Cmd{
		Name: "irq_count",
		Help: "[reset] print or reset the interrupt counter",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 && c.Args[0] == "reset" {
				s.Driver.ResetIRQCount()
				s.OK(c)
				return
			}
			n := s.Driver.IRQCount()
			s.Print(c, n, strconv.FormatUint(n, 10))
		},
	}

	// ScreenCmd suspends or resumes the device.
	ScreenCmd = ishell.Cmd{
		Name: "screen",
		Help: "[on|off] print or set screen state",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) == 0 {
				on := !s.Driver.Suspended()
				s.Print(c, on, map[bool]string{true: "on", false: "off"}[on])
				return
			}
			var on bool
			switch c.Args[0] {
			case "on", "1":
				on = true
			case "off", "0":
			default:
				errorf(c, "invalid screen state %q", c.Args[0])
				return
			}
			if err := s.Driver.SetScreen(on); err != nil {
				c.Err(err)
				return
			}
			s.OK(c)
		},
	}
)

func init() {
	AddCmds(
		&FwVerCmd,
		&ChipIDCmd,
		&ConfigIDCmd,
		&CommandCmd,
		&ReportCmd,
		&FwUpdateCmd,
		&PORCmd,
		&SResetCmd,
		&I2CResetCmd,
		&IRQCountCmd,
		&ScreenCmd,
	)
}
