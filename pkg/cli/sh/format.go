package sh

import (
	"bytes"
	"fmt"

	"github.com/robotalks/max1187x/pkg/driver"
	"github.com/robotalks/max1187x/pkg/fwupdate"
	"github.com/robotalks/max1187x/pkg/mtp"
)

// ReportInfo is the JSON form of a report.
type ReportInfo struct {
	ID    uint16   `json:"id"`
	Words []uint16 `json:"words"`
}

// ChipInfo is the JSON form of chip data.
type ChipInfo struct {
	Firmware     string    `json:"firmware"`
	ChipID       uint8     `json:"chip_id"`
	ConfigID     uint16    `json:"config_id"`
	CustomerInfo [2]uint16 `json:"customer_info"`
}

// NewChipInfo converts chip data.
func NewChipInfo(chip driver.ChipData) ChipInfo {
	return ChipInfo{
		Firmware:     chip.FirmwareVersion(),
		ChipID:       chip.ChipID,
		ConfigID:     chip.ConfigID,
		CustomerInfo: chip.CustomerInfo,
	}
}

// FormatReport formats the words of a report, eight per line.
func FormatReport(rpt *mtp.Report) string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "report %s (%d words)", idColor(fmt.Sprintf("%04x", rpt.ID())), rpt.Len())
	for i, word := range rpt.Words {
		if i%8 == 0 {
			fmt.Fprintf(&w, "\n%03d:", i)
		}
		s := fmt.Sprintf(" %04x", word)
		if i == 0 {
			s = hdrColor(s)
		}
		w.WriteString(s)
	}
	return w.String()
}

// FormatFirmwareVersion formats the version lines.
func FormatFirmwareVersion(chip driver.ChipData) string {
	return fmt.Sprintf("%s\nChip ID: 0x%02X", chip.FirmwareVersion(), chip.ChipID)
}

// FormatResult formats a firmware update result.
func FormatResult(res *fwupdate.Result) string {
	if res == nil {
		return "no update"
	}
	if !res.Reflashed {
		return fmt.Sprintf("firmware up to date, code CRC %04x", res.ChipCodeCRC)
	}
	return fmt.Sprintf("reprogrammed in %d attempt(s), CRC %04x", res.Attempts, res.ChipCRC)
}
