package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/worldland/gpuctl/internal/domain"
)

// PrintHeader prints a section header
func PrintHeader(w io.Writer, title string) {
	fmt.Fprintf(w, "\n=== %s ===\n", title)
}

// PrintField prints a labeled field
func PrintField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %-14s %s\n", label+":", value)
}

// PrintGPUTable lists the enumerated GPUs with the 1-based numbers the
// operator selects by
func PrintGPUTable(w io.Writer, vendor domain.VendorKind, gpus []domain.GPURecord) {
	PrintHeader(w, fmt.Sprintf("Detected %s GPUs (%d)", vendor, len(gpus)))

	if len(gpus) == 0 {
		fmt.Fprintf(w, "  (no %s GPUs detected)\n", vendor)
		return
	}

	table := tablewriter.NewWriter(w)
	setBorderlessTable(table)

	if vendor == domain.VendorAMD {
		table.SetHeader([]string{"#", "Name", "Card", "Bus ID"})
		for i, g := range gpus {
			table.Append([]string{strconv.Itoa(i + 1), orDash(g.Name), orDash(g.Card), orDash(g.BusID)})
		}
	} else {
		table.SetHeader([]string{"#", "Name", "Max Power", "Power Draw", "Bus ID"})
		for i, g := range gpus {
			table.Append([]string{
				strconv.Itoa(i + 1),
				orDash(g.Name),
				formatWatts(g.MaxPowerWatts),
				formatWatts(g.CurrentPowerWatts),
				orDash(g.BusID),
			})
		}
	}
	table.Render()
}

// PrintOutcome reports per-setting results of one apply
func PrintOutcome(w io.Writer, out domain.ApplyOutcome) {
	PrintHeader(w, "Apply "+out.GPU.Name)
	PrintField(w, "Power limit", describe(out.Power, "W"))
	PrintField(w, "Clock limit", describe(out.Clock, " MHz"))

	switch {
	case out.Err != nil:
		PrintError(w, out.Err.Error())
	case out.Applied():
		PrintSuccess(w, fmt.Sprintf("Settings applied successfully for %s!", out.GPU.Name))
	default:
		PrintSuccess(w, fmt.Sprintf("Nothing requested for %s; left unchanged.", out.GPU.Name))
	}
}

// Report is the machine-readable form of one invocation (--json)
type Report struct {
	Vendor  domain.VendorKind  `json:"vendor"`
	GPUs    []domain.GPURecord `json:"gpus"`
	Outcome *Outcome           `json:"outcome,omitempty"`
}

// Outcome is the machine-readable form of an ApplyOutcome
type Outcome struct {
	GPU     domain.GPURecord     `json:"gpu"`
	Power   domain.SettingResult `json:"power"`
	Clock   domain.SettingResult `json:"clock"`
	Applied bool                 `json:"applied"`
	Error   string               `json:"error,omitempty"`
}

// NewOutcome converts an apply outcome for JSON output
func NewOutcome(out domain.ApplyOutcome) *Outcome {
	o := &Outcome{GPU: out.GPU, Power: out.Power, Clock: out.Clock, Applied: out.Applied()}
	if out.Err != nil {
		o.Error = out.Err.Error()
	}
	return o
}

// PrintJSON writes r as indented JSON
func PrintJSON(w io.Writer, r Report) error {
	if r.GPUs == nil {
		r.GPUs = []domain.GPURecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, message string) {
	fmt.Fprintf(w, "\n%s\n", message)
}

// PrintError prints an error message
func PrintError(w io.Writer, message string) {
	fmt.Fprintf(w, "\nError: %s\n", message)
}

func describe(r domain.SettingResult, unit string) string {
	if r.Status == domain.StatusNotRequested {
		return string(r.Status)
	}
	return fmt.Sprintf("%s%s %s", strconv.FormatFloat(r.Value, 'f', -1, 64), unit, r.Status)
}

func formatWatts(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64) + " W"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func setBorderlessTable(table *tablewriter.Table) {
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetHeaderLine(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetNoWhiteSpace(true)
}
