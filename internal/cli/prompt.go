package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/worldland/gpuctl/internal/domain"
)

// Prompt is the interactive selector: it shows the GPU list and reads a
// 1-based choice plus two optional limits, one line each.
type Prompt struct {
	in     *bufio.Reader
	out    io.Writer
	vendor domain.VendorKind
}

// NewPrompt creates a prompt reading from in and writing to out
func NewPrompt(in io.Reader, out io.Writer, vendor domain.VendorKind) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out, vendor: vendor}
}

// SetVendor changes the vendor named in the GPU list header
func (p *Prompt) SetVendor(v domain.VendorKind) {
	p.vendor = v
}

// Select implements domain.Selector. A choice outside [1, len(gpus)] is
// rejected before any limit is asked for; a blank limit line means the
// setting is left unchanged.
func (p *Prompt) Select(ctx context.Context, gpus []domain.GPURecord) (domain.Selection, error) {
	PrintGPUTable(p.out, p.vendor, gpus)

	choice, err := p.ask(ctx, "\nEnter the number of the GPU to adjust: ")
	if err != nil {
		return domain.Selection{}, err
	}
	index, err := strconv.Atoi(choice)
	if err != nil {
		return domain.Selection{}, fmt.Errorf("%w: %q is not a GPU number", domain.ErrSelectionInvalid, choice)
	}
	if index < 1 || index > len(gpus) {
		return domain.Selection{}, fmt.Errorf("%w: index %d not in [1, %d]", domain.ErrSelectionInvalid, index, len(gpus))
	}

	power, err := p.askLimit(ctx, "Enter power limit (W): ")
	if err != nil {
		return domain.Selection{}, err
	}
	clock, err := p.askLimit(ctx, "Enter clock limit (MHz): ")
	if err != nil {
		return domain.Selection{}, err
	}

	return domain.Selection{
		Index:  index,
		Limits: domain.LimitRequest{PowerLimitWatts: power, ClockLimitMHz: clock},
	}, nil
}

func (p *Prompt) askLimit(ctx context.Context, question string) (*float64, error) {
	answer, err := p.ask(ctx, question)
	if err != nil {
		return nil, err
	}
	return ParseLimit(answer)
}

func (p *Prompt) ask(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, question)

	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: input closed", domain.ErrSelectionInvalid)
		}
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// ParseLimit turns operator text into an optional limit. Blank is unset.
func ParseLimit(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a number", domain.ErrSelectionInvalid, s)
	}
	return &v, nil
}

// FlagSelector answers the selection from command-line flags so that no
// operator is needed
type FlagSelector struct {
	Index  int
	Limits domain.LimitRequest
}

// Select implements domain.Selector
func (f FlagSelector) Select(ctx context.Context, gpus []domain.GPURecord) (domain.Selection, error) {
	if f.Index == 0 {
		return domain.Selection{}, fmt.Errorf("%w: --gpu is required with --power or --clock", domain.ErrSelectionInvalid)
	}
	return domain.Selection{Index: f.Index, Limits: f.Limits}, nil
}

// Compile-time interface checks
var (
	_ domain.Selector = (*Prompt)(nil)
	_ domain.Selector = FlagSelector{}
)
