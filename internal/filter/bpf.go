package filter

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"firestige.xyz/spptrace/internal/core"
	"firestige.xyz/spptrace/internal/core/decoder"
	"golang.org/x/net/bpf"
)

// ParseProgram reads a classic BPF program in the decimal form printed by
// `tcpdump -ddd`: an instruction count followed by one "code jt jf k" line
// per instruction. Commas may separate instructions instead of newlines.
func ParseProgram(text string) ([]bpf.RawInstruction, error) {
	text = strings.ReplaceAll(text, ",", "\n")
	sc := bufio.NewScanner(strings.NewReader(text))

	var lines []string
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" && !strings.HasPrefix(l, "#") {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty BPF program", core.ErrConfigInvalid)
	}

	n, err := strconv.Atoi(lines[0])
	if err != nil {
		return nil, fmt.Errorf("%w: BPF instruction count %q", core.ErrConfigInvalid, lines[0])
	}
	if n != len(lines)-1 {
		return nil, fmt.Errorf("%w: BPF program declares %d instructions, has %d", core.ErrConfigInvalid, n, len(lines)-1)
	}

	raw := make([]bpf.RawInstruction, 0, n)
	for i, l := range lines[1:] {
		f := strings.Fields(l)
		if len(f) != 4 {
			return nil, fmt.Errorf("%w: BPF instruction %d: want 4 fields, got %q", core.ErrConfigInvalid, i, l)
		}
		var v [4]uint64
		for j, s := range f {
			if v[j], err = strconv.ParseUint(s, 10, 32); err != nil {
				return nil, fmt.Errorf("%w: BPF instruction %d: %v", core.ErrConfigInvalid, i, err)
			}
		}
		if v[1] > 0xFF || v[2] > 0xFF || v[0] > 0xFFFF {
			return nil, fmt.Errorf("%w: BPF instruction %d out of range", core.ErrConfigInvalid, i)
		}
		raw = append(raw, bpf.RawInstruction{Op: uint16(v[0]), Jt: uint8(v[1]), Jf: uint8(v[2]), K: uint32(v[3])})
	}
	return raw, nil
}

// BPFFilter runs a classic BPF program over each frame rendered as
// LINKTYPE_BLUETOOTH_HCI_H4_WITH_PHDR, so programs compiled with
// `tcpdump -y BLUETOOTH_HCI_H4_WITH_PHDR -ddd` apply unchanged.
type BPFFilter struct {
	vm *bpf.VM
}

// NewBPFFilter builds a filter from a `tcpdump -ddd` program.
func NewBPFFilter(program string) (*BPFFilter, error) {
	raw, err := ParseProgram(program)
	if err != nil {
		return nil, err
	}
	insts, ok := bpf.Disassemble(raw)
	if !ok {
		return nil, fmt.Errorf("%w: BPF program has undecodable instructions", core.ErrConfigInvalid)
	}
	vm, err := bpf.NewVM(insts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}
	return &BPFFilter{vm: vm}, nil
}

func (f *BPFFilter) Filter(frame *core.LinkFrame, chain *FilterChain) {
	pkt, ok := decoder.EncodeH4(*frame)
	if !ok {
		return
	}
	n, err := f.vm.Run(pkt)
	if err == nil && n > 0 {
		chain.Filter(frame)
	}
}
