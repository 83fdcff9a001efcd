package codegen

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
)

// machine interprets the subset of 8086 assembly the i8086 backend emits.
// Runtime routines are stubbed: printing appends to out, rt_strcmp compares
// the '$'-terminated strings at SI and DI.
type machine struct {
	regs    map[string]uint16
	mem     [1 << 16]byte
	code    [][]string
	labels  map[string]int
	data    map[string]uint16
	cmpL    int16
	cmpR    int16
	out     strings.Builder
	steps   int
	dataTop uint16
}

const haltAddr = 0xFFFF

func newMachine(t *testing.T, asm string) *machine {
	t.Helper()
	m := &machine{
		regs:    map[string]uint16{"ax": 0, "bx": 0, "cx": 0, "dx": 0, "si": 0, "di": 0, "bp": 0, "sp": 0xFFF0},
		labels:  make(map[string]int),
		data:    make(map[string]uint16),
		dataTop: 0x1000,
	}
	inData := false
	for _, raw := range strings.Split(asm, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "" || strings.HasPrefix(line, "bits ") || strings.HasPrefix(line, "cpu ") ||
			strings.HasPrefix(line, "extern ") || strings.HasPrefix(line, "global "):
			continue
		case line == "section .text":
			inData = false
			continue
		case line == "section .data":
			inData = true
			continue
		}
		if inData {
			m.addData(t, line)
			continue
		}
		if strings.HasSuffix(line, ":") {
			m.labels[strings.TrimSuffix(line, ":")] = len(m.code)
			continue
		}
		mnemonic, operands, _ := strings.Cut(line, " ")
		ins := []string{mnemonic}
		if operands != "" {
			for _, op := range strings.Split(operands, ",") {
				ins = append(ins, strings.TrimSpace(op))
			}
		}
		m.code = append(m.code, ins)
	}
	return m
}

func (m *machine) addData(t *testing.T, line string) {
	t.Helper()
	label, rest, _ := strings.Cut(line, ":")
	m.data[label] = m.dataTop
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return
	}
	if !strings.HasPrefix(rest, "db ") {
		t.Fatalf("unexpected data line %q", line)
	}
	for _, b := range decodeDB(t, strings.TrimPrefix(rest, "db ")) {
		m.mem[m.dataTop] = b
		m.dataTop++
	}
}

// decodeDB parses NASM db operands: quoted runs and decimal bytes.
func decodeDB(t *testing.T, s string) []byte {
	t.Helper()
	var out []byte
	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c == ' ' || c == ',':
			i++
		case c == '\'':
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				t.Fatalf("unterminated quote in %q", s)
			}
			out = append(out, s[i+1:i+1+end]...)
			i += end + 2
		default:
			j := i
			for j < len(s) && s[j] != ',' {
				j++
			}
			n, err := strconv.Atoi(strings.TrimSpace(s[i:j]))
			if err != nil {
				t.Fatalf("bad db operand %q", s[i:j])
			}
			out = append(out, byte(n))
			i = j
		}
	}
	return out
}

func (m *machine) word(addr uint16) uint16 {
	return uint16(m.mem[addr]) | uint16(m.mem[addr+1])<<8
}

func (m *machine) setWord(addr, v uint16) {
	m.mem[addr] = byte(v)
	m.mem[addr+1] = byte(v >> 8)
}

func (m *machine) push(v uint16) {
	m.regs["sp"] -= 2
	m.setWord(m.regs["sp"], v)
}

func (m *machine) pop() uint16 {
	v := m.word(m.regs["sp"])
	m.regs["sp"] += 2
	return v
}

// memAddr resolves "[bp-2]" or "[bp+4]".
func (m *machine) memAddr(op string) (uint16, bool) {
	if !strings.HasPrefix(op, "[") || !strings.HasSuffix(op, "]") {
		return 0, false
	}
	inner := op[1 : len(op)-1]
	if !strings.HasPrefix(inner, "bp") {
		panic("unsupported memory operand " + op)
	}
	off, err := strconv.Atoi(inner[2:])
	if err != nil {
		panic("bad memory operand " + op)
	}
	return m.regs["bp"] + uint16(int16(off)), true
}

func (m *machine) read(op string) uint16 {
	if v, ok := m.regs[op]; ok {
		return v
	}
	if addr, ok := m.memAddr(op); ok {
		return m.word(addr)
	}
	if addr, ok := m.data[op]; ok {
		return addr
	}
	n, err := strconv.ParseInt(op, 10, 32)
	if err != nil {
		panic("bad operand " + op)
	}
	return uint16(n)
}

func (m *machine) write(op string, v uint16) {
	if _, ok := m.regs[op]; ok {
		m.regs[op] = v
		return
	}
	if addr, ok := m.memAddr(op); ok {
		m.setWord(addr, v)
		return
	}
	panic("cannot write to " + op)
}

func (m *machine) str(addr uint16) string {
	var sb strings.Builder
	for m.mem[addr] != '$' {
		sb.WriteByte(m.mem[addr])
		addr++
	}
	return sb.String()
}

func (m *machine) runtimeCall(name string) bool {
	switch name {
	case "rt_print_num16":
		fmt.Fprintf(&m.out, "%d\n", int16(m.regs["ax"]))
	case "rt_print_str":
		m.out.WriteString(m.str(m.regs["dx"]))
	case "rt_strcmp":
		a, b := m.str(m.regs["si"]), m.str(m.regs["di"])
		m.regs["ax"] = uint16(int16(strings.Compare(a, b)))
	default:
		return false
	}
	return true
}

func (m *machine) jump(cond bool, label string) (int, bool) {
	if !cond {
		return 0, false
	}
	pc, ok := m.labels[label]
	if !ok {
		panic("undefined label " + label)
	}
	return pc, true
}

// call runs fn until it returns to the halt address and reports AX as a
// signed value.
func (m *machine) call(t *testing.T, fn string) int16 {
	t.Helper()
	pc, ok := m.labels[fn]
	if !ok {
		t.Fatalf("no function %q", fn)
	}
	m.push(haltAddr)

	for {
		if m.steps++; m.steps > 1_000_000 {
			t.Fatalf("step limit exceeded")
		}
		if pc < 0 || pc >= len(m.code) {
			t.Fatalf("pc %d out of range", pc)
		}
		ins := m.code[pc]
		next := pc + 1
		l := int16(m.regs["ax"])

		switch ins[0] {
		case "mov":
			m.write(ins[1], m.read(ins[2]))
		case "push":
			m.push(m.read(ins[1]))
		case "pop":
			m.write(ins[1], m.pop())
		case "add":
			m.write(ins[1], m.read(ins[1])+m.read(ins[2]))
		case "sub":
			m.write(ins[1], m.read(ins[1])-m.read(ins[2]))
		case "xor":
			m.write(ins[1], m.read(ins[1])^m.read(ins[2]))
		case "neg":
			m.write(ins[1], -m.read(ins[1]))
		case "xchg":
			a, b := m.read(ins[1]), m.read(ins[2])
			m.write(ins[1], b)
			m.write(ins[2], a)
		case "imul":
			p := int32(l) * int32(int16(m.read(ins[1])))
			m.regs["ax"], m.regs["dx"] = uint16(p), uint16(p>>16)
		case "cwd":
			m.regs["dx"] = 0
			if l < 0 {
				m.regs["dx"] = 0xFFFF
			}
		case "idiv":
			dividend := int32(uint32(m.regs["dx"])<<16 | uint32(m.regs["ax"]))
			divisor := int32(int16(m.read(ins[1])))
			if divisor == 0 {
				t.Fatalf("division by zero at %v", ins)
			}
			m.regs["ax"], m.regs["dx"] = uint16(dividend/divisor), uint16(dividend%divisor)
		case "cmp":
			m.cmpL, m.cmpR = int16(m.read(ins[1])), int16(m.read(ins[2]))
		case "jmp":
			next, _ = m.jump(true, ins[1])
		case "je", "jne", "jl", "jle", "jg", "jge":
			conds := map[string]bool{
				"je": m.cmpL == m.cmpR, "jne": m.cmpL != m.cmpR,
				"jl": m.cmpL < m.cmpR, "jle": m.cmpL <= m.cmpR,
				"jg": m.cmpL > m.cmpR, "jge": m.cmpL >= m.cmpR,
			}
			if target, taken := m.jump(conds[ins[0]], ins[1]); taken {
				next = target
			}
		case "call":
			if !m.runtimeCall(ins[1]) {
				m.push(uint16(next))
				next, _ = m.jump(true, ins[1])
			}
		case "ret":
			ret := m.pop()
			if ret == haltAddr {
				return int16(m.regs["ax"])
			}
			next = int(ret)
		default:
			t.Fatalf("unsupported instruction %v", ins)
		}
		pc = next
	}
}
