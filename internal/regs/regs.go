// Package regs is the static model of the trace unit registers: where each
// register lives for every access path, and the named bitfields inside it.
package regs

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"etmcfg/internal/common"
	"etmcfg/internal/etmdef"
)

//go:embed registers.yaml
var rawTable []byte

// Selector is the system register encoding (op0, op1, CRn, CRm, op2).
type Selector struct {
	Op0, Op1, CRn, CRm, Op2 uint8
}

func (s Selector) String() string {
	return fmt.Sprintf("S%d_%d_C%d_C%d_%d", s.Op0, s.Op1, s.CRn, s.CRm, s.Op2)
}

// Field is a named bit range of a register.
type Field struct {
	Name    string
	Msb     uint
	Lsb     uint
	AliasOf string
	Desc    string
	Values  map[uint64]string
}

func (f Field) Width() uint   { return f.Msb - f.Lsb + 1 }
func (f Field) Shift() uint   { return f.Lsb }
func (f Field) Mask() uint64  { return etmdef.BitMask(int(f.Width())) << f.Lsb }
func (f Field) Max() uint64   { return etmdef.BitMask(int(f.Width())) }
func (f Field) IsAlias() bool { return f.AliasOf != "" }

// Extract returns the field value held in a register value.
func (f Field) Extract(reg uint64) uint64 {
	return (reg & f.Mask()) >> f.Lsb
}

// Insert returns reg with the field replaced by fv. Bits of fv beyond the
// field width are dropped.
func (f Field) Insert(reg, fv uint64) uint64 {
	return (reg &^ f.Mask()) | ((fv << f.Lsb) & f.Mask())
}

// Place shifts fv into field position without touching other bits.
func (f Field) Place(fv uint64) uint64 {
	return (fv << f.Lsb) & f.Mask()
}

// Meaning returns the documented meaning of a field value, if the model has one.
func (f Field) Meaning(fv uint64) string {
	return f.Values[fv]
}

// Register is one logical trace unit register. Indexed register families
// are expanded into one Register per index at load time.
type Register struct {
	Name      string
	Base      string
	Index     int
	Desc      string
	Access    etmdef.Access
	Offset    uint32
	HasOffset bool
	Sys       Selector
	HasSys    bool
	Fields    []Field
}

// Indexed reports whether the register is one member of an indexed family.
func (r *Register) Indexed() bool { return r.Index >= 0 }

// Field looks up a named field. Names compare case-insensitively.
func (r *Register) Field(name string) (Field, error) {
	for _, f := range r.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, nil
		}
	}
	return Field{}, common.Errorf(etmdef.ErrConfig, "undefined bitfield %s.%s", r.Name, name)
}

// MustField is Field for names known to exist in the embedded table.
func (r *Register) MustField(name string) Field {
	f, err := r.Field(name)
	if err != nil {
		panic(err)
	}
	return f
}

// FieldValue is one decoded field of a register value.
type FieldValue struct {
	Name    string
	Value   uint64
	Meaning string
}

// Decode splits a value into its non-alias fields, low bits first.
func (r *Register) Decode(v uint64) []FieldValue {
	out := make([]FieldValue, 0, len(r.Fields))
	for _, f := range r.Fields {
		if f.IsAlias() {
			continue
		}
		fv := f.Extract(v)
		out = append(out, FieldValue{Name: f.Name, Value: fv, Meaning: f.Meaning(fv)})
	}
	sort.Slice(out, func(i, j int) bool {
		fi, _ := r.Field(out[i].Name)
		fj, _ := r.Field(out[j].Name)
		return fi.Lsb < fj.Lsb
	})
	return out
}

// DefinedMask is the union of all field masks.
func (r *Register) DefinedMask() uint64 {
	var m uint64
	for _, f := range r.Fields {
		m |= f.Mask()
	}
	return m
}

// Table is a loaded register model. It is read-only after Load.
type Table struct {
	byName map[string]*Register
	order  []*Register
}

var std = mustLoad(rawTable)

// Default returns the register model built from the embedded table.
func Default() *Table { return std }

// Lookup is Default().Lookup.
func Lookup(name string) (*Register, error) { return std.Lookup(name) }

// LookupIndexed is Default().LookupIndexed.
func LookupIndexed(base string, n int) (*Register, error) { return std.LookupIndexed(base, n) }

// MustLookup is Lookup for names known to exist in the embedded table.
func MustLookup(name string) *Register {
	r, err := std.Lookup(name)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup finds a register by name. "TRCRSCTLR2", "TRCRSCTLR<2>" and
// "trcrsctlr2" all name the same register.
func (t *Table) Lookup(name string) (*Register, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	if i := strings.IndexByte(key, '<'); i >= 0 && strings.HasSuffix(key, ">") {
		key = key[:i] + key[i+1:len(key)-1]
	}
	if r, ok := t.byName[key]; ok {
		return r, nil
	}
	return nil, common.Errorf(etmdef.ErrConfig, "undefined register %q", name)
}

// LookupIndexed finds member n of an indexed register family.
func (t *Table) LookupIndexed(base string, n int) (*Register, error) {
	return t.Lookup(base + strconv.Itoa(n))
}

// All returns every register, in table order.
func (t *Table) All() []*Register {
	out := make([]*Register, len(t.order))
	copy(out, t.order)
	return out
}

type tableFile struct {
	Registers []regSpec `yaml:"registers"`
}

type regSpec struct {
	Name   string      `yaml:"name"`
	Desc   string      `yaml:"desc"`
	Access string      `yaml:"access"`
	Offset *uint32     `yaml:"offset"`
	Sys    []uint8     `yaml:"sys"`
	Index  *indexSpec  `yaml:"index"`
	Fields []fieldSpec `yaml:"fields"`
}

type indexSpec struct {
	Min    int    `yaml:"min"`
	Max    int    `yaml:"max"`
	Scheme string `yaml:"scheme"`
}

type fieldSpec struct {
	Name    string            `yaml:"name"`
	Bits    []uint            `yaml:"bits"`
	AliasOf string            `yaml:"alias_of"`
	Desc    string            `yaml:"desc"`
	Values  map[uint64]string `yaml:"values"`
}

// indexSchemes move the index-0 selector to member n.
var indexSchemes = map[string]func(base Selector, n int) Selector{
	"rsctlr": func(base Selector, n int) Selector {
		base.CRm = uint8(n & 0xF)
		base.Op2 = uint8(n >> 4)
		return base
	},
	"extinsel": func(base Selector, n int) Selector {
		base.CRm += uint8(n)
		return base
	},
}

func mustLoad(data []byte) *Table {
	t, err := Load(data)
	if err != nil {
		panic(err)
	}
	return t
}

// Load builds a Table from YAML register table content.
func Load(data []byte) (*Table, error) {
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, common.Wrap(etmdef.ErrConfig, err, "parse register table")
	}

	t := &Table{byName: map[string]*Register{}}
	for _, spec := range tf.Registers {
		tmpl, err := buildRegister(spec)
		if err != nil {
			return nil, err
		}
		if spec.Index == nil {
			if err := t.add(tmpl); err != nil {
				return nil, err
			}
			continue
		}

		scheme, ok := indexSchemes[spec.Index.Scheme]
		if !ok {
			return nil, common.Errorf(etmdef.ErrConfig, "%s: unknown index scheme %q", spec.Name, spec.Index.Scheme)
		}
		if spec.Index.Min < 0 || spec.Index.Max < spec.Index.Min {
			return nil, common.Errorf(etmdef.ErrConfig, "%s: bad index range %d-%d", spec.Name, spec.Index.Min, spec.Index.Max)
		}
		for n := spec.Index.Min; n <= spec.Index.Max; n++ {
			r := *tmpl
			r.Name = tmpl.Base + strconv.Itoa(n)
			r.Index = n
			r.Offset = tmpl.Offset + uint32(4*n)
			if r.HasSys {
				r.Sys = scheme(tmpl.Sys, n)
			}
			if err := t.add(&r); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func (t *Table) add(r *Register) error {
	if _, dup := t.byName[r.Name]; dup {
		return common.Errorf(etmdef.ErrConfig, "register %s defined twice", r.Name)
	}
	t.byName[r.Name] = r
	t.order = append(t.order, r)
	return nil
}

func buildRegister(spec regSpec) (*Register, error) {
	name := strings.ToUpper(strings.TrimSpace(spec.Name))
	if name == "" {
		return nil, common.Errorf(etmdef.ErrConfig, "register with no name")
	}
	r := &Register{Name: name, Base: name, Index: -1, Desc: spec.Desc}

	switch strings.ToLower(spec.Access) {
	case "rw", "":
		r.Access = etmdef.AccessRW
	case "ro":
		r.Access = etmdef.AccessRO
	case "wo":
		r.Access = etmdef.AccessWO
	default:
		return nil, common.Errorf(etmdef.ErrConfig, "%s: bad access %q", name, spec.Access)
	}

	if spec.Offset != nil {
		if *spec.Offset%4 != 0 {
			return nil, common.Errorf(etmdef.ErrConfig, "%s: offset 0x%X not word aligned", name, *spec.Offset)
		}
		r.Offset, r.HasOffset = *spec.Offset, true
	}
	if len(spec.Sys) != 0 {
		if len(spec.Sys) != 5 {
			return nil, common.Errorf(etmdef.ErrConfig, "%s: sys needs 5 values, got %d", name, len(spec.Sys))
		}
		r.Sys = Selector{Op0: spec.Sys[0], Op1: spec.Sys[1], CRn: spec.Sys[2], CRm: spec.Sys[3], Op2: spec.Sys[4]}
		r.HasSys = true
	}
	if !r.HasOffset && !r.HasSys {
		return nil, common.Errorf(etmdef.ErrConfig, "%s: no offset and no system register encoding", name)
	}

	for _, fs := range spec.Fields {
		if len(fs.Bits) != 2 || fs.Bits[0] < fs.Bits[1] || fs.Bits[0] > 31 {
			return nil, common.Errorf(etmdef.ErrConfig, "%s.%s: bad bits %v", name, fs.Name, fs.Bits)
		}
		r.Fields = append(r.Fields, Field{
			Name:    fs.Name,
			Msb:     fs.Bits[0],
			Lsb:     fs.Bits[1],
			AliasOf: fs.AliasOf,
			Desc:    fs.Desc,
			Values:  fs.Values,
		})
	}
	return r, checkFields(r)
}

// checkFields enforces that fields never overlap. An alias is a view of
// part of another field and must sit inside it.
func checkFields(r *Register) error {
	seen := map[string]Field{}
	var used uint64
	for _, f := range r.Fields {
		if _, dup := seen[strings.ToUpper(f.Name)]; dup {
			return common.Errorf(etmdef.ErrConfig, "%s.%s defined twice", r.Name, f.Name)
		}
		seen[strings.ToUpper(f.Name)] = f
		if f.IsAlias() {
			continue
		}
		if used&f.Mask() != 0 {
			return common.Errorf(etmdef.ErrConfig, "%s.%s overlaps another field", r.Name, f.Name)
		}
		used |= f.Mask()
	}
	for _, f := range r.Fields {
		if !f.IsAlias() {
			continue
		}
		target, ok := seen[strings.ToUpper(f.AliasOf)]
		if !ok || target.IsAlias() {
			return common.Errorf(etmdef.ErrConfig, "%s.%s: alias target %q not found", r.Name, f.Name, f.AliasOf)
		}
		if f.Mask()&^target.Mask() != 0 {
			return common.Errorf(etmdef.ErrConfig, "%s.%s is not inside %s", r.Name, f.Name, target.Name)
		}
	}
	return nil
}
