package expr

import (
	"fmt"

	"decomp/internal/word"
)

// Stack is a slot relative to the current virtual stack pointer. Equality
// is only meaningful within one basic block (spec §3) — callers outside a
// single BB must go through internal/dataflow's equality oracle, which
// requires sameBB before comparing offsets at all.
type Stack struct {
	Offset int
}

func (s *Stack) Copy() Expression { return &Stack{Offset: s.Offset} }

func (s *Stack) Evaluate(env Env) (*word.Word, error) { return env.StackValue(s.Offset) }

func (s *Stack) Children() []Expression { return nil }

func (s *Stack) Rebuild(newChildren []Expression) Expression {
	visitLeaf("Stack", newChildren)
	return s.Copy()
}

func (s *Stack) String() string { return fmt.Sprintf("stack[%d]", s.Offset) }

// Mem is a byte slice of linear memory. (addr=0x40, length=0x20) is the
// reserved free-memory-pointer sentinel (spec §3, see IsFreeMemPointer).
type Mem struct {
	Addr   Expression
	Length Expression
}

func (m *Mem) Copy() Expression { return &Mem{Addr: m.Addr.Copy(), Length: m.Length.Copy()} }

func (m *Mem) Evaluate(env Env) (*word.Word, error) {
	addr, err := m.Addr.Evaluate(env)
	if err != nil {
		return nil, err
	}
	length, err := m.Length.Evaluate(env)
	if err != nil {
		return nil, err
	}
	return env.MemValue(addr, length)
}

func (m *Mem) Children() []Expression { return []Expression{m.Addr, m.Length} }

func (m *Mem) Rebuild(newChildren []Expression) Expression {
	if len(newChildren) != 2 {
		panic("Mem.Rebuild expects 2 children")
	}
	return &Mem{Addr: newChildren[0], Length: newChildren[1]}
}

func (m *Mem) String() string { return fmt.Sprintf("mem[%s : %s]", m.Addr, m.Length) }

// Storage is a persistent 32-byte cell.
type Storage struct {
	Addr Expression
}

func (s *Storage) Copy() Expression { return &Storage{Addr: s.Addr.Copy()} }

func (s *Storage) Evaluate(env Env) (*word.Word, error) {
	addr, err := s.Addr.Evaluate(env)
	if err != nil {
		return nil, err
	}
	return env.StorageValue(addr)
}

func (s *Storage) Children() []Expression { return []Expression{s.Addr} }

func (s *Storage) Rebuild(newChildren []Expression) Expression {
	if len(newChildren) != 1 {
		panic("Storage.Rebuild expects 1 child")
	}
	return &Storage{Addr: newChildren[0]}
}

func (s *Storage) String() string { return fmt.Sprintf("storage[%s]", s.Addr) }

// NamedStorageKind distinguishes recognized higher-level storage accesses.
type NamedStorageKind int

const (
	NamedStorageMapping NamedStorageKind = iota
	NamedStorageArray
)

func (k NamedStorageKind) String() string {
	switch k {
	case NamedStorageMapping:
		return "mapping"
	case NamedStorageArray:
		return "array"
	default:
		return "unknown"
	}
}

// NamedStorageAccess is a recognized higher-level storage access, produced
// by the rewrite pass (spec §4.1, §5 pattern recognizers).
type NamedStorageAccess struct {
	Kind   NamedStorageKind
	Num    int // the distinguishing storage-variable number (base slot)
	Offset Expression
}

func (n *NamedStorageAccess) Copy() Expression {
	return &NamedStorageAccess{Kind: n.Kind, Num: n.Num, Offset: n.Offset.Copy()}
}

func (n *NamedStorageAccess) Evaluate(env Env) (*word.Word, error) {
	offset, err := n.Offset.Evaluate(env)
	if err != nil {
		return nil, err
	}
	return env.NamedStorageValue(n.Kind, n.Num, offset)
}

func (n *NamedStorageAccess) Children() []Expression { return []Expression{n.Offset} }

func (n *NamedStorageAccess) Rebuild(newChildren []Expression) Expression {
	if len(newChildren) != 1 {
		panic("NamedStorageAccess.Rebuild expects 1 child")
	}
	return &NamedStorageAccess{Kind: n.Kind, Num: n.Num, Offset: newChildren[0]}
}

func (n *NamedStorageAccess) String() string {
	return fmt.Sprintf("%s%d[%s]", n.Kind, n.Num, n.Offset)
}

// GlobalVar is an environment/context variable (sender, block number, ...).
type GlobalVar struct {
	Name string
}

func (g *GlobalVar) Copy() Expression { return &GlobalVar{Name: g.Name} }

func (g *GlobalVar) Evaluate(env Env) (*word.Word, error) { return env.GlobalValue(g.Name) }

func (g *GlobalVar) Children() []Expression { return nil }

func (g *GlobalVar) Rebuild(newChildren []Expression) Expression {
	visitLeaf("GlobalVar", newChildren)
	return g.Copy()
}

func (g *GlobalVar) String() string { return g.Name }

// Var is a local with identity semantics: two distinct Vars are never equal
// even if unnamed (spec §3). Identity lives in the id field, minted once by
// a VarDispenser (spec §9: "explicit monotonic counter", here owned by the
// contract rather than global state) — Copy preserves id so that many
// non-aliased *Var instances can still denote "the same variable".
type Var struct {
	id   uint64
	Name string
}

// ID returns the stable identity handle for this variable. Two *Var values
// denote the same variable iff their IDs match; never compare *Var pointers
// or Names for identity.
func (v *Var) ID() uint64 { return v.id }

func (v *Var) Copy() Expression { return &Var{id: v.id, Name: v.Name} }

func (v *Var) Evaluate(env Env) (*word.Word, error) { return env.VarValue(v) }

func (v *Var) Children() []Expression { return nil }

func (v *Var) Rebuild(newChildren []Expression) Expression {
	visitLeaf("Var", newChildren)
	return v.Copy()
}

func (v *Var) String() string {
	if v.Name != "" {
		return v.Name
	}
	return fmt.Sprintf("v%d", v.id)
}

// VarDispenser mints fresh, uniquely-identified Vars. Owned by the Contract
// (spec §9), never a package-level global.
type VarDispenser struct {
	next uint64
}

// NewVarDispenser creates a dispenser starting from id 1 (0 is reserved to
// make the zero-valued *VarDispenser detectably unused).
func NewVarDispenser() *VarDispenser { return &VarDispenser{} }

// New mints a fresh variable with the given display name (may be empty).
func (d *VarDispenser) New(name string) *Var {
	d.next++
	return &Var{id: d.next, Name: name}
}
