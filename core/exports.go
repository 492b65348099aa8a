package core

import (
	"github.com/govm-net/wasmlib/errors"
	"github.com/govm-net/wasmlib/types"
)

// FuncHandler implements a state-changing entry point
type FuncHandler func(ctx FuncContext)

// ViewHandler implements a read-only entry point
type ViewHandler func(ctx ViewContext)

type entry struct {
	index int32
	name  string
	hname Hname
	fn    FuncHandler
	view  ViewHandler
}

func (e *entry) isView() bool {
	return e.view != nil
}

// Exports is the entry point table of a contract.
// Calls and views are numbered separately, each from 0 in registration order. Views are
// addressed with ExportViewFlag set in the dispatch index.
type Exports struct {
	mod     *Module
	entries map[Hname]*entry
	funcs   []Hname
	views   []Hname
	names   ScMutableMap
}

// NewExports creates the table and writes the library version sentinel into the
// host-visible exports container.
func NewExports(mod *Module) *Exports {
	e := &Exports{
		mod:     mod,
		entries: make(map[Hname]*entry),
		names:   NewScMutableMap(mod.Root().Child(types.KeyExports, types.TypeMap)),
	}
	e.names.GetString(Key32(types.KeyZzzzzzz)).SetValue(types.SentinelName)
	return e
}

func (e *Exports) Module() *Module {
	return e.mod
}

func (e *Exports) add(name string, ent *entry) {
	h := NewHname(name)
	if existing, ok := e.entries[h]; ok {
		errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Path(name).
			Detail("hname %s already used by %q", h, existing.name).
			Abort()
	}
	ent.name = name
	ent.hname = h
	e.entries[h] = ent
}

// AddFunc registers a call
func (e *Exports) AddFunc(name string, fn FuncHandler) {
	index := int32(len(e.funcs))
	e.add(name, &entry{index: index, fn: fn})
	e.funcs = append(e.funcs, NewHname(name))
	e.names.GetString(Key32(index)).SetValue(name)
}

// AddView registers a view
func (e *Exports) AddView(name string, fn ViewHandler) {
	index := int32(len(e.views))
	if index >= types.ExportViewFlag {
		errors.Abortf(errors.PhaseLoad, errors.KindOutOfBounds, "too many views")
	}
	e.add(name, &entry{index: index, view: fn})
	e.views = append(e.views, NewHname(name))
	e.names.GetString(Key32(index | types.ExportViewFlag)).SetValue(name)
}

// Funcs returns the call names in index order
func (e *Exports) Funcs() []string {
	return e.namesOf(e.funcs)
}

// Views returns the view names in index order
func (e *Exports) Views() []string {
	return e.namesOf(e.views)
}

func (e *Exports) namesOf(hnames []Hname) []string {
	out := make([]string, len(hnames))
	for i, h := range hnames {
		out[i] = e.entries[h].name
	}
	return out
}

// Dispatch runs the entry point at index. Indices with ExportViewFlag set address views.
// Any abort raised by the handler is returned as an error; state changes made before
// the abort are not rolled back.
func (e *Exports) Dispatch(index int32) error {
	return errors.Guard(func() {
		e.invoke(e.lookupIndex(index))
	})
}

// DispatchName runs the entry point registered under name
func (e *Exports) DispatchName(name string) error {
	return e.DispatchHname(NewHname(name))
}

// DispatchHname runs the entry point with hash h
func (e *Exports) DispatchHname(h Hname) error {
	return errors.Guard(func() {
		ent, ok := e.entries[h]
		if !ok {
			errors.New(errors.PhaseDispatch, errors.KindNotFound).
				Detail("unknown entry point %s", h).
				Abort()
		}
		e.invoke(ent)
	})
}

// OnCall is the body of the contract's call export. Errors are reported to the host
// through the panic slot of the root object.
func (e *Exports) OnCall(index int32) {
	if err := e.Dispatch(index); err != nil {
		e.mod.Root().Value(types.KeyPanic, types.TypeString).Set([]byte(err.Error()))
	}
}

func (e *Exports) lookupIndex(index int32) *entry {
	if index >= 0 && index&types.ExportViewFlag != 0 {
		i := index &^ types.ExportViewFlag
		if i >= int32(len(e.views)) {
			errors.New(errors.PhaseDispatch, errors.KindOutOfBounds).
				Detail("invalid view index %d", i).
				Abort()
		}
		return e.entries[e.views[i]]
	}
	if index < 0 || index >= int32(len(e.funcs)) {
		errors.New(errors.PhaseDispatch, errors.KindOutOfBounds).
			Detail("invalid call index %d", index).
			Abort()
	}
	return e.entries[e.funcs[index]]
}

func (e *Exports) invoke(ent *entry) {
	base := baseContext{mod: e.mod}
	if ent.isView() {
		ent.view(&viewContext{baseContext: base})
		return
	}
	ent.fn(&funcContext{baseContext: base})
}
