package wasi

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/govm-net/wasmlib/types"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// FuncInfo describes an imported or exported function signature
type FuncInfo struct {
	Module  string
	Name    string
	Params  []string
	Results []string
}

func (f FuncInfo) String() string {
	name := f.Name
	if f.Module != "" {
		name = f.Module + "." + f.Name
	}
	return fmt.Sprintf("%s(%s) -> (%s)", name, strings.Join(f.Params, ", "), strings.Join(f.Results, ", "))
}

// ModuleInfo lists the functions a compiled module imports and exports
type ModuleInfo struct {
	Imports  []FuncInfo
	Exports  []FuncInfo
	Memories []string
	// Missing names the contract exports or host imports the module lacks
	Missing []string
	// Unknown names imports that neither the host module nor WASI provide
	Unknown []string
}

// Compatible reports whether the module can be loaded as a contract
func (m *ModuleInfo) Compatible() bool {
	return len(m.Missing) == 0 && len(m.Unknown) == 0
}

// Inspect compiles code without instantiating it and checks it against the contract ABI
func Inspect(ctx context.Context, code []byte) (*ModuleInfo, error) {
	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	compiled, err := runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to compile module: %w", err)
	}
	defer compiled.Close(ctx)

	info := &ModuleInfo{}
	for _, def := range compiled.ImportedFunctions() {
		moduleName, name, _ := def.Import()
		info.Imports = append(info.Imports, funcInfo(moduleName, name, def))
		if moduleName != types.HostModuleName && moduleName != "wasi_snapshot_preview1" {
			info.Unknown = append(info.Unknown, moduleName+"."+name)
		}
	}
	for name, def := range compiled.ExportedFunctions() {
		info.Exports = append(info.Exports, funcInfo("", name, def))
	}
	sort.Slice(info.Exports, func(i, j int) bool { return info.Exports[i].Name < info.Exports[j].Name })
	for name := range compiled.ExportedMemories() {
		info.Memories = append(info.Memories, name)
	}
	sort.Strings(info.Memories)

	exported := compiled.ExportedFunctions()
	for _, name := range []string{types.ExportOnLoad, types.ExportOnCall} {
		if _, ok := exported[name]; !ok {
			info.Missing = append(info.Missing, name)
		}
	}
	if _, ok := compiled.ExportedMemories()[types.ExportMemory]; !ok {
		info.Missing = append(info.Missing, types.ExportMemory)
	}
	return info, nil
}

func funcInfo(moduleName, name string, def api.FunctionDefinition) FuncInfo {
	f := FuncInfo{Module: moduleName, Name: name}
	for _, t := range def.ParamTypes() {
		f.Params = append(f.Params, api.ValueTypeName(t))
	}
	for _, t := range def.ResultTypes() {
		f.Results = append(f.Results, api.ValueTypeName(t))
	}
	return f
}
