package wasmbin

// Core-wasm constants, binary format section ids and opcodes.
const (
	ValI32 byte = 0x7f

	secType   byte = 1
	secFunc   byte = 3
	secMemory byte = 5
	secGlobal byte = 6
	secExport byte = 7
	secCode   byte = 10

	exportFunc   byte = 0
	exportMemory byte = 2
	exportGlobal byte = 3

	// Opcodes and block types for raw function bodies.
	OpIf        byte = 0x04
	OpEnd       byte = 0x0b
	OpLocalGet  byte = 0x20
	OpGlobalGet byte = 0x23
	OpGlobalSet byte = 0x24
	OpI32Const  byte = 0x41
	OpI32Eqz    byte = 0x45
	OpI32Add    byte = 0x6a

	BlockEmpty byte = 0x40
)

type funcType struct {
	params  []byte
	results []byte
}

type function struct {
	typeIdx uint32
	body    []byte
}

type global struct {
	mutable bool
	init    int32
}

type export struct {
	name string
	kind byte
	idx  uint32
}

// Builder assembles a single-module core wasm binary.
type Builder struct {
	types    []funcType
	funcs    []function
	globals  []global
	exports  []export
	memPages uint32
	hasMem   bool
}

// NewBuilder returns an empty module builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddFuncType registers a function signature and returns its type index.
func (b *Builder) AddFuncType(params, results []byte) uint32 {
	b.types = append(b.types, funcType{params: params, results: results})
	return uint32(len(b.types) - 1)
}

// AddFunction registers a function with a raw body (instructions
// without the trailing end opcode) and returns its function index.
func (b *Builder) AddFunction(typeIdx uint32, body []byte) uint32 {
	b.funcs = append(b.funcs, function{typeIdx: typeIdx, body: body})
	return uint32(len(b.funcs) - 1)
}

// SetMemory declares a memory with the given minimum page count.
func (b *Builder) SetMemory(minPages uint32) {
	b.memPages = minPages
	b.hasMem = true
}

// AddGlobalI32 registers an i32 global and returns its global index.
func (b *Builder) AddGlobalI32(init int32, mutable bool) uint32 {
	b.globals = append(b.globals, global{mutable: mutable, init: init})
	return uint32(len(b.globals) - 1)
}

// ExportFunc exports a function index under name.
func (b *Builder) ExportFunc(name string, idx uint32) {
	b.exports = append(b.exports, export{name: name, kind: exportFunc, idx: idx})
}

// ExportMemory exports memory 0 under name.
func (b *Builder) ExportMemory(name string) {
	b.exports = append(b.exports, export{name: name, kind: exportMemory, idx: 0})
}

// ExportGlobal exports a global index under name.
func (b *Builder) ExportGlobal(name string, idx uint32) {
	b.exports = append(b.exports, export{name: name, kind: exportGlobal, idx: idx})
}

// Build emits the module binary.
func (b *Builder) Build() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	if len(b.types) > 0 {
		var sec []byte
		sec = AppendUleb(sec, uint64(len(b.types)))
		for _, t := range b.types {
			sec = append(sec, 0x60)
			sec = AppendUleb(sec, uint64(len(t.params)))
			sec = append(sec, t.params...)
			sec = AppendUleb(sec, uint64(len(t.results)))
			sec = append(sec, t.results...)
		}
		out = appendSection(out, secType, sec)
	}

	if len(b.funcs) > 0 {
		var sec []byte
		sec = AppendUleb(sec, uint64(len(b.funcs)))
		for _, f := range b.funcs {
			sec = AppendUleb(sec, uint64(f.typeIdx))
		}
		out = appendSection(out, secFunc, sec)
	}

	if b.hasMem {
		var sec []byte
		sec = AppendUleb(sec, 1)
		sec = append(sec, 0x00) // min only
		sec = AppendUleb(sec, uint64(b.memPages))
		out = appendSection(out, secMemory, sec)
	}

	if len(b.globals) > 0 {
		var sec []byte
		sec = AppendUleb(sec, uint64(len(b.globals)))
		for _, g := range b.globals {
			sec = append(sec, ValI32)
			if g.mutable {
				sec = append(sec, 0x01)
			} else {
				sec = append(sec, 0x00)
			}
			sec = append(sec, OpI32Const)
			sec = AppendSleb32(sec, g.init)
			sec = append(sec, OpEnd)
		}
		out = appendSection(out, secGlobal, sec)
	}

	if len(b.exports) > 0 {
		var sec []byte
		sec = AppendUleb(sec, uint64(len(b.exports)))
		for _, e := range b.exports {
			sec = AppendName(sec, e.name)
			sec = append(sec, e.kind)
			sec = AppendUleb(sec, uint64(e.idx))
		}
		out = appendSection(out, secExport, sec)
	}

	if len(b.funcs) > 0 {
		var sec []byte
		sec = AppendUleb(sec, uint64(len(b.funcs)))
		for _, f := range b.funcs {
			var body []byte
			body = AppendUleb(body, 0) // no local declarations
			body = append(body, f.body...)
			body = append(body, OpEnd)
			sec = AppendUleb(sec, uint64(len(body)))
			sec = append(sec, body...)
		}
		out = appendSection(out, secCode, sec)
	}

	return out
}

func appendSection(out []byte, id byte, payload []byte) []byte {
	out = append(out, id)
	out = AppendUleb(out, uint64(len(payload)))
	return append(out, payload...)
}
