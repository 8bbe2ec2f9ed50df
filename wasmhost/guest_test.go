package wasmhost

// A tiny guest assembled by hand, equivalent to:
//
//	(module
//	  (import "file" "async_write"  (func (param i32 i32 i32 i32 i32 i32) (result i32)))
//	  (import "file" "async_append" (func (param i32 i32 i32 i32 i32 i32) (result i32)))
//	  (memory (export "memory") 1)
//	  (global $calls (export "calls") (mut i32) ...)   ;; and last_token, last_status,
//	  ...                                               ;; last_ptr, last_len, bump, frees
//	  (data (i32.const 16) "notes.txt")
//	  (data (i32.const 32) "hello")
//	  (data (i32.const 48) "../../etc/passwd")
//	  (data (i32.const 64) "log.txt")
//	  (func (export "write_async") ...)                 ;; async_write("notes.txt", "hello", 7, async)
//	  (func (export "fsasync_callback") ...)            ;; records its arguments in globals
//	  (func (export "wasm_alloc") ...)                  ;; bump allocator
//	  (func (export "wasm_free") ...))                  ;; counts frees

const (
	opEnd       = 0x0b
	opCall      = 0x10
	opLocalGet  = 0x20
	opGlobalGet = 0x23
	opGlobalSet = 0x24
	opI32Const  = 0x41
	opI32Add    = 0x6a

	valI32 = 0x7f

	kindFunc   = 0x00
	kindMemory = 0x02
	kindGlobal = 0x03
)

// Global indices
const (
	gCalls = iota
	gLastToken
	gLastStatus
	gLastPtr
	gLastLen
	gBump
	gFrees
)

var guestGlobals = []string{"calls", "last_token", "last_status", "last_ptr", "last_len", "bump", "frees"}

// Type indices
const (
	tFile     = iota // (i32 x6) -> i32
	tEntry           // () -> i32
	tCallback        // (i32 i32 i32 i32) -> ()
	tAlloc           // (i32) -> i32
	tFree            // (i32 i32) -> ()
)

// Imported function indices
const (
	fAsyncWrite = iota
	fAsyncAppend
)

type guestFunc struct {
	export string
	typ    uint32
	body   []byte
}

func encodeULEB128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func encodeSLEB128(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func encodeName(s string) []byte {
	return append(encodeULEB128(uint32(len(s))), s...)
}

// section encodes a vector section: id, byte size, item count, items
func section(id byte, items ...[]byte) []byte {
	payload := encodeULEB128(uint32(len(items)))
	for _, item := range items {
		payload = append(payload, item...)
	}
	out := []byte{id}
	out = append(out, encodeULEB128(uint32(len(payload)))...)
	return append(out, payload...)
}

func funcType(params, results int) []byte {
	out := []byte{0x60}
	out = append(out, encodeULEB128(uint32(params))...)
	for i := 0; i < params; i++ {
		out = append(out, valI32)
	}
	out = append(out, encodeULEB128(uint32(results))...)
	for i := 0; i < results; i++ {
		out = append(out, valI32)
	}
	return out
}

func i32Const(v int32) []byte {
	return append([]byte{opI32Const}, encodeSLEB128(v)...)
}

// callFile builds a body calling a file import with constant arguments
func callFile(fn uint32, idPtr, idLen, dataPtr, dataLen, token, sync int32) []byte {
	var body []byte
	for _, arg := range []int32{idPtr, idLen, dataPtr, dataLen, token, sync} {
		body = append(body, i32Const(arg)...)
	}
	body = append(body, opCall)
	body = append(body, encodeULEB128(fn)...)
	return body
}

func setGlobalFromLocal(global, local byte) []byte {
	return []byte{opLocalGet, local, opGlobalSet, global}
}

// Guest data layout
const (
	notesPtr  = 16 // "notes.txt"
	helloPtr  = 32 // "hello"
	escapePtr = 48 // "../../etc/passwd"
	logPtr    = 64 // "log.txt"
	heapStart = 4096
)

// Callback tokens used by the guest entry points
const (
	tokenWriteAsync  = 7
	tokenWriteSync   = 9
	tokenAppendAsync = 11
	tokenEscape      = 13
	tokenOutOfRange  = 15
)

func guestFuncs() []guestFunc {
	callback := []byte{opGlobalGet, gCalls}
	callback = append(callback, i32Const(1)...)
	callback = append(callback, opI32Add, opGlobalSet, gCalls)
	callback = append(callback, setGlobalFromLocal(gLastToken, 0)...)
	callback = append(callback, setGlobalFromLocal(gLastPtr, 1)...)
	callback = append(callback, setGlobalFromLocal(gLastLen, 2)...)
	callback = append(callback, setGlobalFromLocal(gLastStatus, 3)...)

	alloc := []byte{opGlobalGet, gBump, opGlobalGet, gBump, opLocalGet, 0, opI32Add, opGlobalSet, gBump}

	free := []byte{opGlobalGet, gFrees}
	free = append(free, i32Const(1)...)
	free = append(free, opI32Add, opGlobalSet, gFrees)

	return []guestFunc{
		{"write_async", tEntry, callFile(fAsyncWrite, notesPtr, 9, helloPtr, 5, tokenWriteAsync, 0)},
		{"write_sync", tEntry, callFile(fAsyncWrite, notesPtr, 9, helloPtr, 5, tokenWriteSync, 1)},
		{"append_async", tEntry, callFile(fAsyncAppend, logPtr, 7, helloPtr, 5, tokenAppendAsync, 0)},
		{"append_quiet", tEntry, callFile(fAsyncAppend, logPtr, 7, helloPtr, 5, 0, 0)},
		{"write_escape", tEntry, callFile(fAsyncWrite, escapePtr, 16, helloPtr, 5, tokenEscape, 0)},
		{"write_out_of_range", tEntry, callFile(fAsyncWrite, 0x20000, 9, helloPtr, 5, tokenOutOfRange, 0)},
		{CallbackExport, tCallback, callback},
		{allocExport, tAlloc, alloc},
		{freeExport, tFree, free},
	}
}

// buildGuest assembles the test guest module
func buildGuest() []byte {
	wasm := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	wasm = append(wasm, section(0x01,
		funcType(6, 1), // tFile
		funcType(0, 1), // tEntry
		funcType(4, 0), // tCallback
		funcType(1, 1), // tAlloc
		funcType(2, 0), // tFree
	)...)

	importFile := func(name string) []byte {
		out := encodeName(ImportModule)
		out = append(out, encodeName(name)...)
		return append(out, kindFunc, tFile)
	}
	wasm = append(wasm, section(0x02, importFile("async_write"), importFile("async_append"))...)

	funcs := guestFuncs()
	var funcTypes [][]byte
	for _, f := range funcs {
		funcTypes = append(funcTypes, encodeULEB128(f.typ))
	}
	wasm = append(wasm, section(0x03, funcTypes...)...)

	// One page, no maximum
	wasm = append(wasm, section(0x05, []byte{0x00, 0x01})...)

	var globals [][]byte
	for i := range guestGlobals {
		init := int32(0)
		if i == gBump {
			init = heapStart
		}
		g := []byte{valI32, 0x01}
		g = append(g, i32Const(init)...)
		globals = append(globals, append(g, opEnd))
	}
	wasm = append(wasm, section(0x06, globals...)...)

	exports := [][]byte{append(encodeName("memory"), kindMemory, 0)}
	for i, f := range funcs {
		exp := append(encodeName(f.export), kindFunc)
		exports = append(exports, append(exp, encodeULEB128(uint32(2+i))...))
	}
	for i, name := range guestGlobals {
		exports = append(exports, append(encodeName(name), kindGlobal, byte(i)))
	}
	wasm = append(wasm, section(0x07, exports...)...)

	var bodies [][]byte
	for _, f := range funcs {
		body := []byte{0x00} // no locals
		body = append(body, f.body...)
		body = append(body, opEnd)
		bodies = append(bodies, append(encodeULEB128(uint32(len(body))), body...))
	}
	wasm = append(wasm, section(0x0a, bodies...)...)

	segment := func(offset int32, s string) []byte {
		out := []byte{0x00}
		out = append(out, i32Const(offset)...)
		out = append(out, opEnd)
		return append(out, encodeName(s)...)
	}
	wasm = append(wasm, section(0x0b,
		segment(notesPtr, "notes.txt"),
		segment(helloPtr, "hello"),
		segment(escapePtr, "../../etc/passwd"),
		segment(logPtr, "log.txt"),
	)...)

	return wasm
}

// memorylessGuest exports a single function returning 42 and no memory
var memorylessGuest = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7f, // type section: () -> i32
	0x03, 0x02, 0x01, 0x00, // func section: 1 func of type 0
	0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00, // export "add"
	0x0a, 0x06, 0x01, 0x04, 0x00, 0x41, 0x2a, 0x0b, // code: return 42
}
