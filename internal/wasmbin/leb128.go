// Package wasmbin emits minimal core-WASM binaries. It exists so tests
// and tooling can synthesize guest modules (memory, globals, a bump
// allocator) without an external toolchain. Emit-only; decoding is out
// of scope.
package wasmbin

// AppendUleb appends an unsigned LEB128 value.
func AppendUleb(dst []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if v == 0 {
			return dst
		}
	}
}

// AppendSleb32 appends a signed 32-bit LEB128 value.
func AppendSleb32(dst []byte, v int32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

// AppendName appends a length-prefixed UTF-8 name.
func AppendName(dst []byte, name string) []byte {
	dst = AppendUleb(dst, uint64(len(name)))
	return append(dst, name...)
}
