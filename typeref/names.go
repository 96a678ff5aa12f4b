package typeref

// Kind classifies a bundle entry by how it is resolved from the host.
type Kind uint8

const (
	KindSingleton Kind = iota
	KindType
	KindIntern
	KindException
)

func (k Kind) String() string {
	switch k {
	case KindSingleton:
		return "singleton"
	case KindType:
		return "type"
	case KindIntern:
		return "intern"
	case KindException:
		return "exception"
	default:
		return "unknown"
	}
}

// Entry describes one name in the fixed bundle set. The set is
// enumerated at design time and is not extensible at runtime.
type Entry struct {
	Name   string
	Kind   Kind
	Module string // KindType, KindException: module defining the type or base class
	Member string // KindType, KindException: member within Module; KindIntern: the string to intern
	Base   string // KindException: qualified name of the derived exception class
}

var entries = []Entry{
	// Singleton values
	{Name: "true", Kind: KindSingleton},
	{Name: "false", Kind: KindSingleton},
	{Name: "none", Kind: KindSingleton},
	{Name: "default", Kind: KindSingleton},
	{Name: "option", Kind: KindSingleton},
	{Name: "empty-string", Kind: KindSingleton},

	// Type objects
	{Name: "bytes-type", Kind: KindType, Module: "builtins", Member: "bytes"},
	{Name: "bytearray-type", Kind: KindType, Module: "builtins", Member: "bytearray"},
	{Name: "memoryview-type", Kind: KindType, Module: "builtins", Member: "memoryview"},
	{Name: "str-type", Kind: KindType, Module: "builtins", Member: "str"},
	{Name: "int-type", Kind: KindType, Module: "builtins", Member: "int"},
	{Name: "bool-type", Kind: KindType, Module: "builtins", Member: "bool"},
	{Name: "none-type", Kind: KindType, Module: "builtins", Member: "NoneType"},
	{Name: "float-type", Kind: KindType, Module: "builtins", Member: "float"},
	{Name: "list-type", Kind: KindType, Module: "builtins", Member: "list"},
	{Name: "dict-type", Kind: KindType, Module: "builtins", Member: "dict"},
	{Name: "tuple-type", Kind: KindType, Module: "builtins", Member: "tuple"},
	{Name: "datetime-type", Kind: KindType, Module: "datetime", Member: "datetime"},
	{Name: "date-type", Kind: KindType, Module: "datetime", Member: "date"},
	{Name: "time-type", Kind: KindType, Module: "datetime", Member: "time"},
	{Name: "zoneinfo-type", Kind: KindType, Module: "zoneinfo", Member: "ZoneInfo"},
	{Name: "uuid-type", Kind: KindType, Module: "uuid", Member: "UUID"},
	{Name: "enum-type", Kind: KindType, Module: "enum", Member: "EnumMeta"},
	{Name: "field-type", Kind: KindType, Module: "dataclasses", Member: "_FIELD"},
	{Name: "fragment-type", Kind: KindType, Module: "hyperjson", Member: "Fragment"},

	// Interned method and attribute name strings
	{Name: "utcoffset-method", Kind: KindIntern, Member: "utcoffset"},
	{Name: "normalize-method", Kind: KindIntern, Member: "normalize"},
	{Name: "convert-method", Kind: KindIntern, Member: "convert"},
	{Name: "dst-str", Kind: KindIntern, Member: "dst"},
	{Name: "dict-str", Kind: KindIntern, Member: "__dict__"},
	{Name: "dataclass-fields-str", Kind: KindIntern, Member: "__dataclass_fields__"},
	{Name: "slots-str", Kind: KindIntern, Member: "__slots__"},
	{Name: "field-type-str", Kind: KindIntern, Member: "_field_type"},
	{Name: "array-struct-str", Kind: KindIntern, Member: "__array_struct__"},
	{Name: "dtype-str", Kind: KindIntern, Member: "dtype"},
	{Name: "descr-str", Kind: KindIntern, Member: "descr"},
	{Name: "value-str", Kind: KindIntern, Member: "value"},
	{Name: "int-attr-str", Kind: KindIntern, Member: "int"},

	// Exception classes
	{Name: "encode-error", Kind: KindType, Module: "builtins", Member: "TypeError"},
	{Name: "decode-error", Kind: KindException, Module: "json", Member: "JSONDecodeError", Base: "hyperjson.JSONDecodeError"},
}

// Entries returns the fixed bundle name set. The slice is shared;
// callers must not modify it.
func Entries() []Entry {
	return entries
}
