package typegraph

// Value is the tagged-union RuntimeValue of spec §3: the in-memory
// structured representation consumed by Lower and produced by Lift. Values
// are owned outright — no field of a Value ever aliases storage behind
// another Value — which Lower enforces on its input boundary using
// github.com/tiendc/go-deepcopy (see internal/codec).
type Value struct {
	Kind Kind

	Bool  bool
	Int   int64   // s8/s16/s32/s64
	Uint  uint64  // u8/u16/u32/u64
	Float float64 // f32/f64
	Char  rune
	Str   string

	Items  []Value      // list<T>, tuple<...> elements in order
	Fields []FieldValue  // record fields in declared order

	Case    string // selected case name: variant, enum, option ("none"/"some"), result ("ok"/"err")
	Payload *Value // variant/option/result payload; nil when the case carries none

	Flags []string // flags: names of the set bits, in any order
}

// FieldValue is one named record field's value.
type FieldValue struct {
	Name  string
	Value Value
}

func Bool(b bool) Value         { return Value{Kind: KindBool, Bool: b} }
func Uint(k Kind, v uint64) Value { return Value{Kind: k, Uint: v} }
func Int(k Kind, v int64) Value   { return Value{Kind: k, Int: v} }
func Float(k Kind, v float64) Value { return Value{Kind: k, Float: v} }
func Chr(r rune) Value          { return Value{Kind: KindChar, Char: r} }
func Str(s string) Value        { return Value{Kind: KindString, Str: s} }

// List builds a list<T> value.
func List(items []Value) Value { return Value{Kind: KindList, Items: items} }

// Tuple builds a tuple<...> value.
func Tuple(items []Value) Value { return Value{Kind: KindTuple, Items: items} }

// Record builds a record value from ordered fields.
func Record(fields []FieldValue) Value { return Value{Kind: KindRecord, Fields: fields} }

// Variant builds a variant (or option/result) value selecting caseName,
// with an optional payload.
func Variant(caseName string, payload *Value) Value {
	return Value{Kind: KindVariant, Case: caseName, Payload: payload}
}

// Enum builds an enum value selecting caseName.
func Enum(caseName string) Value { return Value{Kind: KindEnum, Case: caseName} }

// None builds `option<T>`'s none case.
func None() Value { return Value{Kind: KindOption, Case: "none"} }

// Some builds `option<T>`'s some case.
func Some(v Value) Value { return Value{Kind: KindOption, Case: "some", Payload: &v} }

// Ok builds `result<T?, E?>`'s ok case; payload may be nil for a unit ok arm.
func Ok(payload *Value) Value { return Value{Kind: KindResult, Case: "ok", Payload: payload} }

// Err builds `result<T?, E?>`'s err case; payload may be nil for a unit err arm.
func Err(payload *Value) Value { return Value{Kind: KindResult, Case: "err", Payload: payload} }

// FlagSet builds a flags value from the set flag names.
func FlagSet(names []string) Value { return Value{Kind: KindFlags, Flags: names} }
