package witlang

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/canonkv/canonkv/internal/typegraph"
)

// ValueCodec implements store.ValueTextCodec: a type-directed textual
// syntax for typegraph.Value, parsed/printed against the expected
// TypeRef's resolved Kind rather than sniffed from the text alone (braces
// hold a flags value "{ a, b }" against a flags TypeRef and a record value
// "{ a: 1, b: 2 }" against a record TypeRef).
type ValueCodec struct{}

// ParseValue implements store.ValueTextCodec.
func (ValueCodec) ParseValue(g *typegraph.Graph, ref typegraph.TypeRef, text string) (typegraph.Value, error) {
	toks, err := NewLexer(text).Tokenize()
	if err != nil {
		return typegraph.Value{}, err
	}
	vp := &valueParserState{tokens: toks, g: g}
	v, err := vp.value(ref)
	if err != nil {
		return typegraph.Value{}, err
	}
	if !vp.check(TokEOF) {
		return typegraph.Value{}, vp.errorf("unexpected trailing input %q", vp.peek().Lexeme)
	}
	return v, nil
}

// PrintValue implements store.ValueTextCodec.
func (ValueCodec) PrintValue(g *typegraph.Graph, ref typegraph.TypeRef, v typegraph.Value) (string, error) {
	var b strings.Builder
	if err := printValue(&b, g, ref, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

type valueParserState struct {
	tokens []Token
	pos    int
	g      *typegraph.Graph
}

func (p *valueParserState) value(ref typegraph.TypeRef) (typegraph.Value, error) {
	shallow := ref.Kind()
	if shallow.IsPrimitive() {
		return p.primitive(shallow)
	}
	resolved, def, err := p.g.Resolve(ref)
	if err != nil {
		return typegraph.Value{}, err
	}
	if resolved.Kind().IsPrimitive() {
		return p.primitive(resolved.Kind())
	}
	switch def.Kind {
	case typegraph.KindList:
		return p.list(*def.Elem)
	case typegraph.KindRecord:
		return p.record(def.Fields)
	case typegraph.KindTuple:
		return p.tuple(def.Fields)
	case typegraph.KindFlags:
		return p.flags(def.Flags)
	case typegraph.KindEnum:
		return p.enum(def.Cases)
	case typegraph.KindOption:
		return p.option(def.Cases)
	case typegraph.KindResult:
		return p.result(def.Cases)
	case typegraph.KindVariant:
		return p.variant(def.Cases)
	default:
		return typegraph.Value{}, p.errorf("cannot parse a value of kind %s", def.Kind)
	}
}

func (p *valueParserState) primitive(k typegraph.Kind) (typegraph.Value, error) {
	switch k {
	case typegraph.KindBool:
		tok := p.peek()
		if tok.Lexeme != "true" && tok.Lexeme != "false" {
			return typegraph.Value{}, p.errorf("expected true or false, got %q", tok.Lexeme)
		}
		p.advance()
		return typegraph.Bool(tok.Lexeme == "true"), nil
	case typegraph.KindU8, typegraph.KindU16, typegraph.KindU32, typegraph.KindU64:
		tok, err := p.expect(TokInt)
		if err != nil {
			return typegraph.Value{}, err
		}
		n, err := strconv.ParseUint(tok.Lexeme, 10, 64)
		if err != nil {
			return typegraph.Value{}, p.errorf("invalid unsigned integer %q: %v", tok.Lexeme, err)
		}
		return typegraph.Uint(k, n), nil
	case typegraph.KindS8, typegraph.KindS16, typegraph.KindS32, typegraph.KindS64:
		neg := false
		if p.check(TokMinus) {
			neg = true
			p.advance()
		}
		tok, err := p.expect(TokInt)
		if err != nil {
			return typegraph.Value{}, err
		}
		n, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			return typegraph.Value{}, p.errorf("invalid integer %q: %v", tok.Lexeme, err)
		}
		if neg {
			n = -n
		}
		return typegraph.Int(k, n), nil
	case typegraph.KindF32, typegraph.KindF64:
		neg := false
		if p.check(TokMinus) {
			neg = true
			p.advance()
		}
		tok := p.peek()
		if tok.Kind != TokFloat && tok.Kind != TokInt {
			return typegraph.Value{}, p.errorf("expected a number, got %q", tok.Lexeme)
		}
		p.advance()
		n, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			return typegraph.Value{}, p.errorf("invalid float %q: %v", tok.Lexeme, err)
		}
		if neg {
			n = -n
		}
		return typegraph.Float(k, n), nil
	case typegraph.KindChar:
		tok, err := p.expect(TokChar)
		if err != nil {
			return typegraph.Value{}, err
		}
		r := []rune(tok.Lexeme)
		if len(r) != 1 {
			return typegraph.Value{}, p.errorf("char literal %q must be exactly one rune", tok.Lexeme)
		}
		return typegraph.Chr(r[0]), nil
	case typegraph.KindString:
		tok, err := p.expect(TokString)
		if err != nil {
			return typegraph.Value{}, err
		}
		return typegraph.Str(tok.Lexeme), nil
	default:
		return typegraph.Value{}, p.errorf("unsupported primitive kind %s", k)
	}
}

func (p *valueParserState) list(elem typegraph.TypeRef) (typegraph.Value, error) {
	if _, err := p.expect(TokLeftBracket); err != nil {
		return typegraph.Value{}, err
	}
	var items []typegraph.Value
	for !p.check(TokRightBracket) {
		v, err := p.value(elem)
		if err != nil {
			return typegraph.Value{}, err
		}
		items = append(items, v)
		if p.check(TokComma) {
			p.advance()
		}
	}
	p.advance()
	return typegraph.List(items), nil
}

func (p *valueParserState) tuple(fields []typegraph.Field) (typegraph.Value, error) {
	if _, err := p.expect(TokLeftParen); err != nil {
		return typegraph.Value{}, err
	}
	items := make([]typegraph.Value, 0, len(fields))
	for i, f := range fields {
		if i > 0 {
			if _, err := p.expect(TokComma); err != nil {
				return typegraph.Value{}, err
			}
		}
		v, err := p.value(f.Type)
		if err != nil {
			return typegraph.Value{}, err
		}
		items = append(items, v)
	}
	if _, err := p.expect(TokRightParen); err != nil {
		return typegraph.Value{}, err
	}
	return typegraph.Tuple(items), nil
}

func (p *valueParserState) record(fields []typegraph.Field) (typegraph.Value, error) {
	if _, err := p.expect(TokLeftBrace); err != nil {
		return typegraph.Value{}, err
	}
	byName := make(map[string]typegraph.TypeRef, len(fields))
	for _, f := range fields {
		byName[f.Name] = f.Type
	}
	out := make([]typegraph.FieldValue, 0, len(fields))
	for !p.check(TokRightBrace) {
		name, err := p.expectIdent()
		if err != nil {
			return typegraph.Value{}, err
		}
		ft, ok := byName[name]
		if !ok {
			return typegraph.Value{}, p.errorf("unknown record field %q", name)
		}
		if _, err := p.expect(TokColon); err != nil {
			return typegraph.Value{}, err
		}
		v, err := p.value(ft)
		if err != nil {
			return typegraph.Value{}, err
		}
		out = append(out, typegraph.FieldValue{Name: name, Value: v})
		if p.check(TokComma) {
			p.advance()
		}
	}
	p.advance()
	if len(out) != len(fields) {
		return typegraph.Value{}, p.errorf("record literal is missing fields: expected %d, got %d", len(fields), len(out))
	}
	return typegraph.Record(out), nil
}

func (p *valueParserState) flags(names []string) (typegraph.Value, error) {
	if _, err := p.expect(TokLeftBrace); err != nil {
		return typegraph.Value{}, err
	}
	valid := make(map[string]bool, len(names))
	for _, n := range names {
		valid[n] = true
	}
	var set []string
	for !p.check(TokRightBrace) {
		name, err := p.expectIdent()
		if err != nil {
			return typegraph.Value{}, err
		}
		if !valid[name] {
			return typegraph.Value{}, p.errorf("unknown flag %q", name)
		}
		set = append(set, name)
		if p.check(TokComma) {
			p.advance()
		}
	}
	p.advance()
	return typegraph.FlagSet(set), nil
}

func (p *valueParserState) enum(cases []typegraph.Case) (typegraph.Value, error) {
	name, err := p.expectIdent()
	if err != nil {
		return typegraph.Value{}, err
	}
	for _, c := range cases {
		if c.Name == name {
			return typegraph.Enum(name), nil
		}
	}
	return typegraph.Value{}, p.errorf("unknown enum case %q", name)
}

func (p *valueParserState) option(cases []typegraph.Case) (typegraph.Value, error) {
	name, err := p.expectIdent()
	if err != nil {
		return typegraph.Value{}, err
	}
	if name == "none" {
		return typegraph.None(), nil
	}
	if name != "some" {
		return typegraph.Value{}, p.errorf("expected none or some(...), got %q", name)
	}
	payloadType := payloadOf(cases, "some")
	if _, err := p.expect(TokLeftParen); err != nil {
		return typegraph.Value{}, err
	}
	v, err := p.value(*payloadType)
	if err != nil {
		return typegraph.Value{}, err
	}
	if _, err := p.expect(TokRightParen); err != nil {
		return typegraph.Value{}, err
	}
	return typegraph.Some(v), nil
}

func (p *valueParserState) result(cases []typegraph.Case) (typegraph.Value, error) {
	name, err := p.expectIdent()
	if err != nil {
		return typegraph.Value{}, err
	}
	if name != "ok" && name != "err" {
		return typegraph.Value{}, p.errorf("expected ok or err, got %q", name)
	}
	payloadType := payloadOf(cases, name)
	var payload *typegraph.Value
	if payloadType != nil && p.check(TokLeftParen) {
		p.advance()
		v, err := p.value(*payloadType)
		if err != nil {
			return typegraph.Value{}, err
		}
		payload = &v
		if _, err := p.expect(TokRightParen); err != nil {
			return typegraph.Value{}, err
		}
	}
	if name == "ok" {
		return typegraph.Ok(payload), nil
	}
	return typegraph.Err(payload), nil
}

func (p *valueParserState) variant(cases []typegraph.Case) (typegraph.Value, error) {
	name, err := p.expectIdent()
	if err != nil {
		return typegraph.Value{}, err
	}
	payloadType := payloadOf(cases, name)
	if payloadType == nil {
		for _, c := range cases {
			if c.Name == name {
				return typegraph.Variant(name, nil), nil
			}
		}
		return typegraph.Value{}, p.errorf("unknown variant case %q", name)
	}
	if _, err := p.expect(TokLeftParen); err != nil {
		return typegraph.Value{}, err
	}
	v, err := p.value(*payloadType)
	if err != nil {
		return typegraph.Value{}, err
	}
	if _, err := p.expect(TokRightParen); err != nil {
		return typegraph.Value{}, err
	}
	return typegraph.Variant(name, &v), nil
}

func payloadOf(cases []typegraph.Case, name string) *typegraph.TypeRef {
	for _, c := range cases {
		if c.Name == name {
			return c.Payload
		}
	}
	return nil
}

func (p *valueParserState) peek() Token { return p.tokens[p.pos] }

func (p *valueParserState) advance() Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *valueParserState) check(k TokenKind) bool { return p.peek().Kind == k }

func (p *valueParserState) expect(k TokenKind) (Token, error) {
	if !p.check(k) {
		return Token{}, p.errorf("expected %s, got %q", k, p.peek().Lexeme)
	}
	return p.advance(), nil
}

func (p *valueParserState) expectIdent() (string, error) {
	tok, err := p.expect(TokIdent)
	if err != nil {
		return "", err
	}
	return tok.Lexeme, nil
}

func (p *valueParserState) errorf(format string, args ...any) error {
	tok := p.peek()
	return fmt.Errorf("witlang: line %d: %s", tok.Line, fmt.Sprintf(format, args...))
}

func printValue(b *strings.Builder, g *typegraph.Graph, ref typegraph.TypeRef, v typegraph.Value) error {
	shallow := ref.Kind()
	if shallow.IsPrimitive() {
		return printPrimitive(b, v)
	}
	resolved, def, err := g.Resolve(ref)
	if err != nil {
		return err
	}
	if resolved.Kind().IsPrimitive() {
		return printPrimitive(b, v)
	}
	switch def.Kind {
	case typegraph.KindList:
		b.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := printValue(b, g, *def.Elem, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
		return nil
	case typegraph.KindTuple:
		b.WriteByte('(')
		for i, item := range v.Items {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := printValue(b, g, def.Fields[i].Type, item); err != nil {
				return err
			}
		}
		b.WriteByte(')')
		return nil
	case typegraph.KindRecord:
		b.WriteByte('{')
		byName := make(map[string]typegraph.TypeRef, len(def.Fields))
		for _, f := range def.Fields {
			byName[f.Name] = f.Type
		}
		for i, fv := range v.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%s: ", fv.Name)
			if err := printValue(b, g, byName[fv.Name], fv.Value); err != nil {
				return err
			}
		}
		b.WriteByte('}')
		return nil
	case typegraph.KindFlags:
		b.WriteByte('{')
		b.WriteString(strings.Join(v.Flags, ", "))
		b.WriteByte('}')
		return nil
	case typegraph.KindEnum:
		b.WriteString(v.Case)
		return nil
	case typegraph.KindOption:
		if v.Case == "none" {
			b.WriteString("none")
			return nil
		}
		b.WriteString("some(")
		if err := printValue(b, g, *payloadOf(def.Cases, "some"), *v.Payload); err != nil {
			return err
		}
		b.WriteByte(')')
		return nil
	case typegraph.KindResult:
		b.WriteString(v.Case)
		pt := payloadOf(def.Cases, v.Case)
		if pt != nil && v.Payload != nil {
			b.WriteByte('(')
			if err := printValue(b, g, *pt, *v.Payload); err != nil {
				return err
			}
			b.WriteByte(')')
		}
		return nil
	case typegraph.KindVariant:
		b.WriteString(v.Case)
		pt := payloadOf(def.Cases, v.Case)
		if pt != nil && v.Payload != nil {
			b.WriteByte('(')
			if err := printValue(b, g, *pt, *v.Payload); err != nil {
				return err
			}
			b.WriteByte(')')
		}
		return nil
	default:
		return fmt.Errorf("witlang: cannot print a value of kind %s", def.Kind)
	}
}

func printPrimitive(b *strings.Builder, v typegraph.Value) error {
	switch v.Kind {
	case typegraph.KindBool:
		b.WriteString(strconv.FormatBool(v.Bool))
	case typegraph.KindU8, typegraph.KindU16, typegraph.KindU32, typegraph.KindU64:
		b.WriteString(strconv.FormatUint(v.Uint, 10))
	case typegraph.KindS8, typegraph.KindS16, typegraph.KindS32, typegraph.KindS64:
		b.WriteString(strconv.FormatInt(v.Int, 10))
	case typegraph.KindF32:
		b.WriteString(strconv.FormatFloat(v.Float, 'g', -1, 32))
	case typegraph.KindF64:
		b.WriteString(strconv.FormatFloat(v.Float, 'g', -1, 64))
	case typegraph.KindChar:
		b.WriteString(strconv.QuoteRune(v.Char))
	case typegraph.KindString:
		b.WriteString(strconv.Quote(v.Str))
	default:
		return fmt.Errorf("witlang: unsupported primitive kind %s", v.Kind)
	}
	return nil
}
