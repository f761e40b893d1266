package witlang

import (
	"fmt"

	"github.com/canonkv/canonkv/internal/typegraph"
)

// IDLParser implements store.TypeGraphParser by driving a
// typegraph.Builder from hand-lexed IDL source. Grammar, informally:
//
//	program    := [ "package" ns ":" pkg [ "@" version ] ";" ] interface*
//	interface  := "interface" ident "{" decl* "}"
//	decl       := record | variant | enum | flags | alias
//	record     := "record" ident "{" field ("," field)* [","] "}"
//	field      := ident ":" typeref
//	variant    := "variant" ident "{" case ("," case)* [","] "}"
//	case       := ident [ "(" typeref ")" ]
//	enum       := "enum" ident "{" ident ("," ident)* [","] "}"
//	flags      := "flags" ident "{" ident ("," ident)* [","] "}"
//	alias      := "type" ident "=" typeref
//	typeref    := primitive | ident
//	            | "list" "<" typeref ">"
//	            | "option" "<" typeref ">"
//	            | "tuple" "<" typeref ("," typeref)* ">"
//	            | "result" [ "<" ( typeref | "_" ) [ "," typeref ] ">" ]
//
// Declarations in one interface resolve bare-name typerefs against types
// already declared earlier in that same interface; cross-interface
// references require no such lookup since this grammar has no imports.
type IDLParser struct{}

var primitiveKinds = map[string]typegraph.Kind{
	"bool": typegraph.KindBool, "u8": typegraph.KindU8, "u16": typegraph.KindU16,
	"u32": typegraph.KindU32, "u64": typegraph.KindU64, "s8": typegraph.KindS8,
	"s16": typegraph.KindS16, "s32": typegraph.KindS32, "s64": typegraph.KindS64,
	"f32": typegraph.KindF32, "f64": typegraph.KindF64, "char": typegraph.KindChar,
	"string": typegraph.KindString,
}

type idlParserState struct {
	tokens []Token
	pos    int
	b      *typegraph.Builder

	ns, pkg, version string
	iface            string
	local            map[string]typegraph.TypeRef
	anonCounter      int
}

// Parse implements store.TypeGraphParser.
func (IDLParser) Parse(idlText string) (*typegraph.Graph, error) {
	toks, err := NewLexer(idlText).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &idlParserState{tokens: toks, b: typegraph.NewBuilder()}
	if err := p.program(); err != nil {
		return nil, err
	}
	return p.b.Build(), nil
}

func (p *idlParserState) program() error {
	if p.checkIdent("package") {
		if err := p.packageHeader(); err != nil {
			return err
		}
	}
	for !p.check(TokEOF) {
		if err := p.interfaceBlock(); err != nil {
			return err
		}
	}
	return nil
}

func (p *idlParserState) packageHeader() error {
	p.advance() // "package"
	ns, err := p.expectIdent()
	if err != nil {
		return err
	}
	if _, err := p.expect(TokColon); err != nil {
		return err
	}
	pkg, err := p.expectIdent()
	if err != nil {
		return err
	}
	p.ns, p.pkg = ns, pkg
	if p.check(TokAt) {
		p.advance()
		p.version, err = p.version_()
		if err != nil {
			return err
		}
	}
	_, err = p.expect(TokSemicolon)
	return err
}

func (p *idlParserState) version_() (string, error) {
	// scanNumber lexes a dotted run like "1.2.3" as a single TokFloat.
	tok := p.peek()
	if tok.Kind != TokFloat && tok.Kind != TokInt {
		return "", p.errorf("expected version after '@', got %q", tok.Lexeme)
	}
	p.advance()
	return tok.Lexeme, nil
}

func (p *idlParserState) interfaceBlock() error {
	if _, err := p.expectKeyword("interface"); err != nil {
		return err
	}
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	if _, err := p.expect(TokLeftBrace); err != nil {
		return err
	}
	p.iface = name
	p.local = map[string]typegraph.TypeRef{}
	for !p.check(TokRightBrace) {
		if err := p.decl(); err != nil {
			return err
		}
	}
	_, err = p.expect(TokRightBrace)
	return err
}

func (p *idlParserState) qualify(name string) string {
	if p.ns == "" {
		return p.iface + "#" + name
	}
	if p.version == "" {
		return p.ns + ":" + p.pkg + "/" + p.iface + "#" + name
	}
	return p.ns + ":" + p.pkg + "@" + p.version + "/" + p.iface + "#" + name
}

func (p *idlParserState) decl() error {
	kw := p.peek()
	switch kw.Lexeme {
	case "record":
		return p.recordDecl()
	case "variant":
		return p.variantDecl()
	case "enum":
		return p.enumDecl()
	case "flags":
		return p.flagsDecl()
	case "type":
		return p.aliasDecl()
	default:
		return p.errorf("expected a declaration keyword, got %q", kw.Lexeme)
	}
}

func (p *idlParserState) recordDecl() error {
	p.advance()
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	if _, err := p.expect(TokLeftBrace); err != nil {
		return err
	}
	var fields []typegraph.Field
	for !p.check(TokRightBrace) {
		fname, err := p.expectIdent()
		if err != nil {
			return err
		}
		if _, err := p.expect(TokColon); err != nil {
			return err
		}
		ft, err := p.typeref()
		if err != nil {
			return err
		}
		fields = append(fields, typegraph.Field{Name: fname, Type: ft})
		if p.check(TokComma) {
			p.advance()
		}
	}
	p.advance() // }
	ref, err := p.b.DeclareRecord(p.qualify(name), fields)
	if err != nil {
		return err
	}
	p.local[name] = ref
	return nil
}

func (p *idlParserState) variantDecl() error {
	p.advance()
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	if _, err := p.expect(TokLeftBrace); err != nil {
		return err
	}
	var cases []typegraph.Case
	for !p.check(TokRightBrace) {
		cname, err := p.expectIdent()
		if err != nil {
			return err
		}
		c := typegraph.Case{Name: cname}
		if p.check(TokLeftParen) {
			p.advance()
			pt, err := p.typeref()
			if err != nil {
				return err
			}
			if _, err := p.expect(TokRightParen); err != nil {
				return err
			}
			c.Payload = &pt
		}
		cases = append(cases, c)
		if p.check(TokComma) {
			p.advance()
		}
	}
	p.advance() // }
	ref, err := p.b.DeclareVariant(p.qualify(name), cases)
	if err != nil {
		return err
	}
	p.local[name] = ref
	return nil
}

func (p *idlParserState) enumDecl() error {
	p.advance()
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	names, err := p.identList()
	if err != nil {
		return err
	}
	ref, err := p.b.DeclareEnum(p.qualify(name), names)
	if err != nil {
		return err
	}
	p.local[name] = ref
	return nil
}

func (p *idlParserState) flagsDecl() error {
	p.advance()
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	names, err := p.identList()
	if err != nil {
		return err
	}
	ref, err := p.b.DeclareFlags(p.qualify(name), names)
	if err != nil {
		return err
	}
	p.local[name] = ref
	return nil
}

func (p *idlParserState) aliasDecl() error {
	p.advance()
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	if _, err := p.expect(TokEquals); err != nil {
		return err
	}
	target, err := p.typeref()
	if err != nil {
		return err
	}
	ref, err := p.b.DeclareAlias(p.qualify(name), target)
	if err != nil {
		return err
	}
	p.local[name] = ref
	return nil
}

func (p *idlParserState) identList() ([]string, error) {
	if _, err := p.expect(TokLeftBrace); err != nil {
		return nil, err
	}
	var names []string
	for !p.check(TokRightBrace) {
		n, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		names = append(names, n)
		if p.check(TokComma) {
			p.advance()
		}
	}
	p.advance() // }
	return names, nil
}

func (p *idlParserState) typeref() (typegraph.TypeRef, error) {
	tok := p.peek()
	if tok.Kind != TokIdent {
		return typegraph.TypeRef{}, p.errorf("expected a type, got %q", tok.Lexeme)
	}
	if k, ok := primitiveKinds[tok.Lexeme]; ok {
		p.advance()
		return typegraph.Primitive(k)
	}
	switch tok.Lexeme {
	case "list":
		return p.parameterized1(func(elem typegraph.TypeRef) (typegraph.TypeRef, error) {
			return p.b.DeclareList(p.anonName("list"), elem)
		})
	case "option":
		return p.parameterized1(func(elem typegraph.TypeRef) (typegraph.TypeRef, error) {
			return p.b.DeclareOption(p.anonName("option"), elem)
		})
	case "tuple":
		return p.tupleType()
	case "result":
		return p.resultType()
	default:
		p.advance()
		ref, ok := p.local[tok.Lexeme]
		if !ok {
			return typegraph.TypeRef{}, p.errorf("undeclared type %q", tok.Lexeme)
		}
		return ref, nil
	}
}

// anonName mints a unique qualified name for an anonymous constructor
// (list<T>, option<T>, ...) that DeclareList/DeclareOption/etc. still
// requires a name for.
func (p *idlParserState) anonName(kind string) string {
	p.anonCounter++
	return p.qualify(fmt.Sprintf("$anon-%s-%d", kind, p.anonCounter))
}

func (p *idlParserState) parameterized1(build func(typegraph.TypeRef) (typegraph.TypeRef, error)) (typegraph.TypeRef, error) {
	p.advance() // keyword
	if _, err := p.expect(TokLeftAngle); err != nil {
		return typegraph.TypeRef{}, err
	}
	elem, err := p.typeref()
	if err != nil {
		return typegraph.TypeRef{}, err
	}
	if _, err := p.expect(TokRightAngle); err != nil {
		return typegraph.TypeRef{}, err
	}
	return build(elem)
}

func (p *idlParserState) tupleType() (typegraph.TypeRef, error) {
	p.advance() // "tuple"
	if _, err := p.expect(TokLeftAngle); err != nil {
		return typegraph.TypeRef{}, err
	}
	var elems []typegraph.TypeRef
	for {
		t, err := p.typeref()
		if err != nil {
			return typegraph.TypeRef{}, err
		}
		elems = append(elems, t)
		if p.check(TokComma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(TokRightAngle); err != nil {
		return typegraph.TypeRef{}, err
	}
	return p.b.DeclareTuple(p.anonName("tuple"), elems)
}

func (p *idlParserState) resultType() (typegraph.TypeRef, error) {
	p.advance() // "result"
	var okT, errT *typegraph.TypeRef
	if p.check(TokLeftAngle) {
		p.advance()
		if p.peek().Lexeme == "_" {
			p.advance()
		} else {
			t, err := p.typeref()
			if err != nil {
				return typegraph.TypeRef{}, err
			}
			okT = &t
		}
		if p.check(TokComma) {
			p.advance()
			t, err := p.typeref()
			if err != nil {
				return typegraph.TypeRef{}, err
			}
			errT = &t
		}
		if _, err := p.expect(TokRightAngle); err != nil {
			return typegraph.TypeRef{}, err
		}
	}
	return p.b.DeclareResult(p.anonName("result"), okT, errT)
}

func (p *idlParserState) peek() Token { return p.tokens[p.pos] }

func (p *idlParserState) advance() Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *idlParserState) check(k TokenKind) bool { return p.peek().Kind == k }

func (p *idlParserState) checkIdent(lexeme string) bool {
	tok := p.peek()
	return tok.Kind == TokIdent && tok.Lexeme == lexeme
}

func (p *idlParserState) expect(k TokenKind) (Token, error) {
	if !p.check(k) {
		return Token{}, p.errorf("expected %s, got %q", k, p.peek().Lexeme)
	}
	return p.advance(), nil
}

func (p *idlParserState) expectIdent() (string, error) {
	tok, err := p.expect(TokIdent)
	if err != nil {
		return "", err
	}
	return tok.Lexeme, nil
}

func (p *idlParserState) expectKeyword(kw string) (Token, error) {
	if !p.checkIdent(kw) {
		return Token{}, p.errorf("expected %q, got %q", kw, p.peek().Lexeme)
	}
	return p.advance(), nil
}

func (p *idlParserState) errorf(format string, args ...any) error {
	tok := p.peek()
	return fmt.Errorf("witlang: line %d: %s", tok.Line, fmt.Sprintf(format, args...))
}
