package asm

import (
	"os"
	"path/filepath"
	"sort"
)

const wordSize = 4

type definition struct {
	isExpr bool
	expr   Expression
	list   []LineBody
}

// Includer resolves an `#include "path"` directive to source text. FileIncluder
// reads from disk; Processor additionally consults a small built-in registry
// (see stdrom.go) before falling back to one, so `#include "std";` works
// without a filesystem roms/ directory.
type Includer interface {
	Resolve(path string) (string, error)
}

// FileIncluder reads include paths straight off disk.
type FileIncluder struct{}

func (FileIncluder) Resolve(path string) (string, error) {
	b, err := os.ReadFile(path)
	return string(b), err
}

// ProcessedLine is a Line whose address in the final image is known.
type ProcessedLine struct {
	Body    LineBody
	Address LineAddress
}

// Processor resolves a parsed Program into address-ordered ProcessedLines,
// in two passes: pass 1 walks the program in source order computing layout
// (§4.6); pass 2 re-simplifies every data expression now that every label
// and mark is known.
type Processor struct {
	position int

	marks       []int
	labels      map[string]int
	definitions map[string]definition
	addresses   map[LineAddress]LineNumber

	includer      Includer
	includeCache  map[string]Program

	original  Program
	Processed []ProcessedLine
}

// NewProcessor constructs a Processor with the built-in standard-library ROM
// registered under the conventional "std" include path (see stdrom.go), in
// addition to whatever includer is given for real files.
func NewProcessor(includer Includer) *Processor {
	if includer == nil {
		includer = FileIncluder{}
	}
	return &Processor{
		labels:       make(map[string]int),
		definitions:  make(map[string]definition),
		addresses:    make(map[LineAddress]LineNumber),
		includer:     includer,
		includeCache: make(map[string]Program),
	}
}

// Process runs both passes over program, returning a *ProcessingErrors
// aggregating every line-level failure it can find rather than stopping at
// the first (see DESIGN.md's Open Question decision).
func Process(program Program, includer Includer) (*Processor, error) {
	proc := NewProcessor(includer)
	proc.original = program

	var lines []ProcessedLine
	var errs []error
	for _, line := range program.Body {
		proc.addresses[proc.position] = line.Number
		newlines, err := proc.processLine(line)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		lines = append(lines, newlines...)
	}
	if len(errs) > 0 {
		return nil, &ProcessingErrors{Errors: errs}
	}

	for _, pl := range lines {
		fixed, err := proc.fixup(pl)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		proc.Processed = append(proc.Processed, fixed)
	}
	if len(errs) > 0 {
		return nil, &ProcessingErrors{Errors: errs}
	}
	return proc, nil
}

func (p *Processor) addMark(position int) { p.marks = append(p.marks, position) }

// resolvePrev returns the largest mark address strictly below position, via
// a binary search for position followed by a step back of one.
func (p *Processor) resolvePrev() (int, error) {
	i := sort.SearchInts(p.marks, p.position)
	if i == 0 {
		return 0, ErrPreviousMarkNotSet
	}
	return p.marks[i-1], nil
}

// resolveNext returns the smallest mark address >= position, or false if
// none exists yet.
func (p *Processor) resolveNext(position int) (int, bool) {
	i := sort.SearchInts(p.marks, position)
	if i >= len(p.marks) {
		return 0, false
	}
	return p.marks[i], true
}

func (p *Processor) resolveLabel(name string) (int, bool) {
	addr, ok := p.labels[name]
	return addr, ok
}

func (p *Processor) resolveDefinition(name string) (definition, bool) {
	d, ok := p.definitions[name]
	return d, ok
}

func (p *Processor) expectDefinitionList(name string) ([]LineBody, error) {
	d, ok := p.resolveDefinition(name)
	if !ok {
		return nil, &UnknownDefinition{Name: name}
	}
	if d.isExpr {
		return nil, ErrExpectedList
	}
	return d.list, nil
}

func (p *Processor) expectDefinitionExpression(name string) (Expression, error) {
	d, ok := p.resolveDefinition(name)
	if !ok {
		return nil, &UnknownDefinition{Name: name}
	}
	if !d.isExpr {
		return nil, ErrExpectedExpression
	}
	return d.expr, nil
}

func (p *Processor) alignTo(boundary int) int {
	padding := boundary - (p.position % boundary)
	if padding != boundary {
		p.position += padding
	}
	return p.position
}

func (p *Processor) processLine(line Line) ([]ProcessedLine, error) {
	processed, err := p.processLineBody(line.Body)
	if err != nil {
		return nil, err
	}
	if line.Mark || len(line.Labels) > 0 {
		position := p.position
		if len(processed) > 0 {
			position = processed[0].Address
		}
		if line.Mark {
			p.addMark(position)
		}
		for _, label := range line.Labels {
			if _, exists := p.labels[label]; exists {
				return nil, &LabelAlreadyDefined{Name: label}
			}
			p.labels[label] = position
		}
	}
	return processed, nil
}

func (p *Processor) processLineBody(body LineBody) ([]ProcessedLine, error) {
	switch b := body.(type) {
	case DataLine:
		return p.processDataLine(b.Data)
	case SimpleLine:
		position := p.position
		p.position++
		return []ProcessedLine{{Body: SimpleLine{Op: b.Op}, Address: position}}, nil
	case DirectiveLine:
		return p.processDirective(b.Directive)
	case DefinitionRefLine:
		list, err := p.expectDefinitionList(b.Name)
		if err != nil {
			return nil, err
		}
		var out []ProcessedLine
		for _, item := range list {
			sub, err := p.processLineBody(item)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	default:
		return nil, &ParseError{Message: "unreachable line body kind"}
	}
}

func (p *Processor) processDataLine(data Data) ([]ProcessedLine, error) {
	if _, isStr := data.(StringData); isStr {
		position := p.alignTo(wordSize)
		processedData, err := p.processData(data)
		if err != nil {
			return nil, err
		}
		return []ProcessedLine{{Body: DataLine{processedData}, Address: position}}, nil
	}
	position := p.position
	processedData, err := p.processData(data)
	if err != nil {
		return nil, err
	}
	return []ProcessedLine{{Body: DataLine{processedData}, Address: position}}, nil
}

func (p *Processor) processData(data Data) (Data, error) {
	p.position += data.SizeInBytes()
	vd, ok := data.(ValueData)
	if !ok {
		return data, nil
	}
	expr, err := p.processExpression(vd.Expr)
	if err != nil {
		return nil, err
	}
	expr, err = p.simplifyExpression(expr, p.position)
	if err != nil {
		return nil, err
	}
	if prim, ok := AsPrimitive(expr); ok {
		if vd.Size.Bytes() < prim.MinBytes() {
			return nil, &DataSizeMismatch{Expected: vd.Size.Bytes(), Actual: prim.MinBytes()}
		}
	}
	return ValueData{Size: vd.Size, Expr: expr}, nil
}

func (p *Processor) processDirective(dir Directive) ([]ProcessedLine, error) {
	switch d := dir.(type) {
	case AtDirective:
		expr, err := p.simplifyExpression(d.Expr, p.position)
		if err != nil {
			return nil, err
		}
		prim, _ := AsPrimitive(expr)
		value := int(prim)
		if value < p.position {
			return nil, ErrCannotAtToBeforeCurrentPosition
		}
		p.position = value
		return nil, nil
	case AlignToDirective:
		expr, err := p.simplifyExpression(d.Expr, p.position)
		if err != nil {
			return nil, err
		}
		prim, _ := AsPrimitive(expr)
		p.alignTo(int(prim))
		return nil, nil
	case IncludeDirective:
		program, err := p.includeFile(d.Path)
		if err != nil {
			return nil, err
		}
		var out []ProcessedLine
		for _, line := range program.Body {
			sub, err := p.processLine(line)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	case DefineListDirective:
		if _, exists := p.definitions[d.Name]; exists {
			return nil, &DefinitionAlreadyDefined{Name: d.Name}
		}
		p.definitions[d.Name] = definition{isExpr: false, list: d.Body}
		return nil, nil
	case DefineExpressionDirective:
		if _, exists := p.definitions[d.Name]; exists {
			return nil, &DefinitionAlreadyDefined{Name: d.Name}
		}
		p.definitions[d.Name] = definition{isExpr: true, expr: d.Expr}
		return nil, nil
	default:
		return nil, &ParseError{Message: "unreachable directive kind"}
	}
}

func (p *Processor) includeFile(path string) (Program, error) {
	if cached, ok := p.includeCache[path]; ok {
		return cached, nil
	}
	src, err := p.resolveInclude(path)
	if err != nil {
		return Program{}, err
	}
	program, err := Parse(src)
	if err != nil {
		return Program{}, err
	}
	p.includeCache[path] = program
	return program, nil
}

func (p *Processor) resolveInclude(path string) (string, error) {
	if src, ok := stdROMs[filepath.Base(path)]; ok {
		return src, nil
	}
	if src, ok := stdROMs[path]; ok {
		return src, nil
	}
	return p.includer.Resolve(path)
}

// processExpression resolves definition references and quoted opcodes
// ahead of the position-sensitive simplify pass; these don't depend on
// marks or labels so they're folded unconditionally.
func (p *Processor) processExpression(expr Expression) (Expression, error) {
	switch e := expr.(type) {
	case TreeExpr:
		lhs, err := p.processExpression(e.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := p.processExpression(e.RHS)
		if err != nil {
			return nil, err
		}
		return TreeExpr{Op: e.Op, LHS: lhs, RHS: rhs}, nil
	case DefinitionRefExpr:
		return p.expectDefinitionExpression(e.Name)
	case QuotedExpr:
		return PrimitiveExpr{Value: Primitive(e.Op)}, nil
	default:
		return expr, nil
	}
}

// simplifyExpression folds Here/Prev/Next/label references against the
// processor's current mark and label tables. Next and unresolved labels
// become typed forward references when their target isn't known yet; those
// are only errors if still unresolved after pass 2's fixup.
func (p *Processor) simplifyExpression(expr Expression, here int) (Expression, error) {
	switch e := expr.(type) {
	case AddressExpr:
		switch addr := e.Addr.(type) {
		case HereAddress:
			return PrimitiveExpr{Value: Primitive(here)}, nil
		case PrevAddress:
			prev, err := p.resolvePrev()
			if err != nil {
				return nil, err
			}
			return PrimitiveExpr{Value: Primitive(prev)}, nil
		case NextAddress:
			if addr, ok := p.resolveNext(here); ok {
				return PrimitiveExpr{Value: Primitive(addr)}, nil
			}
			return ForwardMarkRef{Position: here}, nil
		case LabelRefAddress:
			if a, ok := p.resolveLabel(addr.Name); ok {
				return PrimitiveExpr{Value: Primitive(a)}, nil
			}
			return ForwardLabelRef{Name: addr.Name}, nil
		}
		return expr, nil
	case TreeExpr:
		lhs, err := p.simplifyExpression(e.LHS, here)
		if err != nil {
			return nil, err
		}
		rhs, err := p.simplifyExpression(e.RHS, here)
		if err != nil {
			return nil, err
		}
		lp, lok := AsPrimitive(lhs)
		rp, rok := AsPrimitive(rhs)
		if lok && rok {
			return PrimitiveExpr{Value: foldBinOp(e.Op, lp, rp)}, nil
		}
		return TreeExpr{Op: e.Op, LHS: lhs, RHS: rhs}, nil
	case DefinitionRefExpr:
		return p.expectDefinitionExpression(e.Name)
	case ForwardMarkRef:
		if addr, ok := p.resolveNext(e.Position); ok {
			return PrimitiveExpr{Value: Primitive(addr)}, nil
		}
		return nil, ErrNextMarkNotSet
	case ForwardLabelRef:
		if addr, ok := p.resolveLabel(e.Name); ok {
			return PrimitiveExpr{Value: Primitive(addr)}, nil
		}
		return nil, &UnknownLabel{Name: e.Name}
	default:
		return expr, nil
	}
}

func foldBinOp(op BinOp, lhs, rhs Primitive) Primitive {
	switch op {
	case BinPlus:
		return lhs.Add(rhs)
	case BinMinus:
		return lhs.Sub(rhs)
	case BinTimes:
		return lhs.Mul(rhs)
	case BinDiv:
		return lhs.Div(rhs)
	case BinAnd:
		return lhs.And(rhs)
	case BinOr:
		return lhs.Or(rhs)
	case BinPow:
		return lhs.Pow(rhs)
	default:
		return 0
	}
}

// fixup re-simplifies a data clause's expression now that pass 1 has
// finished and every label/mark is known. Non-data lines pass through
// unchanged: their layout never depended on a forward reference.
func (p *Processor) fixup(pl ProcessedLine) (ProcessedLine, error) {
	dl, ok := pl.Body.(DataLine)
	if !ok {
		return pl, nil
	}
	vd, ok := dl.Data.(ValueData)
	if !ok {
		return pl, nil
	}
	expr, err := p.simplifyExpression(vd.Expr, pl.Address)
	if err != nil {
		return ProcessedLine{}, err
	}
	prim, ok := AsPrimitive(expr)
	if !ok {
		return ProcessedLine{}, &ExpressionCannotBeSimplified{Expr: expr}
	}
	if vd.Size.Bytes() < prim.MinBytes() {
		return ProcessedLine{}, &DataSizeMismatch{Expected: vd.Size.Bytes(), Actual: prim.MinBytes()}
	}
	return ProcessedLine{Address: pl.Address, Body: DataLine{ValueData{Size: vd.Size, Expr: PrimitiveExpr{Value: prim}}}}, nil
}
