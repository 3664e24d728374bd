package asm

import "sort"

// DebugTag classifies a source line for the debug sidecar's body listing.
type DebugTag string

const (
	DebugData        DebugTag = "data"
	DebugMacro       DebugTag = "macro"
	DebugDirective   DebugTag = "directive"
	DebugInstruction DebugTag = "instruction"
)

// DebugLine is one entry in the sidecar's ordered body listing, in original
// source order (including lines that produced no emitted bytes, such as
// directives).
type DebugLine struct {
	Tag     DebugTag `json:"tag"`
	Content string   `json:"content"`
}

// DebugEntry maps one emitted byte address back to its source line number
// and any label names bound at that address.
type DebugEntry struct {
	Address LineAddress `json:"address"`
	Line    LineNumber  `json:"line"`
	Names   []string    `json:"names"`
}

// Debug is the full sidecar document, serialized as indented JSON.
type Debug struct {
	Body    []DebugLine  `json:"body"`
	Entries []DebugEntry `json:"entries"`
}

// MakeDebug builds the debug sidecar from the processor's bookkeeping: the
// original (pre-resolution) program for the body listing, and the label and
// source-address tables for the entry list.
func (p *Processor) MakeDebug() Debug {
	body := make([]DebugLine, 0, len(p.original.Body))
	for _, line := range p.original.Body {
		body = append(body, debugLineFor(line.Body))
	}

	namesByAddress := make(map[int][]string)
	for name, addr := range p.labels {
		namesByAddress[addr] = append(namesByAddress[addr], name)
	}
	for _, names := range namesByAddress {
		sort.Strings(names)
	}

	entries := make([]DebugEntry, 0, len(p.addresses))
	for addr, line := range p.addresses {
		entries = append(entries, DebugEntry{
			Address: addr,
			Line:    line,
			Names:   namesByAddress[addr],
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Address < entries[j].Address })

	return Debug{Body: body, Entries: entries}
}

func debugLineFor(body LineBody) DebugLine {
	switch body.(type) {
	case DataLine:
		return DebugLine{Tag: DebugData, Content: body.String()}
	case SimpleLine:
		return DebugLine{Tag: DebugInstruction, Content: body.String()}
	case DirectiveLine:
		return DebugLine{Tag: DebugDirective, Content: body.String()}
	case DefinitionRefLine:
		return DebugLine{Tag: DebugMacro, Content: body.String()}
	default:
		return DebugLine{Tag: DebugInstruction, Content: body.String()}
	}
}
