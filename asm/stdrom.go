package asm

// Standard-library macros, grounded on the Forth definitions of rot/over:
// rot  ( a b c -- b c a )   via  >r swap r> swap
// over ( a b   -- a b a )   via  swap dup >r swap r>
// rotrot is simply rot applied twice. The reference assembler ships these
// under roms/std.bear, included via `#include "../roms/std.bear";`; that
// file itself isn't source code and wasn't retrieved, so these are redrawn
// from the documented stack semantics (push/pop are this module's >r/r>)
// rather than ported byte-for-byte.
const stdROMSource = `
#define rot [ push swap pop swap ];
#define rotrot [ push swap pop swap push swap pop swap ];
#define over [ swap dup push swap pop ];
`

// stdROMs maps conventional include paths to their built-in source, so
// `#include "std";` resolves without a filesystem roms/ directory.
var stdROMs = map[string]string{
	"std":      stdROMSource,
	"std.bear": stdROMSource,
}
