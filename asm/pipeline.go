package asm

// Build runs the full parse -> process -> assemble pipeline over src and
// returns the emitted image and its debug sidecar. includer resolves
// `#include` paths other than the built-in "std" ROM; nil uses FileIncluder.
func Build(src string, includer Includer) ([]byte, Debug, error) {
	program, err := Parse(src)
	if err != nil {
		return nil, Debug{}, err
	}
	proc, err := Process(program, includer)
	if err != nil {
		return nil, Debug{}, err
	}
	image, err := Assemble(proc)
	if err != nil {
		return nil, Debug{}, err
	}
	return image, proc.MakeDebug(), nil
}
