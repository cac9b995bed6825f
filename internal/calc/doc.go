// Package calc evaluates resource calculations.
//
// A calculation expression is an HCL template. Bare text is kept verbatim and
// ${...} interpolations are evaluated against the bound arguments, so
//
//	${first_name}${separator}${last_name}
//
// concatenates three arguments. A template consisting of a single
// interpolation yields the interpolated value with its own type, which lets
// non-string calculations such as ${length(tags)} return an int.
//
// Values cross the HCL boundary through go-cty. Numbers that are not whole
// are rejected on the way back: the IR has no floats.
package calc
