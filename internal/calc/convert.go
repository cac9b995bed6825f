package calc

import (
	"fmt"
	"math/big"

	"github.com/zclconf/go-cty/cty"

	"github.com/roach88/resgate/internal/ir"
)

// ToCty converts an IR value into its cty counterpart.
// Arrays become tuples and objects (and records) become object values, so
// heterogeneous collections keep their element types.
func ToCty(v ir.IRValue) (cty.Value, error) {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case ir.IRString:
		return cty.StringVal(string(val)), nil
	case ir.IRInt:
		return cty.NumberIntVal(int64(val)), nil
	case ir.IRBool:
		return cty.BoolVal(bool(val)), nil
	case ir.IRArray:
		if len(val) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(val))
		for i, elem := range val {
			c, err := ToCty(elem)
			if err != nil {
				return cty.NilVal, fmt.Errorf("[%d]: %w", i, err)
			}
			elems[i] = c
		}
		return cty.TupleVal(elems), nil
	case ir.IRObject:
		return objectToCty(val)
	case ir.Record:
		return objectToCty(val.Attributes)
	default:
		return cty.NilVal, fmt.Errorf("unsupported value type %T", v)
	}
}

func objectToCty(obj ir.IRObject) (cty.Value, error) {
	if len(obj) == 0 {
		return cty.EmptyObjectVal, nil
	}
	attrs := make(map[string]cty.Value, len(obj))
	for k, elem := range obj {
		c, err := ToCty(elem)
		if err != nil {
			return cty.NilVal, fmt.Errorf("%s: %w", k, err)
		}
		attrs[k] = c
	}
	return cty.ObjectVal(attrs), nil
}

// FromCty converts a cty value back into the IR.
// Unknown values and fractional numbers are errors.
func FromCty(v cty.Value) (ir.IRValue, error) {
	if !v.IsKnown() {
		return nil, fmt.Errorf("value is unknown")
	}
	if v.IsNull() {
		return ir.IRNull{}, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return ir.IRString(v.AsString()), nil

	case ty == cty.Number:
		bf := v.AsBigFloat()
		if !bf.IsInt() {
			return nil, fmt.Errorf("number %s is not an integer", bf.Text('g', -1))
		}
		i, acc := bf.Int64()
		if acc != big.Exact {
			return nil, fmt.Errorf("number %s overflows int64", bf.Text('g', -1))
		}
		return ir.IRInt(i), nil

	case ty == cty.Bool:
		return ir.IRBool(v.True()), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		arr := make(ir.IRArray, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, elem := it.Element()
			irElem, err := FromCty(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", len(arr), err)
			}
			arr = append(arr, irElem)
		}
		return arr, nil

	case ty.IsObjectType() || ty.IsMapType():
		obj := make(ir.IRObject)
		it := v.ElementIterator()
		for it.Next() {
			key, elem := it.Element()
			irElem, err := FromCty(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", key.AsString(), err)
			}
			obj[key.AsString()] = irElem
		}
		return obj, nil

	default:
		return nil, fmt.Errorf("unsupported cty type %s", ty.FriendlyName())
	}
}
