package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/querysql"
)

// encodeValue converts an attribute value to its column representation.
// Arrays and objects become canonical JSON text; bools become 0/1.
func encodeValue(v ir.IRValue) (any, error) {
	return querysql.ParamValue(v)
}

// decodeValue converts a scanned column value back into the IR, guided by the
// field's declared type.
func decodeValue(field ir.FieldSpec, raw any) (ir.IRValue, error) {
	if raw == nil {
		return ir.IRNull{}, nil
	}

	switch field.Type {
	case "string":
		switch v := raw.(type) {
		case string:
			return ir.IRString(v), nil
		case []byte:
			return ir.IRString(v), nil
		}
	case "int":
		if v, ok := raw.(int64); ok {
			return ir.IRInt(v), nil
		}
	case "bool":
		if v, ok := raw.(int64); ok {
			return ir.IRBool(v != 0), nil
		}
	case "array", "object":
		var text []byte
		switch v := raw.(type) {
		case string:
			text = []byte(v)
		case []byte:
			text = v
		default:
			return nil, fmt.Errorf("field %s: unexpected column value %T", field.Name, raw)
		}
		val, err := ir.UnmarshalIRValue(text)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		return val, nil
	}

	return nil, fmt.Errorf("field %s: cannot decode %T as %s", field.Name, raw, field.Type)
}

// marshalArgs converts IRObject to canonical JSON TEXT for storage.
func marshalArgs(args ir.IRObject) (string, error) {
	if args == nil {
		args = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// marshalValue converts any IR value to canonical JSON TEXT for storage.
func marshalValue(v ir.IRValue) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses canonical JSON TEXT to IRObject.
// Integers are decoded via json.Number, so values above 2^53 keep precision.
func unmarshalArgs(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return obj, nil
}

// unmarshalValue parses canonical JSON TEXT to an IR value.
func unmarshalValue(data string) (ir.IRValue, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}
