package models

import (
	"fmt"

	"github.com/buger/jsonparser"

	"github.com/blobstash/blobstash.go/pkg/constants"
)

// Parse decodes a JSON document, preserving object key order. Strings of the
// form "@filetree/ref:<ref>" decode as pointers.
func Parse(data []byte) (Value, error) {
	raw, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return Null(), fmt.Errorf("%w: %v", constants.ErrInvalidResponse, err)
	}
	return parseValue(raw, dataType)
}

// ParseObject decodes a JSON object. Any other JSON value fails with
// constants.ErrInvalidRecord.
func ParseObject(data []byte) (*Object, error) {
	raw, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", constants.ErrInvalidResponse, err)
	}
	if dataType != jsonparser.Object {
		return nil, fmt.Errorf("%w: got %s", constants.ErrInvalidRecord, dataType)
	}
	return parseObject(raw)
}

func parseValue(raw []byte, dataType jsonparser.ValueType) (Value, error) {
	switch dataType {
	case jsonparser.Null:
		return Null(), nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return Null(), err
		}
		return Bool(b), nil
	case jsonparser.Number:
		return NumberValue(Number(raw)), nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return Null(), err
		}
		if IsPointerString(s) {
			return Pointer(s), nil
		}
		return String(s), nil
	case jsonparser.Object:
		o, err := parseObject(raw)
		if err != nil {
			return Null(), err
		}
		return ObjectValue(o), nil
	case jsonparser.Array:
		return parseList(raw)
	default:
		return Null(), fmt.Errorf("%w: unexpected JSON token %s", constants.ErrInvalidResponse, dataType)
	}
}

func parseObject(raw []byte) (*Object, error) {
	o := NewObject()
	err := jsonparser.ObjectEach(raw, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		v, err := parseValue(value, dataType)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		o.Set(string(key), v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func parseList(raw []byte) (Value, error) {
	items := []Value{}
	var itemErr error
	_, err := jsonparser.ArrayEach(raw, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if itemErr != nil {
			return
		}
		v, err := parseValue(value, dataType)
		if err != nil {
			itemErr = err
			return
		}
		items = append(items, v)
	})
	if err != nil {
		return Null(), err
	}
	if itemErr != nil {
		return Null(), itemErr
	}
	return List(items...), nil
}

// ParseList decodes a JSON array of raw elements, keeping each element's
// bytes so callers can decode them with their own rules.
func ParseList(data []byte) ([][]byte, error) {
	raw, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", constants.ErrInvalidResponse, err)
	}
	if dataType == jsonparser.Null {
		return nil, nil
	}
	if dataType != jsonparser.Array {
		return nil, fmt.Errorf("%w: expected array, got %s", constants.ErrInvalidResponse, dataType)
	}
	var items [][]byte
	_, err = jsonparser.ArrayEach(raw, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if dataType == jsonparser.String {
			// ArrayEach strips the quotes of strings; keep the JSON form.
			value = append(append([]byte{'"'}, value...), '"')
		}
		items = append(items, value)
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
