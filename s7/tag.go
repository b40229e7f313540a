package s7

// Tag is the caller-facing result (or input) of one read_area/write_area
// item: a name, the address it resolved from, its data type, the decoded
// Go value, the raw byte size it occupied on the wire, and any per-item
// error. Read batches never abort on a single bad item (spec §4.5) — the
// error lands on the Tag instead.
type Tag struct {
	Name    string
	Address Address
	Type    Type
	Value   interface{}
	Size    int
	Err     error
}

// NewTag resolves addr and wraps it with name/t ready for ReadTags/WriteTags.
func NewTag(name, addr string, t Type) (Tag, error) {
	a, err := ParseAddress(addr)
	if err != nil {
		return Tag{Name: name, Type: t}, err
	}
	return Tag{Name: name, Address: a, Type: t}, nil
}

// Bool returns the tag's value as a bool, or an error if the tag's type
// isn't BOOL or it carries a per-item error.
func (t Tag) Bool() (bool, error) {
	if t.Err != nil {
		return false, t.Err
	}
	b, ok := t.Value.(bool)
	if !ok {
		return false, &DataTypeError{Type: t.Type, Reason: "value is not bool"}
	}
	return b, nil
}

// Int returns the tag's value widened to int64. Works for any signed or
// unsigned integer base type.
func (t Tag) Int() (int64, error) {
	if t.Err != nil {
		return 0, t.Err
	}
	switch v := t.Value.(type) {
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case byte:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	default:
		return 0, &DataTypeError{Type: t.Type, Reason: "value is not an integer"}
	}
}

// Float returns the tag's value widened to float64. Works for REAL/LREAL.
func (t Tag) Float() (float64, error) {
	if t.Err != nil {
		return 0, t.Err
	}
	switch v := t.Value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, &DataTypeError{Type: t.Type, Reason: "value is not a float"}
	}
}

// String returns the tag's value as a string. Works for STRING/WSTRING.
func (t Tag) String() (string, error) {
	if t.Err != nil {
		return "", t.Err
	}
	s, ok := t.Value.(string)
	if !ok {
		return "", &DataTypeError{Type: t.Type, Reason: "value is not a string"}
	}
	return s, nil
}

// EngineeringValue rescales a numeric tag's raw value by scale and offset
// (engineering = raw*scale + offset), the conversion PLC analog channels
// commonly require between their raw integer reading and a physical unit.
func (t Tag) EngineeringValue(scale, offset float64) (float64, error) {
	raw, err := t.numeric()
	if err != nil {
		return 0, err
	}
	return raw*scale + offset, nil
}

func (t Tag) numeric() (float64, error) {
	if t.Err != nil {
		return 0, t.Err
	}
	if f, err := t.Float(); err == nil {
		return f, nil
	}
	if i, err := t.Int(); err == nil {
		return float64(i), nil
	}
	return 0, &DataTypeError{Type: t.Type, Reason: "value is not numeric"}
}
