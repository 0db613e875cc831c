package tarantool

import (
	"fmt"
)

// SchemaResolver is an interface for resolving schema details.
type SchemaResolver interface {
	// ResolveSpace returns resolved space number or an error
	// if it cannot be resolved.
	ResolveSpace(space interface{}) (spaceNo uint32, err error)
	// ResolveIndex returns resolved index number or an error
	// if it cannot be resolved.
	ResolveIndex(index interface{}, spaceNo uint32) (indexNo uint32, err error)
}

// Schema contains information about spaces and indexes.
type Schema struct {
	// Spaces is map from space names to spaces.
	Spaces map[string]*SpaceInfo
	// SpacesById is map from space numbers to spaces.
	SpacesById map[uint32]*SpaceInfo
}

// SpaceInfo contains information about a space.
type SpaceInfo struct {
	Id          uint32
	Name        string
	Engine      string
	Temporary   bool // Is this space temporary?
	FieldsCount uint32
	Fields      map[string]*FieldInfo
	FieldsById  map[uint32]*FieldInfo
	Indexes     map[string]*IndexInfo
	IndexesById map[uint32]*IndexInfo
}

// FieldInfo contains information about a space format field.
type FieldInfo struct {
	Id   uint32
	Name string
	Type string
}

// IndexInfo contains information about an index.
type IndexInfo struct {
	Id      uint32
	SpaceId uint32
	Name    string
	Type    string
	Unique  bool
	Fields  []*IndexField
}

// IndexField contains information about an index part.
type IndexField struct {
	Id   uint32
	Type string
}

const (
	maxSchemas = 10000
	vspaceSpId = 281
	vindexSpId = 289
)

// NewSchema returns an empty schema. Numbers resolve as is, names never
// resolve.
func NewSchema() *Schema {
	return &Schema{
		Spaces:     make(map[string]*SpaceInfo),
		SpacesById: make(map[uint32]*SpaceInfo),
	}
}

// GetSchema reads the schema from the _vspace and _vindex system spaces.
func GetSchema(doer Doer) (*Schema, error) {
	schema := NewSchema()

	spacesReq := NewSelectRequest(vspaceSpId).Limit(maxSchemas)
	spacesResp, err := doer.Do(spacesReq).Get()
	if err != nil {
		return nil, err
	}
	for _, row := range spacesResp.Data {
		space, err := decodeSpaceRow(row)
		if err != nil {
			return nil, err
		}
		schema.SpacesById[space.Id] = space
		schema.Spaces[space.Name] = space
	}

	indexesReq := NewSelectRequest(vindexSpId).Limit(maxSchemas)
	indexesResp, err := doer.Do(indexesReq).Get()
	if err != nil {
		return nil, err
	}
	for _, row := range indexesResp.Data {
		index, err := decodeIndexRow(row)
		if err != nil {
			return nil, err
		}
		// _vindex shows only indexes of visible spaces.
		if space, ok := schema.SpacesById[index.SpaceId]; ok {
			space.IndexesById[index.Id] = index
			space.Indexes[index.Name] = index
		}
	}
	return schema, nil
}

func decodeSpaceRow(row interface{}) (*SpaceInfo, error) {
	fields, ok := row.([]interface{})
	if !ok || len(fields) < 5 {
		return nil, fmt.Errorf("unexpected schema format (space row): %v", row)
	}

	space := &SpaceInfo{
		Fields:      make(map[string]*FieldInfo),
		FieldsById:  make(map[uint32]*FieldInfo),
		Indexes:     make(map[string]*IndexInfo),
		IndexesById: make(map[uint32]*IndexInfo),
	}
	if space.Id, ok = toUint32(fields[0]); !ok {
		return nil, fmt.Errorf("unexpected schema format (space id): %v", fields[0])
	}
	if space.Name, ok = fields[2].(string); !ok {
		return nil, fmt.Errorf("unexpected schema format (space name): %v", fields[2])
	}
	if space.Engine, ok = fields[3].(string); !ok {
		return nil, fmt.Errorf("unexpected schema format (space engine): %v", fields[3])
	}
	if space.FieldsCount, ok = toUint32(fields[4]); !ok {
		return nil, fmt.Errorf("unexpected schema format (field count): %v", fields[4])
	}

	if len(fields) >= 6 {
		switch flags := fields[5].(type) {
		case string:
			space.Temporary = flags == "temporary"
		case map[interface{}]interface{}:
			if temp, ok := flags["temporary"].(bool); ok {
				space.Temporary = temp
			}
		default:
			return nil, fmt.Errorf("unexpected schema format (space flags): %v", fields[5])
		}
	}

	if len(fields) >= 7 {
		format, ok := fields[6].([]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected schema format (space format): %v", fields[6])
		}
		for i, f := range format {
			opts, ok := f.(map[interface{}]interface{})
			if !ok {
				continue
			}
			field := &FieldInfo{Id: uint32(i)}
			if name, ok := opts["name"].(string); ok {
				field.Name = name
			}
			if typ, ok := opts["type"].(string); ok {
				field.Type = typ
			}
			space.FieldsById[field.Id] = field
			if field.Name != "" {
				space.Fields[field.Name] = field
			}
		}
	}
	return space, nil
}

func decodeIndexRow(row interface{}) (*IndexInfo, error) {
	fields, ok := row.([]interface{})
	if !ok || len(fields) < 6 {
		return nil, fmt.Errorf("unexpected schema format (index row): %v", row)
	}

	index := new(IndexInfo)
	if index.SpaceId, ok = toUint32(fields[0]); !ok {
		return nil, fmt.Errorf("unexpected schema format (index space id): %v", fields[0])
	}
	if index.Id, ok = toUint32(fields[1]); !ok {
		return nil, fmt.Errorf("unexpected schema format (index id): %v", fields[1])
	}
	if index.Name, ok = fields[2].(string); !ok {
		return nil, fmt.Errorf("unexpected schema format (index name): %v", fields[2])
	}
	if index.Type, ok = fields[3].(string); !ok {
		return nil, fmt.Errorf("unexpected schema format (index type): %v", fields[3])
	}

	switch opts := fields[4].(type) {
	case map[interface{}]interface{}:
		if unique, ok := opts["unique"].(bool); ok {
			index.Unique = unique
		}
	default:
		if unique, ok := toUint32(opts); ok {
			index.Unique = unique > 0
		} else {
			return nil, fmt.Errorf("unexpected schema format (index flags): %v", fields[4])
		}
	}

	switch parts := fields[5].(type) {
	case []interface{}:
		for _, p := range parts {
			field := new(IndexField)
			switch part := p.(type) {
			case []interface{}:
				if len(part) < 2 {
					return nil, fmt.Errorf("unexpected schema format (index part): %v", p)
				}
				field.Id, _ = toUint32(part[0])
				field.Type, _ = part[1].(string)
			case map[interface{}]interface{}:
				field.Id, _ = toUint32(part["field"])
				field.Type, _ = part["type"].(string)
			default:
				return nil, fmt.Errorf("unexpected schema format (index part): %v", p)
			}
			index.Fields = append(index.Fields, field)
		}
	default:
		return nil, fmt.Errorf("unexpected schema format (index fields): %v", fields[5])
	}
	return index, nil
}

// toUint32 converts any Go integer to uint32. Negative and out of range
// values are not converted.
func toUint32(v interface{}) (uint32, bool) {
	var n int64
	switch v := v.(type) {
	case uint:
		return uint64ToUint32(uint64(v))
	case uint64:
		return uint64ToUint32(v)
	case uint32:
		return v, true
	case uint16:
		return uint32(v), true
	case uint8:
		return uint32(v), true
	case int:
		n = int64(v)
	case int64:
		n = v
	case int32:
		n = int64(v)
	case int16:
		n = int64(v)
	case int8:
		n = int64(v)
	default:
		return 0, false
	}
	if n < 0 {
		return 0, false
	}
	return uint64ToUint32(uint64(n))
}

func uint64ToUint32(v uint64) (uint32, bool) {
	if v > 0xFFFFFFFF {
		return 0, false
	}
	return uint32(v), true
}

// ResolveSpace tries to resolve a space number. Names are looked up in
// the schema, numbers of any integer type are returned as is.
func (schema *Schema) ResolveSpace(s interface{}) (uint32, error) {
	switch s := s.(type) {
	case string:
		space, ok := schema.Spaces[s]
		if !ok {
			return 0, UnknownSpaceError{Space: s}
		}
		return space.Id, nil
	case SpaceInfo:
		return s.Id, nil
	case *SpaceInfo:
		return s.Id, nil
	}
	if spaceNo, ok := toUint32(s); ok {
		return spaceNo, nil
	}
	return 0, UnknownSpaceError{Space: s}
}

// ResolveIndex tries to resolve an index number. Names are looked up among
// the indexes of the space, numbers of any integer type are returned as is.
func (schema *Schema) ResolveIndex(i interface{}, spaceNo uint32) (uint32, error) {
	switch i := i.(type) {
	case string:
		space, ok := schema.SpacesById[spaceNo]
		if !ok {
			return 0, UnknownSpaceError{Space: spaceNo}
		}
		index, ok := space.Indexes[i]
		if !ok {
			return 0, UnknownIndexError{Space: spaceNo, Index: i}
		}
		return index.Id, nil
	case IndexInfo:
		return i.Id, nil
	case *IndexInfo:
		return i.Id, nil
	}
	if indexNo, ok := toUint32(i); ok {
		return indexNo, nil
	}
	return 0, UnknownIndexError{Space: spaceNo, Index: i}
}
