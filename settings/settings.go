// Package settings reads and changes session settings of a connection
// through the _session_settings system space.
//
// A session setting is stored as a tuple [name, value]. Settings are bound
// to the session, so a change is visible only to the connection that made
// it and is lost on reconnect.
//
// Since: 1.10.0
//
// See also:
//
// * Session settings https://www.tarantool.io/en/doc/latest/reference/reference_lua/box_space/_session_settings/
package settings

import (
	"errors"
	"fmt"

	"github.com/JeffCarpenter/go-tarantool"
)

// ErrUnknownSetting is returned for a setting the server does not have.
var ErrUnknownSetting = errors.New("unknown session setting")

// Settings is a handle to the session settings of a connection.
type Settings struct {
	space *tarantool.Space
}

// Open creates a handle to the session settings of the connection.
func Open(conn tarantool.Connector) (*Settings, error) {
	space, err := tarantool.NewSpace(conn, SpaceId)
	if err != nil {
		return nil, err
	}
	return &Settings{space: space}, nil
}

// Get returns the value of the setting.
func (s *Settings) Get(name string) (interface{}, error) {
	resp, err := s.space.Select([]interface{}{name}, tarantool.SelectOpts{
		Limit: tarantool.MakeOptUint32(1),
	})
	if err != nil {
		return nil, err
	}
	return valueOf(name, resp)
}

// Set changes the value of the setting and returns the stored value.
func (s *Settings) Set(name string, value interface{}) (interface{}, error) {
	ops := tarantool.NewOperations().Assign(valueField, value)
	resp, err := s.space.Update(name, ops, tarantool.MakeOptBool(true))
	if err != nil {
		return nil, err
	}
	return valueOf(name, resp)
}

// All returns every session setting by its name.
func (s *Settings) All() (map[string]interface{}, error) {
	resp, err := s.space.Select(nil, tarantool.SelectOpts{})
	if err != nil {
		return nil, err
	}

	all := make(map[string]interface{}, len(resp.Data))
	for _, tuple := range resp.Data {
		name, value, err := parseTuple(tuple)
		if err != nil {
			return nil, err
		}
		all[name] = value
	}
	return all, nil
}

// GetBool returns the value of a boolean setting.
func (s *Settings) GetBool(name string) (bool, error) {
	value, err := s.Get(name)
	if err != nil {
		return false, err
	}
	b, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("session setting %q is %T, not a boolean", name, value)
	}
	return b, nil
}

// SetBool changes the value of a boolean setting.
func (s *Settings) SetBool(name string, value bool) error {
	_, err := s.Set(name, value)
	return err
}

func valueOf(name string, resp *tarantool.Response) (interface{}, error) {
	if resp == nil || len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSetting, name)
	}
	_, value, err := parseTuple(resp.Data[0])
	return value, err
}

func parseTuple(tuple interface{}) (string, interface{}, error) {
	fields, ok := tuple.([]interface{})
	if !ok || len(fields) != 2 {
		return "", nil, fmt.Errorf("unexpected session setting tuple: %v", tuple)
	}
	name, ok := fields[0].(string)
	if !ok {
		return "", nil, fmt.Errorf("unexpected session setting name: %v", fields[0])
	}
	return name, fields[1], nil
}
