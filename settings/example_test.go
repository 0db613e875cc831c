package settings_test

import (
	"fmt"

	"github.com/JeffCarpenter/go-tarantool/settings"
	"github.com/JeffCarpenter/go-tarantool/test_helpers"
)

func Example() {
	conn := test_helpers.NewMockConnector(map[string]uint32{"_session_settings": settings.SpaceId})
	conn.Upsert(settings.SpaceId, []interface{}{settings.SQLDefaultEngine, "memtx"}, nil)

	s, err := settings.Open(conn)
	if err != nil {
		fmt.Println("Open:", err)
		return
	}

	engine, err := s.Get(settings.SQLDefaultEngine)
	fmt.Println("Engine:", engine, err)

	_, err = s.Get("no_such_setting")
	fmt.Println("Error:", err)
	// Output:
	// Engine: memtx <nil>
	// Error: unknown session setting: no_such_setting
}
