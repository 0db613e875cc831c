package tarantool_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	. "github.com/JeffCarpenter/go-tarantool"
)

func TestPaginate(t *testing.T) {
	data := []interface{}{1, 2, 3, 4, 5}

	cases := []struct {
		name     string
		offset   uint32
		limit    uint32
		expected []interface{}
	}{
		{"all", 0, DefaultLimit, data},
		{"offset", 2, DefaultLimit, []interface{}{3, 4, 5}},
		{"limit", 0, 2, []interface{}{1, 2}},
		{"window", 1, 3, []interface{}{2, 3, 4}},
		{"zero limit", 0, 0, []interface{}{}},
		{"offset at end", 5, 1, []interface{}{}},
		{"offset past end", DefaultLimit, DefaultLimit, []interface{}{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Paginate(data, tc.offset, tc.limit))
		})
	}
}

func TestPaginate_window(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		size := rapid.IntRange(0, 50).Draw(t, "size")
		data := make([]interface{}, size)
		for i := range data {
			data[i] = i
		}
		offset := rapid.Uint32Range(0, 60).Draw(t, "offset")
		limit := rapid.Uint32Range(0, 60).Draw(t, "limit")

		page := Paginate(data, offset, limit)
		if uint32(len(page)) > limit {
			t.Fatalf("page of %d is over the limit %d", len(page), limit)
		}
		for i, v := range page {
			if v != int(offset)+i {
				t.Fatalf("page[%d] = %v, expected %d", i, v, int(offset)+i)
			}
		}
		expectedLen := size - int(offset)
		if expectedLen < 0 {
			expectedLen = 0
		}
		if expectedLen > int(limit) {
			expectedLen = int(limit)
		}
		if len(page) != expectedLen {
			t.Fatalf("page length %d != %d", len(page), expectedLen)
		}
	})
}

func TestReplaceExistingExpr(t *testing.T) {
	assert.Contains(t, ReplaceExistingExpr, "box.error.TUPLE_NOT_FOUND")
	assert.Contains(t, ReplaceExistingExpr, "box.error.NO_SUCH_SPACE")
	assert.Contains(t, ReplaceExistingExpr, "sp:replace(tuple)")
}
