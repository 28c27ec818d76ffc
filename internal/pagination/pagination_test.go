package pagination

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name              string
		total, page, size int
		want              Metadata
	}{
		{"empty", 0, 1, 10, Metadata{TotalCount: 0, PageSize: 10, CurrentPage: 1, TotalPages: 0}},
		{"first of three", 25, 1, 10, Metadata{TotalCount: 25, PageSize: 10, CurrentPage: 1, TotalPages: 3, HasNext: true}},
		{"middle", 25, 2, 10, Metadata{TotalCount: 25, PageSize: 10, CurrentPage: 2, TotalPages: 3, HasPrevious: true, HasNext: true}},
		{"past the end clamps", 25, 9, 10, Metadata{TotalCount: 25, PageSize: 10, CurrentPage: 3, TotalPages: 3, HasPrevious: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Calculate(tt.total, tt.page, tt.size))
		})
	}
}

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page, meta := Slice(items, 2, 2)
	assert.Equal(t, []int{3, 4}, page)
	assert.Equal(t, 3, meta.TotalPages)

	page, _ = Slice(items, 3, 2)
	assert.Equal(t, []int{5}, page)

	page, _ = Slice([]int{}, 1, 2)
	assert.Empty(t, page)
}

func TestGetPaginationParams(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		page, size := GetPaginationParams(c)
		return c.JSON(fiber.Map{"page": page, "size": size})
	})

	cases := map[string][2]int{
		"/":                    {1, DefaultPageSize},
		"/?page=3&pageSize=20": {3, 20},
		"/?page=-1&pageSize=0": {1, DefaultPageSize},
		"/?pageSize=100000":    {1, MaxPageSize},
	}
	for url, want := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", url, nil))
		require.NoError(t, err)
		var got map[string]int
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, want[0], got["page"], url)
		assert.Equal(t, want[1], got["size"], url)
	}
}
