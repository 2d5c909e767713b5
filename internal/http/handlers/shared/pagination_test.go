package shared

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func queryContext(rawQuery string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/admin/rewards?"+rawQuery, nil)
	return c
}

func TestPageQuery(t *testing.T) {
	cases := []struct {
		query    string
		page     int
		pageSize int
	}{
		{query: "", page: 1, pageSize: 20},
		{query: "page=3&page_size=50", page: 3, pageSize: 50},
		{query: "page=-2&page_size=500", page: 1, pageSize: 100},
		{query: "page=abc&page_size=0", page: 1, pageSize: 20},
	}
	for _, item := range cases {
		page, pageSize := PageQuery(queryContext(item.query))
		if page != item.page || pageSize != item.pageSize {
			t.Fatalf("query %q want %d/%d got %d/%d", item.query, item.page, item.pageSize, page, pageSize)
		}
	}
}

func TestBuildPagination(t *testing.T) {
	got := BuildPagination(2, 20, 41)
	if got.TotalPage != 3 || got.Total != 41 || got.Page != 2 {
		t.Fatalf("unexpected pagination %+v", got)
	}
	if BuildPagination(1, 0, 10).TotalPage != 0 {
		t.Fatalf("zero page size should yield zero pages")
	}
}

func TestParseQueryHelpers(t *testing.T) {
	c := queryContext("offer_id=12&earned=true&bad=x")
	if ParseUintQuery(c, "offer_id") != 12 || ParseUintQuery(c, "bad") != 0 || ParseUintQuery(c, "missing") != 0 {
		t.Fatalf("unexpected uint query parsing")
	}
	earned := ParseBoolQuery(c, "earned")
	if earned == nil || !*earned || ParseBoolQuery(c, "bad") != nil || ParseBoolQuery(c, "missing") != nil {
		t.Fatalf("unexpected bool query parsing")
	}
}
