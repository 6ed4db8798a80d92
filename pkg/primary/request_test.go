package primary

import (
	"context"
	"testing"
	"time"
)

func TestRequest_Intersects(t *testing.T) {
	req := NewRequest(10, 100, 110, "abc", false)

	tests := []struct {
		name     string
		from, to int
		want     bool
	}{
		{"same range", 100, 110, true},
		{"overlaps start", 95, 101, true},
		{"overlaps end", 109, 200, true},
		{"contains", 0, 1000, true},
		{"ends at from", 90, 100, false},
		{"starts at to", 110, 120, false},
		{"far before", 0, 20, false},
		{"far after", 500, 510, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := req.Intersects(tt.from, tt.to); got != tt.want {
				t.Errorf("Intersects(%d, %d) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestRequest_String(t *testing.T) {
	req := NewRequest(2, 20, 30, "books", true)
	if got := req.String(); got != "20..30 not sent ?books" {
		t.Errorf("String() = %q", got)
	}

	req.Sent = time.Now()
	req.Lane = 1
	if got := req.String(); got == "20..30 not sent ?books" {
		t.Errorf("String() should mention the send time, got %q", got)
	}
	if req.Size() != 10 {
		t.Errorf("Size() = %d, want 10", req.Size())
	}
}

func TestResponse_MaxIndex(t *testing.T) {
	items := []int{1, 2, 3}

	if got := NewResponse(items).MaxIndex(20); got != 23 {
		t.Errorf("MaxIndex without total = %d, want 23", got)
	}
	if got := NewResponseWithTotal(items, 777).MaxIndex(20); got != 777 {
		t.Errorf("MaxIndex with total = %d, want 777", got)
	}

	var nilResp *Response[int]
	if nilResp.HasTotal() {
		t.Error("nil response should not report a total")
	}
}

func TestDataSourceFunc(t *testing.T) {
	var got Request
	src := DataSourceFunc[string](func(_ context.Context, req Request) (*Response[string], error) {
		got = req
		return NewResponse([]string{"a"}), nil
	})

	resp, err := src.Fetch(context.Background(), NewRequest(0, 0, 10, "q", true))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(resp.Items) != 1 || got.Query != "q" || !got.TotalCountRequired {
		t.Errorf("unexpected round trip: resp=%v req=%v", resp, got)
	}
}
