package pagination

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type row struct {
	id uuid.UUID
	at time.Time
}

func position(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, MaxLimit + 1: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
	if FetchSize(10) != 11 {
		t.Fatalf("fetch size should add one row")
	}
}

func TestPaginateTrimsAndPointsAtLastKeptRow(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 123, time.UTC)
	rows := []row{
		{id: uuid.New(), at: base.Add(2 * time.Minute)},
		{id: uuid.New(), at: base.Add(time.Minute)},
		{id: uuid.New(), at: base},
	}

	page := Paginate(rows, 2, position)
	if len(page.Items) != 2 || !page.HasMore {
		t.Fatalf("expected trimmed page with more, got %+v", page)
	}
	cursor, err := Decode(page.NextCursor)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cursor.ID != rows[1].id || !cursor.CreatedAt.Equal(rows[1].at) {
		t.Fatalf("cursor should point at the last returned row, got %+v", cursor)
	}

	last := Paginate(rows[2:], 2, position)
	if last.HasMore || last.NextCursor != "" || len(last.Items) != 1 {
		t.Fatalf("unexpected final page %+v", last)
	}
	if empty := Paginate[row](nil, 2, position); empty.Items == nil {
		t.Fatal("items should encode as an empty list")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if c, err := Decode("  "); c != nil || err != nil {
		t.Fatalf("blank cursor should be nil, got %v %v", c, err)
	}
	for _, bad := range []string{"abc", "!!!", Cursor{}.Encode()[:6]} {
		if _, err := Decode(bad); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("expected ErrInvalidCursor for %q, got %v", bad, err)
		}
	}
}
