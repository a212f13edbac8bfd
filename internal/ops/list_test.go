package ops

import (
	"context"
	"fmt"
	"testing"
)

func TestList_NewestFirstWithPagination(t *testing.T) {
	database := openTestDB(t)
	for i := 0; i < 5; i++ {
		seedResult(t, database, fmt.Sprintf("01L%d", i), int64(i))
	}

	out, err := List(context.Background(), database, ListInput{Limit: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(out.Items))
	}
	if out.Items[0].ID != "01L4" {
		t.Errorf("Items[0].ID = %q, want newest 01L4", out.Items[0].ID)
	}
	if !out.Pagination.HasMore || out.Pagination.Total != 5 {
		t.Errorf("Pagination = %+v, want has_more with total 5", out.Pagination)
	}
	if out.Sort != "created_at_desc" {
		t.Errorf("Sort = %q", out.Sort)
	}

	out, err = List(context.Background(), database, ListInput{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(out.Items) != 1 || out.Pagination.HasMore {
		t.Errorf("last page = %+v", out)
	}
}

func TestList_EmptyIsNotNil(t *testing.T) {
	out, err := List(context.Background(), openTestDB(t), ListInput{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if out.Items == nil {
		t.Error("Items = nil, want empty slice")
	}
	if out.Pagination.Limit != DefaultListLimit {
		t.Errorf("Limit = %d, want %d", out.Pagination.Limit, DefaultListLimit)
	}
}

func TestList_SummaryOmitsPortrait(t *testing.T) {
	database := openTestDB(t)
	seedResult(t, database, "01SUM", 0)

	out, err := List(context.Background(), database, ListInput{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if out.Items[0].PoemPreview != "Poem for 01SUM" {
		t.Errorf("PoemPreview = %q", out.Items[0].PoemPreview)
	}
}
