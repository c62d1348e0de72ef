package pagination

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   Params
		want Params
	}{
		{Params{}, Params{Page: 1, Limit: DefaultLimit}},
		{Params{Page: 3, Limit: 500}, Params{Page: 3, Limit: MaxLimit}},
		{Params{Page: -1, Limit: 10}, Params{Page: 1, Limit: 10}},
	}
	for _, c := range cases {
		if got := c.in.Normalize(); got != c.want {
			t.Fatalf("Normalize(%+v) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestOffsetAndMeta(t *testing.T) {
	p := Params{Page: 3, Limit: 10}
	if got := p.Offset(); got != 20 {
		t.Fatalf("expected offset 20, got %d", got)
	}
	meta := NewMeta(p, 21)
	if meta.TotalPages != 3 || meta.Total != 21 || meta.Page != 3 {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if NewMeta(Params{}, 0).TotalPages != 0 {
		t.Fatal("empty result should have zero pages")
	}
}
