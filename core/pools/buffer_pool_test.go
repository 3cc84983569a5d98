package pools

import "testing"

func TestBufferPool_GetSizes(t *testing.T) {
	bp := NewBufferPool()

	cases := []struct {
		request int
		wantCap int
	}{
		{1, 2048},
		{2048, 2048},
		{2049, 8192},
		{10000, 32768},
		{100000, 131072},
	}
	for _, tc := range cases {
		buf := bp.Get(tc.request)
		if len(buf) != 0 {
			t.Errorf("Get(%d): expected zero length, got %d", tc.request, len(buf))
		}
		if cap(buf) != tc.wantCap {
			t.Errorf("Get(%d): expected cap %d, got %d", tc.request, tc.wantCap, cap(buf))
		}
		bp.Put(buf)
	}
}

func TestBufferPool_OversizedAllocatesDirectly(t *testing.T) {
	bp := NewBufferPool()

	buf := bp.Get(1 << 20)
	if cap(buf) < 1<<20 {
		t.Errorf("expected cap >= %d, got %d", 1<<20, cap(buf))
	}
	// Must not panic even though no tier matches.
	bp.Put(buf)
}

func TestBufferPool_GrowPreservesContents(t *testing.T) {
	bp := NewBufferPool()

	buf := bp.Get(2048)
	buf = append(buf, []byte("hello world")...)

	grown := bp.Grow(buf, 50000)
	if string(grown[:11]) != "hello world" {
		t.Errorf("contents lost after grow: %q", grown[:11])
	}
	if cap(grown) < 50000 {
		t.Errorf("expected cap >= 50000, got %d", cap(grown))
	}
}
