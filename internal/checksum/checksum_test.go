package checksum

import "testing"

func TestSum_Stable(t *testing.T) {
	a := Sum([]byte("collaborators"))
	b := Sum([]byte("collaborators"))
	if a != b {
		t.Errorf("digest not stable: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64", len(a))
	}
}

func TestJSON_MapOrderIndependent(t *testing.T) {
	a, err := JSON(map[string]int{"a": 1, "b": 2})
	if err != nil {
		t.Fatal(err)
	}
	b, err := JSON(map[string]int{"b": 2, "a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("map key order changed the digest")
	}
}
