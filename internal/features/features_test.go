package features

import "testing"

func TestExtractObjectHasIDAndSchemaHash(t *testing.T) {
	f := Extract(map[string]any{"id": float64(123), "name": "test"})

	if !f.IsObject || f.IsArray || f.IsPrimitive {
		t.Fatalf("expected object classification, got %+v", f)
	}
	if !f.HasID {
		t.Error("expected HasID=true")
	}
	if f.SchemaHash == "" {
		t.Error("expected non-empty schemaHash for object")
	}
	if f.NumKeys != 2 {
		t.Errorf("NumKeys = %d, want 2", f.NumKeys)
	}
}

func TestExtractArrayOfObjects(t *testing.T) {
	arr := make([]any, 1000)
	for i := range arr {
		arr[i] = map[string]any{"id": float64(1), "value": "test"}
	}
	f := Extract(arr)

	if !f.IsArray {
		t.Fatalf("expected array classification, got %+v", f)
	}
	if f.ArrayLength != 1000 {
		t.Errorf("ArrayLength = %d, want 1000", f.ArrayLength)
	}
	if f.SchemaHash != "" {
		t.Errorf("arrays must not set schemaHash, got %q", f.SchemaHash)
	}
}

func TestExtractPrimitive(t *testing.T) {
	for _, v := range []any{nil, true, float64(1), "s"} {
		f := Extract(v)
		if !f.IsPrimitive || f.IsArray || f.IsObject {
			t.Errorf("Extract(%v) = %+v, want primitive", v, f)
		}
		if f.SchemaHash != "" {
			t.Errorf("primitive must not set schemaHash, got %q", f.SchemaHash)
		}
	}
}

func TestExtractDataLikenessFlagsDisjunctive(t *testing.T) {
	f := Extract(map[string]any{"results": []any{}})
	if !f.HasItems {
		t.Error("expected HasItems=true when results is present (disjunctive)")
	}
	if !f.HasResults {
		t.Error("expected HasResults=true")
	}
	if f.HasData {
		t.Error("expected HasData=false")
	}
}

func TestExtractTopLevelKeysSortedAndCapped(t *testing.T) {
	obj := make(map[string]any, 30)
	for i := 0; i < 30; i++ {
		obj[string(rune('a'+i))] = i
	}
	f := Extract(obj)
	if len(f.TopLevelKeys) != MaxTopLevelKeys {
		t.Errorf("TopLevelKeys len = %d, want %d", len(f.TopLevelKeys), MaxTopLevelKeys)
	}
	for i := 1; i < len(f.TopLevelKeys); i++ {
		if f.TopLevelKeys[i-1] >= f.TopLevelKeys[i] {
			t.Errorf("TopLevelKeys not sorted: %v", f.TopLevelKeys)
		}
	}
}

func TestExtractSamplePathsBounded(t *testing.T) {
	obj := make(map[string]any, 200)
	for i := 0; i < 200; i++ {
		obj[string(rune('a'))+itoa(i)] = i
	}
	f := Extract(obj)
	if len(f.SamplePaths) > MaxSamplePaths {
		t.Errorf("SamplePaths len = %d, want <= %d", len(f.SamplePaths), MaxSamplePaths)
	}
}

func TestExtractDeterministic(t *testing.T) {
	input := map[string]any{
		"id":   float64(1),
		"data": map[string]any{"nested": []any{map[string]any{"leaf": "v"}}},
	}
	a := Extract(input)
	b := Extract(input)

	if a.SchemaHash != b.SchemaHash {
		t.Errorf("schemaHash not deterministic: %q vs %q", a.SchemaHash, b.SchemaHash)
	}
	if len(a.SamplePaths) != len(b.SamplePaths) {
		t.Errorf("samplePaths not deterministic: %v vs %v", a.SamplePaths, b.SamplePaths)
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var digits []byte
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}
