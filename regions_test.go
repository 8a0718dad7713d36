package yardwatch

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jpalmerr/yardwatch/internal/digest"
)

func TestLookupPath(t *testing.T) {
	doc, err := digest.DecodeJSON([]byte(`{
		"data": {"rows": [{"id": 7, "plate": "AB123"}], "empty": null},
		"count": 1
	}`))
	if err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}

	tests := []struct {
		path      string
		wantFound bool
		want      string
	}{
		{"", true, `{"count":1,"data":{"empty":null,"rows":[{"id":7,"plate":"AB123"}]}}`},
		{".", true, `{"count":1,"data":{"empty":null,"rows":[{"id":7,"plate":"AB123"}]}}`},
		{"count", true, `1`},
		{"data.rows.0.plate", true, `"AB123"`},
		{"data.empty", true, `null`},
		{"data.rows.1", false, ""},
		{"data.rows.x", false, ""},
		{"data.missing", false, ""},
		{"count.deeper", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			v, found := lookupPath(doc, tt.path)
			if found != tt.wantFound {
				t.Fatalf("lookupPath(%q) found = %v, want %v", tt.path, found, tt.wantFound)
			}
			if found && digest.Canonical(v) != tt.want {
				t.Errorf("lookupPath(%q) = %s, want %s", tt.path, digest.Canonical(v), tt.want)
			}
		})
	}
}

func TestExtractJSON_Alternates(t *testing.T) {
	specs := []RegionSpec{{Name: "pending", Paths: []string{"data.pendientes", "pendientes"}}}

	legacy, err := extractJSON([]byte(`{"pendientes":[1,2]}`), specs, nil)
	if err != nil {
		t.Fatalf("extractJSON(legacy) error = %v", err)
	}
	current, err := extractJSON([]byte(`{"data":{"pendientes":[1,2]}}`), specs, nil)
	if err != nil {
		t.Fatalf("extractJSON(current) error = %v", err)
	}

	if string(legacy.regions["pending"].Content) != "[1,2]" {
		t.Errorf("legacy content = %s", legacy.regions["pending"].Content)
	}
	if legacy.fingerprint != current.fingerprint {
		t.Errorf("fingerprints differ across layouts: %q vs %q", legacy.fingerprint, current.fingerprint)
	}
}

func TestExtractJSON_KeyOrderIgnored(t *testing.T) {
	a, err := extractJSON([]byte(`{"a":1,"b":{"x":1,"y":2}}`), nil, nil)
	if err != nil {
		t.Fatalf("extractJSON() error = %v", err)
	}
	b, err := extractJSON([]byte(`{"b":{"y":2,"x":1},"a":1}`), nil, nil)
	if err != nil {
		t.Fatalf("extractJSON() error = %v", err)
	}

	if a.fingerprint != b.fingerprint {
		t.Error("reordered keys should not change the fingerprint")
	}
	if _, ok := a.regions[wholeRegion]; !ok {
		t.Errorf("regions = %v, want a single %q region", a.regions, wholeRegion)
	}
}

func TestExtractJSON_RegionHashes(t *testing.T) {
	specs := []RegionSpec{
		{Name: "pending", Paths: []string{"pending"}},
		{Name: "done", Paths: []string{"done"}},
	}
	first, err := extractJSON([]byte(`{"pending":[1],"done":[2]}`), specs, nil)
	if err != nil {
		t.Fatalf("extractJSON() error = %v", err)
	}
	second, err := extractJSON([]byte(`{"pending":[1,3],"done":[2]}`), specs, nil)
	if err != nil {
		t.Fatalf("extractJSON() error = %v", err)
	}

	if first.regions["done"].Hash != second.regions["done"].Hash {
		t.Error("unchanged region should keep its hash")
	}
	if first.regions["pending"].Hash == second.regions["pending"].Hash {
		t.Error("changed region should get a new hash")
	}
	if first.fingerprint == second.fingerprint {
		t.Error("fingerprint should move with any region")
	}
}

func TestExtractJSON_MissingRegionIsNull(t *testing.T) {
	out, err := extractJSON([]byte(`{}`), []RegionSpec{{Name: "r", Paths: []string{"nope"}}}, nil)
	if err != nil {
		t.Fatalf("extractJSON() error = %v", err)
	}
	if got := string(out.regions["r"].Content); got != "null" {
		t.Errorf("content = %s, want null", got)
	}
}

func TestExtractJSON_PreservesNumbers(t *testing.T) {
	out, err := extractJSON([]byte(`{"weight":12345678901234567890,"ratio":1.50}`), nil, nil)
	if err != nil {
		t.Fatalf("extractJSON() error = %v", err)
	}
	got := string(out.regions[wholeRegion].Content)
	if !strings.Contains(got, "12345678901234567890") || !strings.Contains(got, "1.50") {
		t.Errorf("content = %s, numbers should keep their text", got)
	}
}

func TestExtractJSON_InvalidJSON(t *testing.T) {
	if _, err := extractJSON([]byte(`{`), nil, nil); err == nil {
		t.Error("extractJSON() should fail on invalid JSON")
	}
}

func TestExtractJSON_Items(t *testing.T) {
	raw := []byte(`{"data":{"rows":[
		{"id": 7, "plate": "AB123", "tipo": "carga"},
		{"truck_id": "8", "plate": "CD456", "type": "descarga"},
		{"plate": "no id"},
		"not an object"
	]}}`)
	spec := &ItemSpec{Path: "data.rows|rows", IDField: "id|truck_id", CategoryField: "tipo|type"}

	out, err := extractJSON(raw, nil, spec)
	if err != nil {
		t.Fatalf("extractJSON() error = %v", err)
	}
	if len(out.items) != 2 {
		t.Fatalf("items len = %d, want 2: %+v", len(out.items), out.items)
	}

	if out.items[0].ID != "7" || out.items[0].Category != "carga" {
		t.Errorf("items[0] = %+v", out.items[0])
	}
	if out.items[1].ID != "8" || out.items[1].Category != "descarga" {
		t.Errorf("items[1] = %+v", out.items[1])
	}
	if !strings.Contains(out.items[0].Text, "AB123") {
		t.Errorf("items[0].Text = %q, want it to contain the plate", out.items[0].Text)
	}
	if !strings.Contains(out.fingerprint, "items=") {
		t.Error("items should be part of the fingerprint")
	}
}

func TestExtractJSON_ItemsMissingList(t *testing.T) {
	out, err := extractJSON([]byte(`{"rows":"nope"}`), nil, &ItemSpec{Path: "rows", IDField: "id"})
	if err != nil {
		t.Fatalf("extractJSON() error = %v", err)
	}
	if out.items == nil || len(out.items) != 0 {
		t.Errorf("items = %#v, want empty non-nil slice", out.items)
	}
}

func TestItemText(t *testing.T) {
	doc, err := digest.DecodeJSON([]byte(`{"b":"two","a":"one","c":{"d":3,"e":[true,null]}}`))
	if err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	if got := itemText(doc); got != "one two 3 true" {
		t.Errorf("itemText() = %q, want %q", got, "one two 3 true")
	}
}

func TestExtractHTML_WholeBody(t *testing.T) {
	a, err := extractHTML([]byte(`<div class="x">  Camión   AB123 </div>`), nil)
	if err != nil {
		t.Fatalf("extractHTML() error = %v", err)
	}
	b, err := extractHTML([]byte("<div class=\"x\">\n\tCamión AB123\n</div>"), nil)
	if err != nil {
		t.Fatalf("extractHTML() error = %v", err)
	}

	if a.fingerprint != b.fingerprint {
		t.Errorf("whitespace-only edits should not change the fingerprint: %q vs %q", a.fingerprint, b.fingerprint)
	}

	var markup string
	if err := json.Unmarshal(a.regions[wholeRegion].Content, &markup); err != nil {
		t.Fatalf("content is not a JSON string: %v", err)
	}
	if !strings.Contains(markup, "AB123") {
		t.Errorf("content = %q", markup)
	}
}

func TestExtractHTML_Regions(t *testing.T) {
	body := []byte(`
		<section id="pending"><table><tr><td>AB123</td></tr></table></section>
		<section id="done"><p>none</p></section>
	`)
	specs := []RegionSpec{
		{Name: "pending", ElementID: "pending"},
		{Name: "done", ElementID: "done"},
		{Name: "missing", ElementID: "nowhere"},
	}

	out, err := extractHTML(body, specs)
	if err != nil {
		t.Fatalf("extractHTML() error = %v", err)
	}
	if len(out.regions) != 3 {
		t.Fatalf("regions len = %d, want 3", len(out.regions))
	}

	var pending string
	if err := json.Unmarshal(out.regions["pending"].Content, &pending); err != nil {
		t.Fatalf("pending content: %v", err)
	}
	if !strings.HasPrefix(pending, `<section id="pending">`) || !strings.Contains(pending, "AB123") {
		t.Errorf("pending markup = %q", pending)
	}
	if strings.Contains(pending, "none") {
		t.Error("pending region should not include sibling markup")
	}

	var missing string
	if err := json.Unmarshal(out.regions["missing"].Content, &missing); err != nil {
		t.Fatalf("missing content: %v", err)
	}
	if missing != "" {
		t.Errorf("missing region markup = %q, want empty", missing)
	}
}

func TestExtractHTML_RegionChangeIsolated(t *testing.T) {
	specs := []RegionSpec{
		{Name: "pending", ElementID: "pending"},
		{Name: "done", ElementID: "done"},
	}
	first, err := extractHTML([]byte(`<div id="pending">A</div><div id="done">B</div>`), specs)
	if err != nil {
		t.Fatalf("extractHTML() error = %v", err)
	}
	second, err := extractHTML([]byte(`<div id="pending">A2</div><div id="done">B</div>`), specs)
	if err != nil {
		t.Fatalf("extractHTML() error = %v", err)
	}

	if first.regions["done"].Hash != second.regions["done"].Hash {
		t.Error("unchanged region should keep its hash")
	}
	if first.regions["pending"].Hash == second.regions["pending"].Hash {
		t.Error("changed region should get a new hash")
	}
}

func TestSplitAlternates(t *testing.T) {
	got := splitAlternates(" data.rows | rows ")
	if len(got) != 2 || got[0] != "data.rows" || got[1] != "rows" {
		t.Errorf("splitAlternates() = %q", got)
	}
}
