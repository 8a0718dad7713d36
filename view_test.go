package yardwatch

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestNewView_Valid(t *testing.T) {
	v, err := NewView("pending", "https://yard.example.com/api/pendientes")
	if err != nil {
		t.Fatalf("NewView() error = %v", err)
	}

	if v.Name() != "pending" {
		t.Errorf("Name() = %q, want %q", v.Name(), "pending")
	}
	if v.URL() != "https://yard.example.com/api/pendientes" {
		t.Errorf("URL() = %q", v.URL())
	}
	if v.Method() != http.MethodGet {
		t.Errorf("Method() = %q, want GET", v.Method())
	}
	if v.Timeout() != defaultViewTimeout {
		t.Errorf("Timeout() = %v, want %v", v.Timeout(), defaultViewTimeout)
	}
	if v.Interval() != 0 {
		t.Errorf("Interval() = %v, want 0", v.Interval())
	}
	if v.Kind() != KindJSON {
		t.Errorf("Kind() = %q, want json", v.Kind())
	}
	if _, ok := v.Items(); ok {
		t.Error("Items() reported items on a plain view")
	}
	if _, ok := v.Selection(); ok {
		t.Error("Selection() reported a selection on a plain view")
	}
}

func TestNewView_InvalidName(t *testing.T) {
	tests := []string{"", "has space", "a/b", "-leading", "(paren)"}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewView(name, "https://yard.example.com"); err == nil {
				t.Errorf("NewView(%q) should fail", name)
			}
		})
	}
}

func TestNewView_InvalidURL(t *testing.T) {
	tests := []string{"", "not a url", "/relative/path", "yard.example.com"}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			if _, err := NewView("v", raw); err == nil {
				t.Errorf("NewView(url=%q) should fail", raw)
			}
		})
	}
}

func TestWithLabels(t *testing.T) {
	v, err := NewView("v", "https://yard.example.com", WithLabels("gate", "1", "yard", "norte"))
	if err != nil {
		t.Fatalf("NewView() error = %v", err)
	}

	labels := v.Labels()
	if labels["gate"] != "1" || labels["yard"] != "norte" {
		t.Errorf("Labels() = %v", labels)
	}

	labels["gate"] = "mutated"
	if v.Labels()["gate"] != "1" {
		t.Error("Labels() should return a copy")
	}
}

func TestWithLabels_OddArgs(t *testing.T) {
	if _, err := NewView("v", "https://yard.example.com", WithLabels("gate")); err == nil {
		t.Error("WithLabels with odd args should fail")
	}
}

func TestWithHeaders(t *testing.T) {
	v, err := NewView("v", "https://yard.example.com", WithHeaders("Authorization", "Bearer x"))
	if err != nil {
		t.Fatalf("NewView() error = %v", err)
	}
	if got := v.Headers()["Authorization"]; got != "Bearer x" {
		t.Errorf("Headers()[Authorization] = %q", got)
	}
	if _, err := NewView("v", "https://yard.example.com", WithHeaders("a", "b", "c")); err == nil {
		t.Error("WithHeaders with odd args should fail")
	}
}

func TestWithBody_ImpliesPost(t *testing.T) {
	body := []byte(`{"gate":1}`)
	v, err := NewView("v", "https://yard.example.com", WithBody(body))
	if err != nil {
		t.Fatalf("NewView() error = %v", err)
	}
	if v.Method() != http.MethodPost {
		t.Errorf("Method() = %q, want POST", v.Method())
	}

	body[0] = 'X'
	if string(v.Body()) != `{"gate":1}` {
		t.Error("WithBody should copy its argument")
	}
}

func TestWithBody_RejectsGet(t *testing.T) {
	_, err := NewView("v", "https://yard.example.com",
		WithMethod(http.MethodGet),
		WithBody([]byte(`{}`)),
	)
	if err == nil {
		t.Error("GET with a body should fail")
	}
}

func TestWithMethod_Invalid(t *testing.T) {
	for _, m := range []string{"PUT", "DELETE", "HEAD", "get"} {
		if _, err := NewView("v", "https://yard.example.com", WithMethod(m)); err == nil {
			t.Errorf("WithMethod(%q) should fail", m)
		}
	}
}

func TestWithTimeout(t *testing.T) {
	v, err := NewView("v", "https://yard.example.com", WithTimeout(3*time.Second))
	if err != nil {
		t.Fatalf("NewView() error = %v", err)
	}
	if v.Timeout() != 3*time.Second {
		t.Errorf("Timeout() = %v", v.Timeout())
	}

	for _, d := range []time.Duration{0, -time.Second} {
		if _, err := NewView("v", "https://yard.example.com", WithTimeout(d)); err == nil {
			t.Errorf("WithTimeout(%v) should fail", d)
		}
	}
}

func TestWithInterval(t *testing.T) {
	tests := []struct {
		name    string
		d       time.Duration
		wantErr bool
	}{
		{"minimum", time.Second, false},
		{"typical", 10 * time.Second, false},
		{"maximum", time.Hour, false},
		{"too short", 500 * time.Millisecond, true},
		{"too long", time.Hour + time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewView("v", "https://yard.example.com", WithInterval(tt.d))
			if (err != nil) != tt.wantErr {
				t.Fatalf("WithInterval(%v) error = %v, wantErr %v", tt.d, err, tt.wantErr)
			}
			if !tt.wantErr && v.Interval() != tt.d {
				t.Errorf("Interval() = %v, want %v", v.Interval(), tt.d)
			}
		})
	}
}

func TestWithRegion(t *testing.T) {
	v, err := NewView("v", "https://yard.example.com",
		WithRegion("pending", "data.pendientes", "pendientes"),
		WithRegion("counts", "data.totales"),
	)
	if err != nil {
		t.Fatalf("NewView() error = %v", err)
	}

	regions := v.Regions()
	if len(regions) != 2 {
		t.Fatalf("Regions() len = %d, want 2", len(regions))
	}
	if regions[0].Name != "pending" || len(regions[0].Paths) != 2 {
		t.Errorf("regions[0] = %+v", regions[0])
	}

	regions[0].Paths[0] = "mutated"
	if v.Regions()[0].Paths[0] != "data.pendientes" {
		t.Error("Regions() should return a deep copy")
	}
}

func TestRegionValidation(t *testing.T) {
	tests := []struct {
		name string
		opts []ViewOption
	}{
		{"empty name", []ViewOption{WithRegion(" ", "a")}},
		{"no paths", []ViewOption{WithRegion("a")}},
		{"duplicate", []ViewOption{WithRegion("a", "x"), WithRegion("a", "y")}},
		{"html region on json view", []ViewOption{WithHTMLRegion("a", "rows")}},
		{"json region on html view", []ViewOption{WithKind(KindHTML), WithRegion("a", "x")}},
		{"html region without id", []ViewOption{WithKind(KindHTML), WithHTMLRegion("a", "")}},
		{"items on html view", []ViewOption{WithKind(KindHTML), WithItems("rows", "id", "")}},
		{"unknown kind", []ViewOption{WithKind("xml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewView("v", "https://yard.example.com", tt.opts...); err == nil {
				t.Error("NewView() should fail")
			}
		})
	}
}

func TestWithHTMLRegion(t *testing.T) {
	v, err := NewView("v", "https://yard.example.com/partial",
		WithKind(KindHTML),
		WithHTMLRegion("rows", "tabla-pendientes"),
	)
	if err != nil {
		t.Fatalf("NewView() error = %v", err)
	}
	if v.Kind() != KindHTML {
		t.Errorf("Kind() = %q", v.Kind())
	}
	if got := v.Regions()[0].ElementID; got != "tabla-pendientes" {
		t.Errorf("ElementID = %q", got)
	}
}

func TestWithItems(t *testing.T) {
	v, err := NewView("v", "https://yard.example.com", WithItems("data.rows|rows", "id", "tipo|type"))
	if err != nil {
		t.Fatalf("NewView() error = %v", err)
	}
	spec, ok := v.Items()
	if !ok {
		t.Fatal("Items() not configured")
	}
	if spec.Path != "data.rows|rows" || spec.IDField != "id" || spec.CategoryField != "tipo|type" {
		t.Errorf("Items() = %+v", spec)
	}

	if _, err := NewView("v", "https://yard.example.com", WithItems("rows", "", "")); err == nil {
		t.Error("WithItems without id field should fail")
	}
}

func TestWithSelection(t *testing.T) {
	v, err := NewView("v", "https://yard.example.com", WithSelection(3, "https://yard.example.com/autorizar"))
	if err != nil {
		t.Fatalf("NewView() error = %v", err)
	}
	spec, ok := v.Selection()
	if !ok || spec.Max != 3 || spec.SubmitURL != "https://yard.example.com/autorizar" {
		t.Errorf("Selection() = %+v, %v", spec, ok)
	}

	tests := []struct {
		max int
		url string
	}{
		{0, "https://yard.example.com/autorizar"},
		{3, "relative"},
	}
	for _, tt := range tests {
		if _, err := NewView("v", "https://yard.example.com", WithSelection(tt.max, tt.url)); err == nil {
			t.Errorf("WithSelection(%d, %q) should fail", tt.max, tt.url)
		}
	}
}

func TestNewView_ErrorNamesView(t *testing.T) {
	_, err := NewView("porteria", "https://yard.example.com", WithRegion("a", "x"), WithRegion("a", "y"))
	if err == nil || !strings.Contains(err.Error(), "porteria") {
		t.Errorf("error = %v, want it to name the view", err)
	}
}
