package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `
views:
  - name: pending
    url: https://yard.example.com/api/pendientes
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.PollInterval.Duration() != 15*time.Second {
		t.Errorf("PollInterval = %v, want 15s", cfg.PollInterval.Duration())
	}
	if len(cfg.Views) != 1 {
		t.Errorf("len(Views) = %d, want 1", len(cfg.Views))
	}
	if cfg.Storage.Path != "" {
		t.Errorf("Storage.Path = %q, want empty", cfg.Storage.Path)
	}
}

func TestParse_FullViewConfig(t *testing.T) {
	yaml := `
title: Patio Norte
port: 9090
poll_interval: 30s
error_threshold: 5
max_concurrency: 4
http2: true
storage:
  path: /var/lib/yardwatch/filters.db

views:
  - name: pending
    url: https://yard.example.com/api/pendientes
    method: POST
    body: '{"gate":1}'
    timeout: 5s
    interval: 10s
    headers:
      Authorization: Bearer token123
    labels:
      gate: "1"
    regions:
      - pending=data.pendientes|pendientes
      - name: totals
        paths: [data.totales]
    items:
      path: data.pendientes|pendientes
      id: id|truck_id
      category: tipo|type
    selection:
      max: 3
      submit_url: https://yard.example.com/api/autorizar
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Title != "Patio Norte" || cfg.Port != 9090 || cfg.ErrorThreshold != 5 || cfg.MaxConcurrency != 4 || !cfg.HTTP2 {
		t.Errorf("top-level fields = %+v", cfg)
	}
	if cfg.Storage.Path != "/var/lib/yardwatch/filters.db" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}

	v := cfg.Views[0]
	if v.Method != "POST" || v.Body != `{"gate":1}` {
		t.Errorf("Method = %q, Body = %q", v.Method, v.Body)
	}
	if v.Timeout.Duration() != 5*time.Second || v.Interval.Duration() != 10*time.Second {
		t.Errorf("Timeout = %v, Interval = %v", v.Timeout.Duration(), v.Interval.Duration())
	}
	if v.Headers["Authorization"] != "Bearer token123" || v.Labels["gate"] != "1" {
		t.Errorf("Headers = %v, Labels = %v", v.Headers, v.Labels)
	}
	if len(v.Regions) != 2 {
		t.Fatalf("len(Regions) = %d, want 2", len(v.Regions))
	}
	if v.Items == nil || v.Items.ID != "id|truck_id" || v.Items.Category != "tipo|type" {
		t.Errorf("Items = %+v", v.Items)
	}
	if v.Selection == nil || v.Selection.Max != 3 {
		t.Errorf("Selection = %+v", v.Selection)
	}
}

func TestParse_RegionShorthand(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantName  string
		wantPaths []string
		wantID    string
		wantErr   bool
	}{
		{"single path", "pending=data.pendientes", "pending", []string{"data.pendientes"}, "", false},
		{"alternates", "pending = data.pendientes | pendientes", "pending", []string{"data.pendientes", "pendientes"}, "", false},
		{"element id", "rows=#tabla", "rows", nil, "tabla", false},
		{"whole payload", "all=", "all", []string{""}, "", false},
		{"missing separator", "pending", "", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r RegionConfig
			err := r.parseShorthand(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseShorthand(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if r.Name != tt.wantName || r.ElementID != tt.wantID {
				t.Errorf("got %+v", r)
			}
			if strings.Join(r.Paths, ",") != strings.Join(tt.wantPaths, ",") || len(r.Paths) != len(tt.wantPaths) {
				t.Errorf("Paths = %q, want %q", r.Paths, tt.wantPaths)
			}
		})
	}
}

func TestParse_RegionStructured(t *testing.T) {
	yaml := `
views:
  - name: board
    url: https://yard.example.com/patio
    kind: html
    regions:
      - name: rows
        element_id: tabla-camiones
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	r := cfg.Views[0].Regions[0]
	if r.Name != "rows" || r.ElementID != "tabla-camiones" {
		t.Errorf("region = %+v", r)
	}
}

func TestParse_RegionInvalidNode(t *testing.T) {
	yaml := `
views:
  - name: pending
    url: https://yard.example.com
    regions:
      - [a, b]
`
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Error("Parse() should reject a sequence region")
	}
}

func TestParse_GridConfig(t *testing.T) {
	yaml := `
grids:
  - name: gate
    url_template: "https://yard.example.com/{{.yard}}/pendientes?gate={{.gate}}"
    body_template: '{"gate":"{{.gate}}"}'
    dimensions:
      yard: [norte, sur]
      gate: ["1", "2"]
    labels:
      team: porteria
    regions:
      - rows=data.rows|rows
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	g := cfg.Grids[0]
	if len(g.Dimensions["yard"]) != 2 || len(g.Dimensions["gate"]) != 2 {
		t.Errorf("Dimensions = %v", g.Dimensions)
	}
	if g.BodyTemplate != `{"gate":"{{.gate}}"}` {
		t.Errorf("BodyTemplate = %q", g.BodyTemplate)
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("YARD_URL", "https://yard.internal")
	t.Setenv("YARD_TOKEN", "secret")
	t.Setenv("YARD_DB", "/tmp/yard.db")

	yaml := `
storage:
  path: ${YARD_DB}
views:
  - name: pending
    url: ${YARD_URL}/api/pendientes
    body: '{"token":"${YARD_TOKEN}"}'
    headers:
      Authorization: Bearer ${YARD_TOKEN}
    selection:
      max: 3
      submit_url: ${YARD_URL}/api/autorizar
grids:
  - name: gate
    url_template: "${YARD_URL}/api/{{.gate}}"
    dimensions:
      gate: ["1"]
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	v := cfg.Views[0]
	if v.URL != "https://yard.internal/api/pendientes" {
		t.Errorf("URL = %q", v.URL)
	}
	if v.Body != `{"token":"secret"}` {
		t.Errorf("Body = %q", v.Body)
	}
	if v.Headers["Authorization"] != "Bearer secret" {
		t.Errorf("Authorization = %q", v.Headers["Authorization"])
	}
	if v.Selection.SubmitURL != "https://yard.internal/api/autorizar" {
		t.Errorf("SubmitURL = %q", v.Selection.SubmitURL)
	}
	if cfg.Grids[0].URLTemplate != "https://yard.internal/api/{{.gate}}" {
		t.Errorf("URLTemplate = %q", cfg.Grids[0].URLTemplate)
	}
	if cfg.Storage.Path != "/tmp/yard.db" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
views:
  - name: pending
    url: ${YARDWATCH_TEST_UNSET_VAR}/api
`
	_, err := Parse([]byte(yaml))
	if err == nil || !strings.Contains(err.Error(), "YARDWATCH_TEST_UNSET_VAR") {
		t.Errorf("Parse() error = %v, want it to name the missing variable", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("YW_SET", "value")
	t.Setenv("YW_EMPTY", "")

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "plain", false},
		{"${YW_SET}", "value", false},
		{"a-${YW_SET}-b", "a-value-b", false},
		{"${YW_EMPTY}", "", false},
		{"${YW_UNSET_X:-fallback}", "fallback", false},
		{"${YW_UNSET_X:-}", "", false},
		{"${YW_SET:-fallback}", "value", false},
		{"${YW_UNSET_X}", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := expandEnvVars(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expandEnvVars(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no views", `port: 8080`, "at least one view or grid"},
		{"missing name", `
views:
  - url: https://yard.example.com`, "name is required"},
		{"missing url", `
views:
  - name: v`, "url is required"},
		{"relative url", `
views:
  - name: v
    url: /api`, "scheme"},
		{"ftp url", `
views:
  - name: v
    url: ftp://yard.example.com`, "http or https"},
		{"bad method", `
views:
  - name: v
    url: https://yard.example.com
    method: PUT`, "method must be GET or POST"},
		{"bad kind", `
views:
  - name: v
    url: https://yard.example.com
    kind: xml`, "kind must be json or html"},
		{"short timeout", `
views:
  - name: v
    url: https://yard.example.com
    timeout: 500ms`, "timeout must be at least 1s"},
		{"short interval", `
views:
  - name: v
    url: https://yard.example.com
    interval: 500ms`, "interval must be at least 1s"},
		{"long interval", `
views:
  - name: v
    url: https://yard.example.com
    interval: 2h`, "must not exceed 1h"},
		{"html region without id", `
views:
  - name: v
    url: https://yard.example.com
    kind: html
    regions:
      - rows=data.rows`, "element id"},
		{"json region with id", `
views:
  - name: v
    url: https://yard.example.com
    regions:
      - rows=#tabla`, "at least one path"},
		{"items on html", `
views:
  - name: v
    url: https://yard.example.com
    kind: html
    items:
      id: id`, "only supported on json"},
		{"items without id", `
views:
  - name: v
    url: https://yard.example.com
    items:
      path: rows`, "items.id is required"},
		{"selection max", `
views:
  - name: v
    url: https://yard.example.com
    selection:
      max: 0
      submit_url: https://yard.example.com/ok`, "selection.max"},
		{"selection url", `
views:
  - name: v
    url: https://yard.example.com
    selection:
      max: 2
      submit_url: /relative`, "selection.submit_url"},
		{"poll interval", `
poll_interval: 100ms
views:
  - name: v
    url: https://yard.example.com`, "poll_interval"},
		{"negative threshold", `
error_threshold: -1
views:
  - name: v
    url: https://yard.example.com`, "error_threshold"},
		{"grid without template", `
grids:
  - name: g
    dimensions:
      gate: ["1"]`, "url_template is required"},
		{"grid bad template", `
grids:
  - name: g
    url_template: "https://yard.example.com/{{.gate"
    dimensions:
      gate: ["1"]`, "invalid url_template"},
		{"grid bad body template", `
grids:
  - name: g
    url_template: "https://yard.example.com/{{.gate}}"
    body_template: "{{.gate"
    dimensions:
      gate: ["1"]`, "invalid body_template"},
		{"grid no dimensions", `
grids:
  - name: g
    url_template: "https://yard.example.com/"`, "at least one dimension"},
		{"grid empty dimension", `
grids:
  - name: g
    url_template: "https://yard.example.com/{{.gate}}"
    dimensions:
      gate: []`, "has no values"},
		{"grid duplicate value", `
grids:
  - name: g
    url_template: "https://yard.example.com/{{.gate}}"
    dimensions:
      gate: ["1", "1"]`, "duplicate value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("views: [")); err == nil {
		t.Error("Parse() should fail on invalid YAML")
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	yaml := `
poll_interval: soon
views:
  - name: v
    url: https://yard.example.com
`
	_, err := Parse([]byte(yaml))
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("Parse() error = %v, want invalid duration", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yardwatch.yaml")
	data := []byte("views:\n  - name: v\n    url: https://yard.example.com\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Views[0].Name != "v" {
		t.Errorf("Views[0].Name = %q", cfg.Views[0].Name)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "example", "yardwatch.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Grids) != 1 || len(cfg.Views) != 1 {
		t.Fatalf("Grids = %d, Views = %d", len(cfg.Grids), len(cfg.Views))
	}
	if got := cfg.Grids[0].Selection.SubmitURL; !strings.HasSuffix(got, "/api/porteria/autorizar") {
		t.Errorf("SubmitURL = %q", got)
	}
}
