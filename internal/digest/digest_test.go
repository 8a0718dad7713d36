package digest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_KnownValues(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int32
	}{
		{"empty", "", 0},
		{"single char", "a", 97},
		{"short", "abc", 96354},
		{"word", "hello", 99162322},
		{"wraps positive", "hello world", 1794106052},
		{"wraps to min int32", "polygenelubricants", math.MinInt32},
		{"surrogate pair", "\U0001F600", 1772899},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Hash(tt.input))
		})
	}
}

func TestHash_Deterministic(t *testing.T) {
	input := `{"camiones":[{"id":1,"placa":"ABC-123"}]}`
	first := Hash(input)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, Hash(input))
	}
}

func TestHash_DifferentInputsDiffer(t *testing.T) {
	seen := make(map[int32]string)
	inputs := []string{
		"gate 1 open", "gate 1 closed", "gate 2 open", "gate 2 closed",
		"truck ABC-123 authorized", "truck ABC-124 authorized",
		"blacklist: 0", "blacklist: 1", "incidents: 10", "incidents: 11",
	}
	for _, in := range inputs {
		h := Hash(in)
		if prev, ok := seen[h]; ok {
			t.Fatalf("Hash(%q) collides with Hash(%q)", in, prev)
		}
		seen[h] = in
	}
}

func TestHash_NoCollisionGuarantee(t *testing.T) {
	// classic h*31 collision, kept to document the contract
	assert.Equal(t, Hash("Aa"), Hash("BB"))
}

func TestCanonicalJSON_SortsKeys(t *testing.T) {
	a, err := CanonicalJSON([]byte(`{"b":1,"a":{"d":true,"c":null},"e":[3,2,1]}`))
	require.NoError(t, err)
	b, err := CanonicalJSON([]byte(`{"e":[3,2,1],"a":{"c":null,"d":true},"b":1}`))
	require.NoError(t, err)

	assert.Equal(t, `{"a":{"c":null,"d":true},"b":1,"e":[3,2,1]}`, a)
	assert.Equal(t, a, b)
}

func TestCanonicalJSON_PreservesNumbers(t *testing.T) {
	s, err := CanonicalJSON([]byte(`{"weight":12.50,"id":9007199254740993}`))
	require.NoError(t, err)
	assert.Equal(t, `{"id":9007199254740993,"weight":12.50}`, s)
}

func TestCanonicalJSON_ArrayOrderMatters(t *testing.T) {
	a, err := HashJSON([]byte(`[1,2]`))
	require.NoError(t, err)
	b, err := HashJSON([]byte(`[2,1]`))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCanonicalJSON_InvalidInput(t *testing.T) {
	_, err := CanonicalJSON([]byte(`{"unterminated":`))
	assert.Error(t, err)
}

func TestCanonical_GoValues(t *testing.T) {
	type row struct {
		Plate string `json:"plate"`
		Gate  int    `json:"gate"`
	}
	got := Canonical(map[string]any{
		"rows":  []any{row{Plate: "XYZ", Gate: 2}},
		"total": float64(1),
	})
	assert.Equal(t, `{"rows":[{"gate":2,"plate":"XYZ"}],"total":1}`, got)
}

func TestVisibleText(t *testing.T) {
	fragment := []byte(`
		<div id="gates" class="grid">
			<span data-state="open">Gate   1</span>
			<script>var ignored = "x";</script>
			<style>.grid { color: red }</style>
			<img src="/truck.png" alt="truck"/>
		</div>`)

	got, err := VisibleText(fragment)
	require.NoError(t, err)
	assert.Equal(t, "id=gates\nclass=grid\ndata-state=open\nGate 1\nsrc=/truck.png\nalt=truck", got)
}

func TestHashHTML_IgnoresWhitespaceAndScripts(t *testing.T) {
	a, err := HashHTML([]byte(`<p>Truck  ABC-123</p><script>Date.now()</script>`))
	require.NoError(t, err)
	b, err := HashHTML([]byte("<p>\n  Truck ABC-123\n</p><script>Math.random()</script>"))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := HashHTML([]byte(`<p class="late">Truck ABC-123</p>`))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
