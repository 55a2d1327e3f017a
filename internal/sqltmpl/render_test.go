package sqltmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		data    any
		want    string
		wantErr bool
	}{
		{
			name: "fields",
			text: "select [% .Interval %] from [% .Table %];",
			data: map[string]any{"Interval": 5, "Table": "t"},
			want: "select 5 from t;",
		},
		{
			name: "javascript braces untouched",
			text: "const f = () => { return `${x}`; }; // [% .N %]",
			data: map[string]any{"N": 1},
			want: "const f = () => { return `${x}`; }; // 1",
		},
		{
			name: "json",
			text: "return [% json .Symbols %];",
			data: map[string]any{"Symbols": []string{"AAPL", "TSLA"}},
			want: `return ["AAPL","TSLA"];`,
		},
		{
			name: "literal",
			text: "select [% literal .Name %];",
			data: map[string]any{"Name": "O'Neil"},
			want: "select 'O''Neil';",
		},
		{
			name: "ident",
			text: "[% ident .Name %]",
			data: map[string]any{"Name": "NYSE/Nasdaq halts-1"},
			want: "nyse_nasdaq_halts_1",
		},
		{
			name:    "missing key",
			text:    "[% .Missing %]",
			data:    map[string]any{},
			wantErr: true,
		},
		{
			name:    "parse error",
			text:    "[% .A ",
			data:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.name, tt.text, tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdent(t *testing.T) {
	assert.Equal(t, "abc", Ident("__ABC__"))
	assert.Equal(t, "a_b", Ident("a--b"))
}
