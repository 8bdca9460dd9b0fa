package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteBindsLineValues(t *testing.T) {
	tpl, err := Compile("question", "<p>{{ text }}</p><p>{{ count }}</p>")
	require.NoError(t, err)

	vars, err := DecodeLine([]byte(`{"text": "hello", "count": 3}`))
	require.NoError(t, err)

	out, err := tpl.Execute(vars)
	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p><p>3</p>", out)
}

func TestExecuteDoesNotEscape(t *testing.T) {
	tpl, err := Compile("question", "{{ html }}")
	require.NoError(t, err)

	out, err := tpl.Execute(map[string]any{"html": "<b>a & b</b>"})
	require.NoError(t, err)
	assert.Equal(t, "<b>a & b</b>", out)
}

func TestExecuteLoopsAndConditionals(t *testing.T) {
	src := "{% for w in words %}{{ w }}{% if not forloop.Last %},{% endif %}{% endfor %}"
	tpl, err := Compile("question", src)
	require.NoError(t, err)

	vars, err := DecodeLine([]byte(`{"words": ["a", "b", "c"]}`))
	require.NoError(t, err)

	out, err := tpl.Execute(vars)
	require.NoError(t, err)
	assert.Equal(t, "a,b,c", out)
}

func TestCompileRejectsBadSyntax(t *testing.T) {
	_, err := Compile("broken", "{% for x in %}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse template broken")
}

func TestCompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "question.xml.j2")
	require.NoError(t, os.WriteFile(path, []byte("id={{ id }}"), 0o644))

	tpl, err := CompileFile(path)
	require.NoError(t, err)
	out, err := tpl.Execute(map[string]any{"id": "x1"})
	require.NoError(t, err)
	assert.Equal(t, "id=x1", out)
}

func TestDecodeLine(t *testing.T) {
	vars, err := DecodeLine([]byte(`{"i": 7, "f": 1.5, "nested": {"n": 2}, "list": [1]}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), vars["i"])
	assert.Equal(t, 1.5, vars["f"])
	assert.Equal(t, int64(2), vars["nested"].(map[string]any)["n"])
	assert.Equal(t, []any{int64(1)}, vars["list"])
}

func TestDecodeLineRejectsNonObjects(t *testing.T) {
	for _, line := range []string{"null", "[1]", "oops"} {
		_, err := DecodeLine([]byte(line))
		assert.Error(t, err, line)
	}
}
