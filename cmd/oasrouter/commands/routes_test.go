package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v4"

	"github.com/erraggy/oasrouter/logging"
)

func TestListRoutes(t *testing.T) {
	records, err := ListRoutes(context.Background(), "testdata/pets.yaml", logging.NopLogger{})
	require.NoError(t, err)
	require.Len(t, records, 7)

	type row struct{ method, path, op, security string }
	var got []row
	for _, r := range records {
		got = append(got, row{r.Method, r.Path, r.Operation, r.Security})
	}
	assert.Equal(t, []row{
		{"GET", "/admin", "admin", "basic"},
		{"OPTIONS", "/admin", "", ""},
		{"GET", "/pets", "listPets", "apiKey"},
		{"POST", "/pets", "createPet", "bearer(pets:write)"},
		{"OPTIONS", "/pets", "", ""},
		{"GET", "/pets/{petId}", "getPet", "none"},
		{"OPTIONS", "/pets/{petId}", "", ""},
	}, got)

	assert.True(t, records[1].Synthetic)
	assert.False(t, records[0].Synthetic)
	assert.NotEmpty(t, records[5].Pattern)

	_, err = ListRoutes(context.Background(), "testdata/nope.yaml", nil)
	assert.Error(t, err)
}

func TestRenderRouteTable(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	records, err := ListRoutes(context.Background(), "testdata/pets.yaml", nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderRouteTable(&buf, records))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 9)
	assert.True(t, strings.HasPrefix(lines[0], "Method   Path"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "-------"), lines[1])
	assert.Contains(t, lines[3], "(preflight)")
	assert.Contains(t, lines[5], "bearer(pets:write)")

	buf.Reset()
	require.NoError(t, RenderRouteTable(&buf, nil))
	assert.Equal(t, "No routes.\n", buf.String())
}

func TestRenderRouteTable_Color(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = noColor })

	records := []RouteRecord{{Method: "GET", Path: "/pets", Pattern: "/pets", Operation: "listPets", Security: "none"}}
	var buf bytes.Buffer
	require.NoError(t, RenderRouteTable(&buf, records))
	assert.Contains(t, buf.String(), "\x1b[", "color follows color.NoColor, not the writer")
}

func TestMethodRank(t *testing.T) {
	methods := []string{"GET", "PUT", "POST", "DELETE", "OPTIONS", "HEAD", "PATCH", "TRACE"}
	for i := 1; i < len(methods); i++ {
		assert.Less(t, methodRank(methods[i-1]), methodRank(methods[i]), methods[i])
	}
	assert.Equal(t, len(methods), methodRank("PROPFIND"))
}

func TestRenderStructured(t *testing.T) {
	records := []RouteRecord{{Method: "GET", Path: "/pets", Pattern: "/pets", Operation: "listPets", Security: "none"}}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, RenderStructured(&buf, records, FormatJSON))
		var got []map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "listPets", got[0]["operation"])
		assert.NotContains(t, got[0], "synthetic")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, RenderStructured(&buf, records, FormatYAML))
		var got []map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "/pets", got[0]["path"])
	})

	t.Run("text is not structured", func(t *testing.T) {
		assert.Error(t, RenderStructured(&bytes.Buffer{}, records, FormatText))
	})
}

func TestValidateOutputFormat(t *testing.T) {
	for _, f := range []string{FormatText, FormatJSON, FormatYAML} {
		assert.NoError(t, ValidateOutputFormat(f))
	}
	assert.ErrorContains(t, ValidateOutputFormat("xml"), "invalid format 'xml'")
}

// =============================================================================
// Root command
// =============================================================================

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	t.Run("version", func(t *testing.T) {
		out, err := execute(t, "version")
		require.NoError(t, err)
		assert.Contains(t, out, "Version:")
	})

	t.Run("routes as json", func(t *testing.T) {
		out, err := execute(t, "routes", "--spec", "testdata/pets.yaml", "--format", "json", "--log-level", "error")
		require.NoError(t, err)
		var got []RouteRecord
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Len(t, got, 7)
	})

	t.Run("routes from config file", func(t *testing.T) {
		out, err := execute(t, "routes", "--config", "testdata/oasrouter.yaml", "-f", "yaml", "--log-level", "error")
		require.NoError(t, err)
		assert.Contains(t, out, "operation: listPets")
	})

	t.Run("routes needs a spec", func(t *testing.T) {
		_, err := execute(t, "routes")
		assert.ErrorContains(t, err, "spec is required")
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := execute(t, "routes", "--spec", "testdata/pets.yaml", "--format", "xml")
		assert.ErrorContains(t, err, "invalid format")
	})

	t.Run("serve rejects a bad config", func(t *testing.T) {
		_, err := execute(t, "serve", "--spec", "testdata/pets.yaml", "--max-body-size", "0")
		assert.ErrorContains(t, err, "max_body_size")
	})
}
