package host

import (
	"context"
	"html"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
	"github.com/FulgerX2007/itsm-report-generator/pkg/store"
)

func TestUnserializeFilterAcceptsEntityEscapedInput(t *testing.T) {
	f := NewFilter("UserRequest", Condition{Attribute: "id", Operator: "IN", Value: []interface{}{1, 2}})
	escaped := html.EscapeString(f.Serialize())

	got, err := UnserializeFilter(escaped)
	require.NoError(t, err)
	assert.Equal(t, "UserRequest", got.Class)
	require.Len(t, got.Conditions, 1)
	assert.Equal(t, "IN", got.Conditions[0].Operator)
}

func TestUnserializeFilterRejectsInvalidInput(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"not base64":     "%%%",
		"not json":       "bm90IGpzb24",
		"no class":       NewFilter("").Serialize(),
		"bad operator":   NewFilter("Person", Condition{Attribute: "name", Operator: "~", Value: "x"}).Serialize(),
		"IN with scalar": NewFilter("Person", Condition{Attribute: "id", Operator: "IN", Value: 3}).Serialize(),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := UnserializeFilter(raw)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}
}

func TestObjectSetFetchAndURLs(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "host.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.PutClass(&model.Class{Name: "UserRequest", Attributes: model.StringSlice{"title"}}))
	for _, key := range []int64{3, 1, 2} {
		require.NoError(t, st.PutObject(&model.Object{Class: "UserRequest", Key: key, Fields: model.Fields{"title": "T"}}))
	}

	app := NewApplication(st, &model.Settings{AppRootURL: "https://itsm.example.com", Environment: "production"})
	assert.Equal(t, "https://itsm.example.com/pages/UI.php?operation=details&class=UserRequest&id=7", app.MakeObjectURL("UserRequest", 7))

	// Filter values travel as JSON, so numbers arrive as float64
	f, err := UnserializeFilter(NewFilter("UserRequest", Condition{Attribute: "id", Operator: "IN", Value: []interface{}{1, 3}}).Serialize())
	require.NoError(t, err)

	set, err := app.NewObjectSet(f)
	require.NoError(t, err)
	keys, err := set.Keys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, keys)

	n, err := set.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = app.NewObjectSet(NewFilter("Unknown"))
	assert.ErrorIs(t, err, model.ErrValidation)
}
