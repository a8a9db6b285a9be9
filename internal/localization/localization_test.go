package localization_test

import (
	"testing"
	"testing/fstest"

	"meethub/backend/internal/localization"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedded(t *testing.T) {
	l := localization.Embedded()

	assert.True(t, l.Has("en"))
	assert.True(t, l.Has("uk-UA"))
	assert.Equal(t, "Unknown event.", l.GetString("en", "unknown_event"))
	assert.Equal(t, "Невідома подія.", l.GetString("uk_UA", "unknown_event"))
	assert.Equal(t, "Unknown event.", l.GetString("de", "unknown_event"))
	assert.Equal(t, "no_such_key", l.GetString("en", "no_such_key"))
}

func TestNewLocalizerFS(t *testing.T) {
	fsys := fstest.MapFS{
		"i18n/en.json":   {Data: []byte(`{"hello":"Hello"}`)},
		"i18n/pl.json":   {Data: []byte(`{"hello":"Cześć"}`)},
		"i18n/notes.txt": {Data: []byte("ignored")},
	}
	l, err := localization.NewLocalizerFS(fsys, "i18n")
	require.NoError(t, err)
	assert.Equal(t, "Cześć", l.GetString("PL", "hello"))
	assert.False(t, l.Has("txt"))

	_, err = localization.NewLocalizerFS(fstest.MapFS{"bad/en.json": {Data: []byte("{")}}, "bad")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "en", localization.Normalize(""))
	assert.Equal(t, "uk", localization.Normalize(" UK-ua "))
	assert.Equal(t, "pt", localization.Normalize("pt_BR"))
}
