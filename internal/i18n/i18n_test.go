package i18n

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/loykin/krishid/internal/store"
)

func newTranslator(t *testing.T, prefs store.Prefs) *Translator {
	t.Helper()
	tr, err := New(prefs, nil)
	require.NoError(t, err)
	return tr
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	tr := newTranslator(t, nil)
	en, ok := tr.Catalog("en")
	require.True(t, ok)
	hi, ok := tr.Catalog("hi")
	require.True(t, ok)
	assert.NotEmpty(t, en)
	for k := range en {
		assert.Contains(t, hi, k)
	}
	_, ok = tr.Catalog("fr")
	assert.False(t, ok)
}

func TestLookupFallback(t *testing.T) {
	tr := newTranslator(t, nil)
	assert.Equal(t, "Voice", tr.Lookup("voice"))
	assert.Equal(t, "no_such_key", tr.Lookup("no_such_key"))

	require.NoError(t, tr.Switch(context.Background(), "hi"))
	assert.Equal(t, "आवाज़", tr.Lookup("voice"))

	delete(tr.catalogs["hi"], "dashboard")
	assert.Equal(t, "Dashboard", tr.Lookup("dashboard"), "falls back to English")
}

func TestSwitchPersistsAndReloadRestores(t *testing.T) {
	ctx := context.Background()
	prefs := store.NewMemory()

	tr := newTranslator(t, prefs)
	require.NoError(t, tr.Load(ctx))
	assert.Equal(t, "en", tr.Current())

	var changed []string
	tr.OnChange(func(lang string) { changed = append(changed, lang) })
	require.NoError(t, tr.Switch(ctx, "hi"))
	assert.Equal(t, []string{"hi"}, changed)

	v, err := prefs.Get(ctx, store.KeyLanguage)
	require.NoError(t, err)
	assert.Equal(t, "hi", v)

	reloaded := newTranslator(t, prefs)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, "hi", reloaded.Current())
}

func TestSwitchUnknownLanguage(t *testing.T) {
	ctx := context.Background()
	prefs := store.NewMemory()
	tr := newTranslator(t, prefs)

	err := tr.Switch(ctx, "xx")
	assert.ErrorIs(t, err, ErrUnknownLanguage)
	assert.Equal(t, "en", tr.Current())
	_, err = prefs.Get(ctx, store.KeyLanguage)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLoadIgnoresUnknownSavedLanguage(t *testing.T) {
	ctx := context.Background()
	prefs := store.NewMemory()
	require.NoError(t, prefs.Set(ctx, store.KeyLanguage, "zz"))
	tr := newTranslator(t, prefs)
	require.NoError(t, tr.Load(ctx))
	assert.Equal(t, "en", tr.Current())
}

func TestLanguagesLabelsVoices(t *testing.T) {
	langs := Languages()
	require.Len(t, langs, 2)
	assert.Equal(t, "en", langs[0].Code)
	assert.Equal(t, "EN", Label("en"))
	assert.Equal(t, "हि", Label("hi"))
	assert.Equal(t, "EN", Label("zz"))
	assert.Equal(t, "hi-IN", Voice("hi"))
	assert.Equal(t, "en-US", Voice("zz"))
}

const page = `<html><body>
<button class="language-toggle"><span id="currentLanguage">EN</span></button>
<div class="language-option active" data-lang="en">English</div>
<div class="language-option" data-lang="hi">हिन्दी</div>
<a data-translate="dashboard">Dashboard</a>
<input data-translate="contact" placeholder="Contact">
<textarea data-translate-placeholder="about"></textarea>
<p data-translate="missing_key">keep me</p>
</body></html>`

func TestTranslateDocument(t *testing.T) {
	tr := newTranslator(t, nil)
	require.NoError(t, tr.Switch(context.Background(), "hi"))
	hi, _ := tr.Catalog("hi")

	doc, err := html.Parse(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, 3, tr.TranslateDocument(doc))

	var buf bytes.Buffer
	require.NoError(t, html.Render(&buf, doc))
	out := buf.String()
	assert.Contains(t, out, `<a data-translate="dashboard">`+hi["dashboard"]+`</a>`)
	assert.Contains(t, out, `placeholder="`+hi["contact"]+`"`)
	assert.Contains(t, out, `<textarea data-translate-placeholder="about" placeholder="`+hi["about"]+`">`)
	assert.Contains(t, out, `<p data-translate="missing_key">keep me</p>`)
	assert.Contains(t, out, `<span id="currentLanguage">हि</span>`)
	assert.Contains(t, out, `<div class="language-option" data-lang="en">`)
	assert.Contains(t, out, `<div class="language-option active" data-lang="hi">`)
}
