package guidance

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/loykin/krishid/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct{ msgs []Message }

func (r *recorder) Render(_ context.Context, m Message) error {
	r.msgs = append(r.msgs, m)
	return nil
}

func TestManualListsCommands(t *testing.T) {
	m := Manual("http://127.0.0.1:5000")
	assert.Equal(t, KindGuidance, m.Kind)
	require.Len(t, m.Commands, 3)
	assert.Equal(t, "start_krishivaani.bat", m.Commands[0].Line)
	assert.Equal(t, "python krishivaani_manager.py", m.Commands[1].Line)
	assert.Equal(t, "python crop-disease/flask_auto_starter.py start", m.Commands[2].Line)
	assert.Contains(t, m.Body, "http://127.0.0.1:5000")
}

func TestLogRenderer(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	require.NoError(t, LogRenderer{Logger: l}.Render(context.Background(), Manual("http://x")))
	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "kind=guidance")
	assert.Contains(t, out, "krishivaani_manager.py")

	buf.Reset()
	require.NoError(t, LogRenderer{Logger: l}.Render(context.Background(), Ready("http://x")))
	assert.Contains(t, buf.String(), "level=INFO")
}

func TestHTMLRenderer(t *testing.T) {
	r := NewHTMLRenderer()
	_, ok := r.Latest(KindGuidance)
	assert.False(t, ok)

	m := Manual("http://127.0.0.1:5000")
	m.Body = "<script>alert(1)</script>"
	require.NoError(t, r.Render(context.Background(), m))
	page, ok := r.Latest(KindGuidance)
	require.True(t, ok)
	s := string(page)
	assert.Contains(t, s, "Manual Service Start Required")
	assert.Contains(t, s, "<code>start_krishivaani.bat</code>")
	assert.NotContains(t, s, "<script>")
	assert.Equal(t, 3, strings.Count(s, "<li>"))
}

func TestMultiJoinsErrors(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	m := Multi{rec, nil, RendererFunc(func(context.Context, Message) error { return boom })}
	err := m.Render(context.Background(), Starting())
	assert.ErrorIs(t, err, boom)
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, KindStartup, rec.msgs[0].Kind)
}

func TestNotifierOncePerSession(t *testing.T) {
	ctx := context.Background()
	session := store.NewMemory()
	rec := &recorder{}
	n := NewNotifier(session, rec, nil)

	assert.True(t, n.Notify(ctx, "http://127.0.0.1:5000"))
	assert.False(t, n.Notify(ctx, "http://127.0.0.1:5000"))
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, KindNotice, rec.msgs[0].Kind)
	assert.True(t, store.GetBool(ctx, session, store.KeyServiceNotified))

	require.NoError(t, n.Reset(ctx))
	assert.True(t, n.Notify(ctx, "http://127.0.0.1:5000"))
	assert.Len(t, rec.msgs, 2)
}
