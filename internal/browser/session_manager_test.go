package browser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"
	"golang.org/x/sync/errgroup"
)

func TestTargetURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "http://127.0.0.1:8080/index.html", want: "http://127.0.0.1:8080/index.html"},
		{in: "https://example.com/tour", want: "https://example.com/tour"},
		{in: "file:///srv/tour/index.html", want: "file:///srv/tour/index.html"},
		{in: "about:blank", want: "about:blank"},
		{in: "/srv/tour/index.html", want: "file:///srv/tour/index.html"},
		{in: "/srv/my tour/index.html", want: "file:///srv/my%20tour/index.html"},
	}
	for _, tt := range tests {
		got, err := TargetURL(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTargetURL_RelativePath(t *testing.T) {
	got, err := TargetURL(filepath.Join("training", "index.html"))
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "file://"), got)
	assert.True(t, strings.HasSuffix(got, "/training/index.html"), got)
	assert.Contains(t, got, filepath.ToSlash(filepath.Base(wd)))
}

func TestTargetURL_Empty(t *testing.T) {
	_, err := TargetURL("")
	assert.Error(t, err)
}

func TestStringifyConsoleArgs(t *testing.T) {
	args := []*proto.RuntimeRemoteObject{
		{Type: proto.RuntimeRemoteObjectTypeString, Value: gson.New("Saved highlight for \"Spindle\":")},
		nil,
		{Type: proto.RuntimeRemoteObjectTypeNumber, Value: gson.New(3)},
		{Type: proto.RuntimeRemoteObjectTypeObject, Description: "Object"},
		{Type: proto.RuntimeRemoteObjectTypeObject},
	}
	assert.Equal(t, `Saved highlight for "Spindle": 3 Object`, stringifyConsoleArgs(args))
	assert.Equal(t, "", stringifyConsoleArgs(nil))
}

func TestConfigAccessors(t *testing.T) {
	var zero Config
	assert.Equal(t, 1920, zero.GetViewportWidth())
	assert.Equal(t, 1080, zero.GetViewportHeight())
	assert.Equal(t, 30*time.Second, zero.NavigationTimeout())
	assert.Equal(t, 500*time.Millisecond, zero.IdleWindow())
	assert.Equal(t, 2*time.Second, zero.ProbeTimeout())

	cfg := Config{ViewportWidth: 800, ViewportHeight: 600, NavigationTimeoutMs: 1500, IdleWindowMs: 50}
	assert.Equal(t, 800, cfg.GetViewportWidth())
	assert.Equal(t, 600, cfg.GetViewportHeight())
	assert.Equal(t, 1500*time.Millisecond, cfg.NavigationTimeout())
	assert.Equal(t, 50*time.Millisecond, cfg.IdleWindow())
}

func TestManager_BeforeStart(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	assert.False(t, m.Alive())
	assert.Error(t, m.Listen(nil))
	assert.Error(t, m.Navigate(context.Background(), "about:blank"))
	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestStagedFile_RemovedOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guid-1234")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	rc, err := stagedOpener(path)()
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = stagedOpener(path)()
	assert.ErrorContains(t, err, "open staged download")
}

func TestManager_ShutdownBoundedByContext(t *testing.T) {
	stuck := make(chan struct{})
	t.Cleanup(func() { close(stuck) })

	g := &errgroup.Group{}
	g.Go(func() error {
		<-stuck
		return nil
	})
	m := NewManager(DefaultConfig(), nil)
	m.pumps = g
	m.stopPump = func() {}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.Shutdown(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown ignored its context while a pump was stuck")
	}
	assert.False(t, m.Alive())
}
