package editor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/dshills/plugcore/internal/plugin"
	"github.com/dshills/plugcore/internal/plugin/catalog"
	plua "github.com/dshills/plugcore/internal/plugin/lua"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newCatalog(t *testing.T, paths ...string) *catalog.Catalog[*Editor] {
	t.Helper()
	c := catalog.New[*Editor](catalog.WithPaths(paths...)).Bind(BindLua)
	if err := Builtins(c); err != nil {
		t.Fatalf("Builtins() error = %v", err)
	}
	if _, err := c.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	return c
}

func loadNamed(t *testing.T, e *Editor, c *catalog.Catalog[*Editor], names ...string) []plugin.Plugin {
	t.Helper()
	descs, err := c.Resolve(names...)
	if err != nil {
		t.Fatalf("Resolve(%v) error = %v", names, err)
	}
	created, err := e.LoadPlugins(testContext(t), descs...)
	if err != nil {
		t.Fatalf("LoadPlugins(%v) error = %v", names, err)
	}
	return created
}

func exec(t *testing.T, e *Editor, name string, args ...string) {
	t.Helper()
	if err := e.ExecuteCommand(context.Background(), name, args...); err != nil {
		t.Fatalf("ExecuteCommand(%s) error = %v", name, err)
	}
}

func TestNew(t *testing.T) {
	e := New(WithName("writer"), WithVersion("2.1.0"), WithSettings(map[string]any{"a": 1}))

	if e.Name() != "writer" || e.Version() != "2.1.0" {
		t.Errorf("New() = %s", e)
	}
	if v, ok := e.Setting("a"); !ok || v != 1 {
		t.Errorf("Setting(a) = %v, %v", v, ok)
	}
	if e.Plugins().Len() != 0 {
		t.Error("new editor should have no plugins")
	}
	if e.Plugins().Host() != e {
		t.Error("collection host should be the editor")
	}
	if got := e.Document().Text(); got != "" {
		t.Errorf("Document().Text() = %q, want empty", got)
	}
}

func TestLoadBuiltinsOrder(t *testing.T) {
	e := New()
	c := newCatalog(t)

	created := loadNamed(t, e, c, PluginClipboard, PluginHeading)
	if len(created) != 5 {
		t.Fatalf("LoadPlugins() created %d plugins, want 5", len(created))
	}

	ids := e.Plugins().IDs()
	before := func(a, b plugin.ID) {
		t.Helper()
		if slices.Index(ids, a) > slices.Index(ids, b) {
			t.Errorf("%s loaded after %s: %v", a, b, ids)
		}
	}
	before(PluginUndo, PluginTyping)
	before(PluginTyping, PluginClipboard)
	before(PluginParagraph, PluginHeading)
	before(PluginUndo, PluginHeading)

	if e.Plugins().Has(PluginEnter) {
		t.Error("enter was not requested")
	}

	want := []string{"copy", "cut", "heading", "input", "paragraph", "paste", "redo", "undo"}
	if got := e.Commands(); !slices.Equal(got, want) {
		t.Errorf("Commands() = %v, want %v", got, want)
	}

	created = loadNamed(t, e, c, PluginTyping, PluginEnter)
	if len(created) != 1 || created[0].Name() != PluginEnter {
		t.Errorf("second LoadPlugins() created %v, want only enter", created)
	}
}

func TestTypingAndUndo(t *testing.T) {
	e := New()
	loadNamed(t, e, newCatalog(t), PluginTyping, PluginEnter)

	exec(t, e, "input", "hello", "world")
	exec(t, e, "enter")
	exec(t, e, "input", "second")

	if got := e.Document().Text(); got != "hello world\nsecond" {
		t.Fatalf("Text() = %q", got)
	}

	exec(t, e, "undo")
	exec(t, e, "undo")
	if got := e.Document().Text(); got != "hello world" {
		t.Errorf("after undo Text() = %q", got)
	}

	exec(t, e, "redo")
	if got := e.Document().Text(); got != "hello world\n" {
		t.Errorf("after redo Text() = %q", got)
	}

	u, ok := plugin.Lookup[*Undo](e.Plugins(), PluginUndo)
	if !ok {
		t.Fatal("undo plugin not found")
	}
	if undo, redo := u.Depth(); undo != 2 || redo != 1 {
		t.Errorf("Depth() = %d, %d, want 2, 1", undo, redo)
	}

	exec(t, e, "input", "x")
	if _, redo := u.Depth(); redo != 0 {
		t.Error("a new change should clear the redo history")
	}

	for range 10 {
		exec(t, e, "undo")
	}
	if got := e.Document().Text(); got != "" {
		t.Errorf("after undoing everything Text() = %q", got)
	}
}

func TestHeading(t *testing.T) {
	e := New(WithSettings(map[string]any{SettingHeadingLevels: int64(2)}))
	loadNamed(t, e, newCatalog(t), PluginHeading)

	exec(t, e, "heading", "2")
	if got := e.Document().Current().Kind; got != "heading2" {
		t.Errorf("Current().Kind = %q, want heading2", got)
	}

	for _, arg := range []string{"3", "0", "big"} {
		err := e.ExecuteCommand(context.Background(), "heading", arg)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("heading %s error = %v, want ErrInvalidArgument", arg, err)
		}
	}

	exec(t, e, "undo")
	if got := e.Document().Current().Kind; got != BlockParagraph {
		t.Errorf("undo of heading left kind %q", got)
	}

	exec(t, e, "heading")
	if got := e.Document().Current().Kind; got != "heading1" {
		t.Errorf("Current().Kind = %q, want heading1", got)
	}
	exec(t, e, "paragraph")
	if got := e.Document().Current().Kind; got != BlockParagraph {
		t.Errorf("Current().Kind = %q, want paragraph", got)
	}
}

func TestClipboard(t *testing.T) {
	e := New()
	loadNamed(t, e, newCatalog(t), PluginClipboard)

	exec(t, e, "input", "abc")
	exec(t, e, "copy")
	exec(t, e, "paste")
	if got := e.Document().Text(); got != "abcabc" {
		t.Errorf("after paste Text() = %q", got)
	}

	exec(t, e, "cut")
	if got := e.Document().Text(); got != "" {
		t.Errorf("after cut Text() = %q", got)
	}

	c, _ := plugin.Lookup[*Clipboard](e.Plugins(), PluginClipboard)
	if c.Text() != "abcabc" {
		t.Errorf("clipboard = %q", c.Text())
	}

	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if c.Text() != "" {
		t.Error("Close() should clear the clipboard")
	}
}

func TestCommands(t *testing.T) {
	e := New()
	ctx := context.Background()

	var got []string
	cmd := func(ctx context.Context, args ...string) error {
		got = append(got, args...)
		return nil
	}

	if err := e.RegisterCommand("echo", cmd); err != nil {
		t.Fatalf("RegisterCommand() error = %v", err)
	}
	if err := e.RegisterCommand("echo", cmd); !errors.Is(err, ErrCommandExists) {
		t.Errorf("duplicate RegisterCommand() error = %v", err)
	}
	if err := e.RegisterCommand("", cmd); err == nil {
		t.Error("RegisterCommand() with empty name should fail")
	}
	if err := e.ExecuteCommand(ctx, "missing"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("ExecuteCommand(missing) error = %v", err)
	}

	exec(t, e, "echo", "a", "b")
	if strings.Join(got, ",") != "a,b" {
		t.Errorf("command args = %v", got)
	}

	if err := e.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := e.ExecuteCommand(ctx, "echo"); !errors.Is(err, ErrClosed) {
		t.Errorf("ExecuteCommand() after Close error = %v, want ErrClosed", err)
	}
	if _, err := e.LoadPlugins(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("LoadPlugins() after Close error = %v, want ErrClosed", err)
	}
}

type lifecyclePlugin struct {
	name    string
	events  *[]string
	initErr error
	destErr error
}

func (p *lifecyclePlugin) Name() string { return p.name }

func (p *lifecyclePlugin) Init(ctx context.Context) error {
	*p.events = append(*p.events, "init:"+p.name)
	return p.initErr
}

func (p *lifecyclePlugin) Destroy(ctx context.Context) error {
	*p.events = append(*p.events, "destroy:"+p.name)
	return p.destErr
}

func TestLifecycle(t *testing.T) {
	var events []string
	define := func(name string, destErr error, requires ...plugin.Descriptor[*Editor]) *plugin.Spec[*Editor] {
		return plugin.Define[*Editor](plugin.ID(name), func(ctx context.Context, e *Editor) (plugin.Plugin, error) {
			events = append(events, "new:"+name)
			return &lifecyclePlugin{name: name, events: &events, destErr: destErr}, nil
		}, requires...)
	}

	base := define("base", errors.New("disk full"))
	top := define("top", nil, base)

	e := New()
	if _, err := e.LoadPlugins(testContext(t), top); err != nil {
		t.Fatalf("LoadPlugins() error = %v", err)
	}

	err := e.Close(context.Background())
	if err == nil || !strings.Contains(err.Error(), "plugin base: destroy: disk full") {
		t.Errorf("Close() error = %v", err)
	}
	if err := e.Close(context.Background()); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	want := "new:base,new:top,init:base,init:top,destroy:top,destroy:base"
	if got := strings.Join(events, ","); got != want {
		t.Errorf("events = %s, want %s", got, want)
	}
}

func TestInitFailure(t *testing.T) {
	var events []string
	d := plugin.Define[*Editor]("broken", func(ctx context.Context, e *Editor) (plugin.Plugin, error) {
		return &lifecyclePlugin{name: "broken", events: &events, initErr: errors.New("no config")}, nil
	})

	e := New()
	created, err := e.LoadPlugins(testContext(t), d)
	if err == nil || !strings.Contains(err.Error(), "plugin broken: init: no config") {
		t.Fatalf("LoadPlugins() error = %v", err)
	}
	if len(created) != 1 {
		t.Errorf("LoadPlugins() returned %d plugins, want the created one", len(created))
	}
}

func TestLoadFailure(t *testing.T) {
	e := New()
	d := plugin.Define[*Editor]("bad", func(ctx context.Context, e *Editor) (plugin.Plugin, error) {
		return nil, errors.New("boom")
	})

	_, err := e.LoadPlugins(testContext(t), d)
	if !errors.Is(err, plugin.ErrInstantiation) {
		t.Fatalf("LoadPlugins() error = %v, want instantiation error", err)
	}
	if e.Plugins().Has("bad") {
		t.Error("failed plugin should not be registered")
	}
}

func TestLuaPlugin(t *testing.T) {
	dir := t.TempDir()
	pluginDir := filepath.Join(dir, "shout")
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"plugin.json": `{"name": "shout", "version": "1.0.0", "requires": ["typing", "enter"]}`,
		"init.lua": `
			exports.shout = function(text)
				host.execute("input", string.upper(text))
			end

			exports.describe = function()
				local levels = host.setting("heading.levels") or 0
				host.execute("input", host.name() .. " " .. host.version() .. " " .. levels)
			end

			function init()
				if not host.has_plugin("typing") then
					error("typing is missing")
				end
				if not host.has_command("input") then
					error("input is missing")
				end
				host.execute("input", ">")
				host.log("info", "ready", "plugin", plugin_id)
			end
		`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(pluginDir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	e := New(WithName("writer"), WithSettings(map[string]any{SettingHeadingLevels: 4}))
	created := loadNamed(t, e, newCatalog(t, dir), "shout")
	if len(created) != 4 {
		t.Fatalf("LoadPlugins() created %d plugins, want 4", len(created))
	}

	if !e.HasCommand("shout.shout") || !e.HasCommand("shout.describe") {
		t.Fatalf("Lua exports not registered: %v", e.Commands())
	}
	if got := e.Document().Text(); got != ">" {
		t.Errorf("Text() after init = %q", got)
	}

	u, _ := plugin.Lookup[*Undo](e.Plugins(), PluginUndo)
	if undo, _ := u.Depth(); undo != 0 {
		t.Errorf("history recorded while loading should be dropped, depth = %d", undo)
	}

	exec(t, e, "shout.shout", "hi")
	exec(t, e, "enter")
	exec(t, e, "shout.describe")
	if got := e.Document().Text(); got != ">HI\nwriter 0.1.0 4" {
		t.Errorf("Text() = %q", got)
	}

	p, ok := plugin.Lookup[*plua.Plugin](e.Plugins(), "shout")
	if !ok {
		t.Fatal("lua plugin not found")
	}
	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !p.State().IsClosed() {
		t.Error("Close() should close the Lua state")
	}
}

func TestLoadFailureWiresRegisteredPlugins(t *testing.T) {
	dir := t.TempDir()
	pluginDir := filepath.Join(dir, "shout")
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"plugin.json": `{"name": "shout", "requires": ["typing"]}`,
		"init.lua": `
			exports.shout = function(text)
				host.execute("input", string.upper(text))
			end
		`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(pluginDir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	descs, err := newCatalog(t, dir).Resolve("shout")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	shout := descs[0]
	bad := plugin.Define[*Editor]("bad", func(ctx context.Context, e *Editor) (plugin.Plugin, error) {
		return nil, errors.New("boom")
	}, shout)

	e := New()
	if _, err := e.LoadPlugins(testContext(t), bad); !errors.Is(err, plugin.ErrInstantiation) {
		t.Fatalf("LoadPlugins() error = %v, want instantiation error", err)
	}
	if !e.HasCommand("shout.shout") {
		t.Fatalf("exports of a plugin registered before the failure are missing: %v", e.Commands())
	}

	created, err := e.LoadPlugins(testContext(t), shout)
	if err != nil {
		t.Fatalf("retried LoadPlugins() error = %v", err)
	}
	if len(created) != 0 {
		t.Errorf("retried LoadPlugins() created %d plugins, want 0", len(created))
	}
	exec(t, e, "shout.shout", "hi")
	if got := e.Data(); got != "HI" {
		t.Errorf("Data() = %q, want HI", got)
	}
}

func TestLoadWiresPluginsFinishedAfterFailure(t *testing.T) {
	var events []string
	started := make(chan struct{})
	release := make(chan struct{})
	slow := plugin.Define[*Editor]("slow", func(ctx context.Context, e *Editor) (plugin.Plugin, error) {
		close(started)
		<-release
		return &lifecyclePlugin{name: "slow", events: &events}, nil
	})
	bad := plugin.Define[*Editor]("bad", func(ctx context.Context, e *Editor) (plugin.Plugin, error) {
		<-started
		return nil, errors.New("boom")
	})

	e := New()
	if _, err := e.LoadPlugins(testContext(t), slow, bad); !errors.Is(err, plugin.ErrInstantiation) {
		t.Fatalf("LoadPlugins() error = %v, want instantiation error", err)
	}
	close(release)

	deadline := time.Now().Add(5 * time.Second)
	for !e.Plugins().Has("slow") && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !e.Plugins().Has("slow") {
		t.Fatal("slow was not registered")
	}

	if _, err := e.LoadPlugins(testContext(t)); err != nil {
		t.Fatalf("LoadPlugins() error = %v", err)
	}
	if got := strings.Join(events, ","); got != "init:slow" {
		t.Errorf("events = %s, want init:slow", got)
	}
}

func TestData(t *testing.T) {
	e := New()
	c := newCatalog(t)
	loadNamed(t, e, c, PluginTyping)

	exec(t, e, "input", "draft")
	e.SetData("first\n\nthird")

	if got := e.Data(); got != "first\n\nthird" {
		t.Errorf("Data() = %q", got)
	}
	blocks := e.Document().Blocks()
	if len(blocks) != 3 || blocks[2] != (Block{Kind: BlockParagraph, Text: "third"}) {
		t.Errorf("Blocks() = %+v", blocks)
	}

	u, _ := plugin.Lookup[*Undo](e.Plugins(), PluginUndo)
	if undo, redo := u.Depth(); undo != 0 || redo != 0 {
		t.Errorf("Depth() after SetData = %d, %d, want 0, 0", undo, redo)
	}

	exec(t, e, "input", "!")
	exec(t, e, "undo")
	if got := e.Data(); got != "first\n\nthird" {
		t.Errorf("Data() after undo = %q", got)
	}

	e.SetData("")
	if got := e.Data(); got != "" || len(e.Document().Blocks()) != 1 {
		t.Errorf("SetData(\"\") left %q in %d blocks", got, len(e.Document().Blocks()))
	}
}

func TestLuaSetData(t *testing.T) {
	d := plua.NewDescriptor[*Editor]("loader", plua.StringSource("loader.lua", `
		exports.replace = function(text)
			host.set_data(text .. "\n" .. host.text())
		end
	`)).Bind(BindLua)

	e := New()
	if _, err := e.LoadPlugins(testContext(t), d); err != nil {
		t.Fatalf("LoadPlugins() error = %v", err)
	}
	e.SetData("old")
	exec(t, e, "loader.replace", "new")
	if got := e.Data(); got != "new\nold" {
		t.Errorf("Data() = %q, want %q", got, "new\nold")
	}
}

func TestLuaExecuteError(t *testing.T) {
	d := plua.NewDescriptor[*Editor]("caller", plua.StringSource("caller.lua", `
		function init()
			host.execute("does-not-exist")
		end
	`)).Bind(BindLua)

	e := New()
	_, err := e.LoadPlugins(testContext(t), d)
	if !errors.Is(err, plugin.ErrInstantiation) {
		t.Fatalf("LoadPlugins() error = %v, want instantiation error", err)
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("error should carry the command failure: %v", err)
	}
}
