package editor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/dshills/plugcore/internal/plugin"
	"github.com/dshills/plugcore/internal/plugin/catalog"
)

// Names of the built-in plugins.
const (
	PluginUndo      = "undo"
	PluginTyping    = "typing"
	PluginEnter     = "enter"
	PluginParagraph = "paragraph"
	PluginHeading   = "heading"
	PluginClipboard = "clipboard"
)

// SettingHeadingLevels is the number of heading levels the heading plugin
// accepts.
const SettingHeadingLevels = "heading.levels"

const defaultHeadingLevels = 3

// ErrInvalidArgument is returned by built-in commands for bad arguments.
var ErrInvalidArgument = errors.New("invalid argument")

type builtinDef struct {
	name     string
	factory  plugin.Factory[*Editor]
	requires []string
}

var builtinDefs = []builtinDef{
	{PluginUndo, newUndo, nil},
	{PluginTyping, newTyping, []string{PluginUndo}},
	{PluginEnter, newEnter, []string{PluginUndo}},
	{PluginParagraph, newParagraph, nil},
	{PluginHeading, newHeading, []string{PluginParagraph, PluginUndo}},
	{PluginClipboard, newClipboard, []string{PluginTyping}},
}

// Builtins registers the stock editor plugins into c.
func Builtins(c *catalog.Catalog[*Editor]) error {
	for _, def := range builtinDefs {
		if err := c.Register(def.name, def.factory, def.requires...); err != nil {
			return err
		}
	}
	return nil
}

// lookupUndo returns the loaded undo plugin. Plugins requiring undo can rely
// on it being present when they are constructed.
func lookupUndo(e *Editor) (*Undo, error) {
	u, ok := plugin.Lookup[*Undo](e.Plugins(), PluginUndo)
	if !ok {
		return nil, fmt.Errorf("%s plugin is not loaded", PluginUndo)
	}
	return u, nil
}

// Undo keeps document snapshots taken before each change.
type Undo struct {
	doc *Document

	mu   sync.Mutex
	undo [][]Block
	redo [][]Block
}

func newUndo(ctx context.Context, e *Editor) (plugin.Plugin, error) {
	u := &Undo{doc: e.Document()}
	if err := e.RegisterCommand("undo", u.undoCommand); err != nil {
		return nil, err
	}
	if err := e.RegisterCommand("redo", u.redoCommand); err != nil {
		return nil, err
	}
	return u, nil
}

// Name implements plugin.Plugin.
func (u *Undo) Name() string { return PluginUndo }

// Init drops the history recorded while plugins were loading.
func (u *Undo) Init(ctx context.Context) error {
	u.clear()
	return nil
}

func (u *Undo) clear() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.undo = nil
	u.redo = nil
}

// Record saves the document state before a change.
func (u *Undo) Record() {
	snap := u.doc.Snapshot()

	u.mu.Lock()
	defer u.mu.Unlock()
	u.undo = append(u.undo, snap)
	u.redo = nil
}

// Depth returns the number of undo and redo steps available.
func (u *Undo) Depth() (undo, redo int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.undo), len(u.redo)
}

func (u *Undo) undoCommand(ctx context.Context, args ...string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(u.undo) == 0 {
		return nil
	}
	prev := u.undo[len(u.undo)-1]
	u.undo = u.undo[:len(u.undo)-1]
	u.redo = append(u.redo, u.doc.Snapshot())
	u.doc.Restore(prev)
	return nil
}

func (u *Undo) redoCommand(ctx context.Context, args ...string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(u.redo) == 0 {
		return nil
	}
	next := u.redo[len(u.redo)-1]
	u.redo = u.redo[:len(u.redo)-1]
	u.undo = append(u.undo, u.doc.Snapshot())
	u.doc.Restore(next)
	return nil
}

// simple is a built-in plugin whose only state is its name.
type simple string

func (s simple) Name() string { return string(s) }

func newTyping(ctx context.Context, e *Editor) (plugin.Plugin, error) {
	u, err := lookupUndo(e)
	if err != nil {
		return nil, err
	}

	err = e.RegisterCommand("input", func(ctx context.Context, args ...string) error {
		text := strings.Join(args, " ")
		if text == "" {
			return nil
		}
		u.Record()
		e.Document().Insert(text)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return simple(PluginTyping), nil
}

func newEnter(ctx context.Context, e *Editor) (plugin.Plugin, error) {
	u, err := lookupUndo(e)
	if err != nil {
		return nil, err
	}

	err = e.RegisterCommand("enter", func(ctx context.Context, args ...string) error {
		u.Record()
		e.Document().Split()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return simple(PluginEnter), nil
}

func newParagraph(ctx context.Context, e *Editor) (plugin.Plugin, error) {
	err := e.RegisterCommand("paragraph", func(ctx context.Context, args ...string) error {
		e.Document().SetKind(BlockParagraph)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return simple(PluginParagraph), nil
}

// Heading converts the current block into a heading.
type Heading struct {
	editor *Editor
	undo   *Undo
}

func newHeading(ctx context.Context, e *Editor) (plugin.Plugin, error) {
	if !e.HasCommand("paragraph") {
		return nil, fmt.Errorf("%s plugin is not loaded", PluginParagraph)
	}
	u, err := lookupUndo(e)
	if err != nil {
		return nil, err
	}

	h := &Heading{editor: e, undo: u}
	if err := e.RegisterCommand("heading", h.command); err != nil {
		return nil, err
	}
	return h, nil
}

// Name implements plugin.Plugin.
func (h *Heading) Name() string { return PluginHeading }

// Levels returns the number of heading levels allowed.
func (h *Heading) Levels() int {
	v, ok := h.editor.Setting(SettingHeadingLevels)
	if !ok {
		return defaultHeadingLevels
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return defaultHeadingLevels
}

func (h *Heading) command(ctx context.Context, args ...string) error {
	level := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: heading level %q", ErrInvalidArgument, args[0])
		}
		level = n
	}
	if level < 1 || level > h.Levels() {
		return fmt.Errorf("%w: heading level %d out of range 1-%d", ErrInvalidArgument, level, h.Levels())
	}

	h.undo.Record()
	h.editor.Document().SetKind(BlockHeading + strconv.Itoa(level))
	return nil
}

// Clipboard holds text cut or copied from the current block.
type Clipboard struct {
	mu     sync.Mutex
	buffer string
}

func newClipboard(ctx context.Context, e *Editor) (plugin.Plugin, error) {
	u, err := lookupUndo(e)
	if err != nil {
		return nil, err
	}
	if !e.HasCommand("input") {
		return nil, fmt.Errorf("%s plugin is not loaded", PluginTyping)
	}

	c := &Clipboard{}
	doc := e.Document()
	commands := map[string]Command{
		"copy": func(ctx context.Context, args ...string) error {
			c.set(doc.Current().Text)
			return nil
		},
		"cut": func(ctx context.Context, args ...string) error {
			u.Record()
			c.set(doc.ClearCurrent())
			return nil
		},
		"paste": func(ctx context.Context, args ...string) error {
			text := c.Text()
			if text == "" {
				return nil
			}
			return e.ExecuteCommand(ctx, "input", text)
		},
	}
	for _, name := range []string{"copy", "cut", "paste"} {
		if err := e.RegisterCommand(name, commands[name]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Name implements plugin.Plugin.
func (c *Clipboard) Name() string { return PluginClipboard }

// Text returns the clipboard content.
func (c *Clipboard) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer
}

func (c *Clipboard) set(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffer = text
}

// Destroy empties the clipboard.
func (c *Clipboard) Destroy(ctx context.Context) error {
	c.set("")
	return nil
}
