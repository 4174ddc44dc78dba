package editor

import (
	"slices"
	"strings"
	"sync"
)

// Block kinds understood by the built-in plugins.
const (
	BlockParagraph = "paragraph"
	BlockHeading   = "heading" // Followed by the level, e.g. "heading2"
)

// Block is one block of the document.
type Block struct {
	Kind string
	Text string
}

// Document is a list of blocks edited at the end of the last block.
type Document struct {
	mu     sync.Mutex
	blocks []Block
}

func newDocument() *Document {
	return &Document{blocks: []Block{{Kind: BlockParagraph}}}
}

// Blocks returns a copy of the blocks.
func (d *Document) Blocks() []Block {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.blocks)
}

// Text returns the block texts joined by newlines.
func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	texts := make([]string, len(d.blocks))
	for i, b := range d.blocks {
		texts[i] = b.Text
	}
	return strings.Join(texts, "\n")
}

// SetText replaces the document with one paragraph per line of text.
func (d *Document) SetText(text string) {
	lines := strings.Split(text, "\n")

	d.mu.Lock()
	defer d.mu.Unlock()

	d.blocks = make([]Block, len(lines))
	for i, line := range lines {
		d.blocks[i] = Block{Kind: BlockParagraph, Text: line}
	}
}

// Current returns the block being edited.
func (d *Document) Current() Block {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blocks[len(d.blocks)-1]
}

// Insert appends text to the current block.
func (d *Document) Insert(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blocks[len(d.blocks)-1].Text += text
}

// Split starts a new paragraph after the current block.
func (d *Document) Split() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blocks = append(d.blocks, Block{Kind: BlockParagraph})
}

// SetKind changes the kind of the current block.
func (d *Document) SetKind(kind string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blocks[len(d.blocks)-1].Kind = kind
}

// ClearCurrent empties the current block and returns its previous text.
func (d *Document) ClearCurrent() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	last := &d.blocks[len(d.blocks)-1]
	text := last.Text
	last.Text = ""
	return text
}

// Snapshot captures the document for undo.
func (d *Document) Snapshot() []Block {
	return d.Blocks()
}

// Restore replaces the document with a snapshot.
func (d *Document) Restore(blocks []Block) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(blocks) == 0 {
		d.blocks = []Block{{Kind: BlockParagraph}}
		return
	}
	d.blocks = slices.Clone(blocks)
}
