// Package checklist reads the agent-authored plan checklist. The engine
// never gates transitions on its contents: the file is advisory prompt
// context, copied verbatim into cycle archives, and tallied only for
// log lines.
package checklist

import (
	"fmt"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// FileName is the checklist file the agent maintains in the run directory.
const FileName = "plan.md"

// Tally counts the markdown task items in a checklist.
type Tally struct {
	Checked   int
	Unchecked int
}

// Total returns the number of task items.
func (t Tally) Total() int {
	return t.Checked + t.Unchecked
}

// String renders the tally for a log line.
func (t Tally) String() string {
	if t.Total() == 0 {
		return "no task items"
	}
	return fmt.Sprintf("%d/%d tasks checked", t.Checked, t.Total())
}

// Checklist is one snapshot of the plan file.
type Checklist struct {
	Content []byte
	Tally   Tally
}

// Read loads the checklist at path. A missing file is normal (the agent
// may not have written one yet) and returns nil without error.
func Read(path string) (*Checklist, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checklist: %w", err)
	}

	return &Checklist{
		Content: content,
		Tally:   CountTasks(content),
	}, nil
}

// CountTasks tallies the task list items in markdown source. Checkboxes
// count only inside list items ("- [x] ..."); bracket pairs in prose or
// code blocks do not.
func CountTasks(source []byte) Tally {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.TaskList,
		),
	)

	doc := md.Parser().Parse(text.NewReader(source))

	var tally Tally
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if box, ok := n.(*extast.TaskCheckBox); ok {
			if box.IsChecked {
				tally.Checked++
			} else {
				tally.Unchecked++
			}
		}
		return ast.WalkContinue, nil
	})

	return tally
}
