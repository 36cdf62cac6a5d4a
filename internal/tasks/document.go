// Package tasks reads and rewrites the task lists held in main and satellite documents.
//
// A satellite document holds a single task list:
//
//	<root><tasks><task .../><task .../></tasks></root>
//
// The main document holds one subsection per satellite, each a task element
// named after the satellite and holding that satellite's tasks:
//
//	<root><tasks><task name="Tasks"><task .../></task></tasks></root>
//
// Individual tasks are opaque: they are only ever copied between documents as
// whole subtrees.
package tasks

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/beevik/etree"
)

const (
	// TasksTag is the tag of the element holding a task list
	TasksTag = "tasks"

	// TaskTag is the tag of a task and of a main document subsection
	TaskTag = "task"

	// NameAttr is the attribute naming a main document subsection
	NameAttr = "name"
)

var (
	// ErrTasksNotFound is returned when a document has no tasks element under its root
	ErrTasksNotFound = errors.New("tasks element not found")

	// ErrSubsectionNotFound is returned when the main document has no subsection for a name
	ErrSubsectionNotFound = errors.New("task subsection not found")
)

// Document is a parsed XML document
type Document struct {
	doc *etree.Document
}

// Parse parses body as an XML document with a root element
func Parse(body string) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(body); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("failed to parse XML: no root element")
	}
	return &Document{doc: doc}, nil
}

// Empty reports whether the root element has no child elements
func (d *Document) Empty() bool {
	return len(d.doc.Root().ChildElements()) == 0
}

// Tasks returns the tasks element directly under the root
func (d *Document) Tasks() (*etree.Element, error) {
	tasks := d.doc.Root().SelectElement(TasksTag)
	if tasks == nil {
		return nil, ErrTasksNotFound
	}
	return tasks, nil
}

// TaskElements returns the task elements of the document's task list, in document order
func (d *Document) TaskElements() ([]*etree.Element, error) {
	tasks, err := d.Tasks()
	if err != nil {
		return nil, err
	}
	return tasks.SelectElements(TaskTag), nil
}

// Subsection returns the first task element under tasks whose name attribute equals name
func (d *Document) Subsection(name string) (*etree.Element, error) {
	tasks, err := d.Tasks()
	if err != nil {
		return nil, err
	}
	for _, el := range tasks.SelectElements(TaskTag) {
		if attr := el.SelectAttr(NameAttr); attr != nil && attr.Value == name {
			return el, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrSubsectionNotFound, name)
}

// String serializes the document
func (d *Document) String() (string, error) {
	out, err := d.doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("failed to serialize XML: %w", err)
	}
	return out, nil
}

// DisplayName derives the subsection name of a satellite resource: the path after
// its first slash, cut at the first dot, with the first character upper-cased.
// A leading slash counts as the first slash, so "/folder/tasks.xml" names "Folder/tasks".
func DisplayName(resource string) (string, error) {
	path := resource
	if _, rest, found := strings.Cut(path, "/"); found {
		path = rest
	}
	name, _, _ := strings.Cut(path, ".")
	if name == "" {
		return "", fmt.Errorf("cannot derive a name from resource %q", resource)
	}

	runes := []rune(name)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes), nil
}
