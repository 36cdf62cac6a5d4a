package tasks

import "github.com/beevik/etree"

// Merge returns the children a destination element holds after a destructive
// replace with src: deep copies of src, in source order. The destination's
// current children do not survive.
func Merge(_ []*etree.Element, src []*etree.Element) []*etree.Element {
	merged := make([]*etree.Element, 0, len(src))
	for _, el := range src {
		merged = append(merged, el.Copy())
	}
	return merged
}

// ReplaceChildren removes every child token of dest and appends the merge of src
func ReplaceChildren(dest *etree.Element, src []*etree.Element) {
	merged := Merge(dest.ChildElements(), src)
	for len(dest.Child) > 0 {
		dest.RemoveChildAt(len(dest.Child) - 1)
	}
	for _, el := range merged {
		dest.AddChild(el)
	}
}
