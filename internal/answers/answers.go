// Package answers reads the QuestionFormAnswers XML attached to each
// submitted assignment.
package answers

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/beevik/etree"
)

// DoNotRedirect is a field some worker browser extensions inject into
// submissions. It carries no answer data.
const DoNotRedirect = "doNotRedirect"

// SelectionSeparator joins multiple selection identifiers into one value.
const SelectionSeparator = "|"

// Answer is one question identifier and the value the worker gave.
type Answer struct {
	Identifier string
	Value      string
}

// ErrNoRoot is returned for answer documents with no root element.
var ErrNoRoot = errors.New("answer XML has no root element")

func read(xml string) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return nil, fmt.Errorf("parse answer XML: %w", err)
	}
	if doc.Root() == nil {
		return nil, ErrNoRoot
	}
	return doc, nil
}

// Parse returns the answers in document order.
//
// FreeText values are HTML-unescaped. Otherwise the selection identifiers
// are joined with SelectionSeparator, falling back to OtherSelectionText and
// then UploadedFileKey.
func Parse(xml string) ([]Answer, error) {
	doc, err := read(xml)
	if err != nil {
		return nil, err
	}

	var out []Answer
	for _, el := range doc.FindElements("//Answer") {
		qid := el.SelectElement("QuestionIdentifier")
		if qid == nil {
			return nil, fmt.Errorf("answer XML: Answer element without QuestionIdentifier")
		}
		out = append(out, Answer{
			Identifier: strings.TrimSpace(qid.Text()),
			Value:      value(el),
		})
	}
	return out, nil
}

func value(el *etree.Element) string {
	if ft := el.SelectElement("FreeText"); ft != nil {
		return html.UnescapeString(ft.Text())
	}
	if sels := el.SelectElements("SelectionIdentifier"); len(sels) > 0 {
		ids := make([]string, len(sels))
		for i, s := range sels {
			ids[i] = strings.TrimSpace(s.Text())
		}
		return strings.Join(ids, SelectionSeparator)
	}
	if other := el.SelectElement("OtherSelectionText"); other != nil {
		return html.UnescapeString(other.Text())
	}
	if key := el.SelectElement("UploadedFileKey"); key != nil {
		return strings.TrimSpace(key.Text())
	}
	return ""
}

// Pretty re-indents an answer document with two spaces per level.
func Pretty(xml string) (string, error) {
	doc, err := read(xml)
	if err != nil {
		return "", err
	}
	doc.Indent(2)
	return doc.WriteToString()
}
