package normalize

import (
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/poiesic/machinerag/core"
)

// NullSentinel is the string that marks an absent value in source graphs.
const NullSentinel = "NULL"

// propertyMembers are the optional members of a property object, in the
// order their sibling keys are emitted.
var propertyMembers = []string{"unit", "segment", "owner_ref", "model", "translation"}

// Document is the flattened form of one property graph.
type Document struct {
	ID    string
	Type  string
	Facts []core.NormalizedFact
}

// Normalizer flattens property graphs and collects embedded document references.
// The zero value recognizes ".pdf" references.
type Normalizer struct {
	extensions []string
}

// NewNormalizer creates a Normalizer recognizing the given reference
// extensions (with or without a leading dot).
func NewNormalizer(extensions ...string) *Normalizer {
	n := &Normalizer{}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		n.extensions = append(n.extensions, ext)
	}
	return n
}

func (n *Normalizer) exts() []string {
	if n == nil || len(n.extensions) == 0 {
		return []string{".pdf"}
	}
	return n.extensions
}

// Normalize flattens doc into facts and returns the sorted, de-duplicated
// set of document references found in any string leaf.
func (n *Normalizer) Normalize(doc Value) (Document, []string) {
	out := Document{
		ID:   topLevelString(doc, "@id", "id"),
		Type: topLevelString(doc, "@type", "type"),
	}
	flatten("", doc, &out.Facts)

	refs := map[string]struct{}{}
	n.collectRefs(doc, refs)
	sorted := make([]string, 0, len(refs))
	for ref := range refs {
		sorted = append(sorted, ref)
	}
	sort.Strings(sorted)
	return out, sorted
}

// Documents returns the graph nodes held by v: the items of a top-level
// array, the items of an "@graph" member, or v itself.
func Documents(v Value) []Value {
	if v.Kind == KindArray {
		return v.Items
	}
	if graph, ok := v.Get("@graph"); ok && graph.Kind == KindArray {
		return graph.Items
	}
	return []Value{v}
}

func topLevelString(doc Value, keys ...string) string {
	for _, key := range keys {
		v, ok := doc.Get(key)
		if !ok {
			continue
		}
		if isPropertyObject(v) {
			v = v.Fields["value"]
		}
		if s, ok := v.Scalar(); ok && s != NullSentinel {
			return s
		}
	}
	return ""
}

// isPropertyObject reports whether v has the {value, unit?, segment?, ...} shape.
func isPropertyObject(v Value) bool {
	if v.Kind != KindObject {
		return false
	}
	if _, ok := v.Fields["value"]; !ok {
		return false
	}
	for _, key := range v.Keys {
		if key == "value" {
			continue
		}
		known := false
		for _, m := range propertyMembers {
			if key == m {
				known = true
				break
			}
		}
		if !known {
			return false
		}
	}
	return true
}

func flatten(prefix string, v Value, facts *[]core.NormalizedFact) {
	switch v.Kind {
	case KindObject:
		if isPropertyObject(v) {
			flatten(prefix, v.Fields["value"], facts)
			for _, m := range propertyMembers {
				if member, ok := v.Fields[m]; ok {
					flatten(prefix+"__"+m, member, facts)
				}
			}
			return
		}
		for _, key := range v.Keys {
			flatten(joinKey(prefix, key), v.Fields[key], facts)
		}
	case KindArray:
		for i, item := range v.Items {
			flatten(joinKey(prefix, strconv.Itoa(i)), item, facts)
		}
	default:
		s, ok := v.Scalar()
		if !ok || s == NullSentinel {
			return
		}
		*facts = append(*facts, core.NormalizedFact{Key: prefix, Value: s})
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func (n *Normalizer) collectRefs(v Value, refs map[string]struct{}) {
	switch v.Kind {
	case KindObject:
		for _, key := range v.Keys {
			n.collectRefs(v.Fields[key], refs)
		}
	case KindArray:
		for _, item := range v.Items {
			n.collectRefs(item, refs)
		}
	case KindString:
		for _, token := range strings.Fields(v.Str) {
			token = strings.Trim(token, `"'<>()[]{},;`)
			if n.isDocumentRef(token) {
				refs[token] = struct{}{}
			}
		}
	}
}

// isDocumentRef reports whether s is URL-like and its path ends in a
// recognized document extension. Query strings and fragments are ignored.
func (n *Normalizer) isDocumentRef(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return false
		}
	case "file":
	case "":
		if !strings.Contains(s, "/") {
			return false
		}
	default:
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	for _, want := range n.exts() {
		if ext == want {
			return true
		}
	}
	return false
}

// Text renders facts as "key: value" lines.
func Text(facts []core.NormalizedFact) string {
	var b strings.Builder
	for i, f := range facts {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.Key)
		b.WriteString(": ")
		b.WriteString(f.Value)
	}
	return b.String()
}

// Paragraphs groups consecutive facts sharing the same top-level key.
// Every fact lands in exactly one paragraph.
func Paragraphs(facts []core.NormalizedFact) []core.Paragraph {
	var out []core.Paragraph
	for _, f := range facts {
		head := rootKey(f.Key)
		if len(out) == 0 || out[len(out)-1].Heading != head {
			out = append(out, core.Paragraph{Heading: head})
		}
		last := &out[len(out)-1]
		last.Lines = append(last.Lines, f.Key+": "+f.Value)
	}
	return out
}

// ParagraphText joins paragraphs with blank lines so the chunker can cut
// at their boundaries.
func ParagraphText(paragraphs []core.Paragraph) string {
	parts := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		parts[i] = strings.Join(p.Lines, "\n")
	}
	return strings.Join(parts, "\n\n")
}

func rootKey(key string) string {
	if i := strings.Index(key, "."); i >= 0 {
		key = key[:i]
	}
	if i := strings.Index(key, "__"); i >= 0 {
		key = key[:i]
	}
	return key
}
