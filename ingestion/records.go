package ingestion

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/poiesic/machinerag/chunker"
	"github.com/poiesic/machinerag/core"
	"github.com/poiesic/machinerag/normalize"
)

// parentNamespace scopes ParentIDs; the same origin and content always
// yield the same id.
var parentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("machinerag:parent"))

const contentTypeText = "text/plain"

// draft is a record awaiting its embedding.
type draft struct {
	name   string
	text   string
	labels map[string]string
}

// sourceDrafts is everything one source contributes to the store.
type sourceDrafts struct {
	origin  string
	parent  core.ParentRecord
	drafts  []draft // drafts[0] is the parent
	skipped int     // duplicate chunks dropped
}

// ParentID returns the stable id shared by a source's parent and chunks.
func ParentID(origin, fingerprint string) string {
	return uuid.NewSHA1(parentNamespace, []byte(origin+"\x00"+fingerprint)).String()
}

// truncateRunes returns at most n runes of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func baseLabels(origin, parentID string, meta core.MachineMeta) map[string]string {
	labels := meta.Labels()
	labels[core.LabelSource] = origin
	labels[core.LabelParentID] = parentID
	return labels
}

func newParentDraft(origin, parentID, text string, meta core.MachineMeta) draft {
	labels := baseLabels(origin, parentID, meta)
	labels[core.LabelKind] = core.RecordKindParent
	labels[core.LabelSHA256] = core.Fingerprint([]byte(text))
	labels[core.LabelText] = text
	return draft{name: origin + "#parent", text: text, labels: labels}
}

func newChunkDraft(origin string, chunk core.Chunk, meta core.MachineMeta) draft {
	labels := baseLabels(origin, chunk.ParentID, meta)
	labels[core.LabelKind] = core.RecordKindChunk
	labels[core.LabelSHA256] = chunk.ContentHash
	labels[core.LabelText] = chunk.Content
	labels[core.LabelChunkIndex] = strconv.Itoa(chunk.Index)
	if chunk.SectionHeading != "" {
		labels[core.LabelSectionPath] = chunk.SectionHeading
	}
	return draft{name: origin + "#" + strconv.Itoa(chunk.Index), text: chunk.Content, labels: labels}
}

// recordBuilder turns loaded sources into drafts.
type recordBuilder struct {
	chunker     *chunker.Chunker
	parentChars int
}

// addChunks appends chunk drafts for texts, skipping content hashes already
// seen in the run. index continues across calls for one source.
func (b *recordBuilder) addChunks(run *RunContext, sd *sourceDrafts, texts []string, heading func(string) string, meta core.MachineMeta, index *int) {
	for _, text := range texts {
		chunk := core.Chunk{
			Index:       *index,
			Content:     text,
			ContentHash: core.Fingerprint([]byte(text)),
			ParentID:    sd.parent.ParentID,
		}
		*index++
		if heading != nil {
			chunk.SectionHeading = heading(text)
		}
		if !run.MarkChunk(chunk.ContentHash) {
			sd.skipped++
			continue
		}
		sd.drafts = append(sd.drafts, newChunkDraft(sd.origin, chunk, meta))
	}
}

// graphDrafts builds the parent and chunk drafts of one normalized graph.
func (b *recordBuilder) graphDrafts(run *RunContext, origin, fingerprint string, doc normalize.Document, meta core.MachineMeta) sourceDrafts {
	parentID := ParentID(origin, fingerprint)
	parentText := truncateRunes(normalize.Text(doc.Facts), b.parentChars)

	sd := sourceDrafts{
		origin: origin,
		parent: core.ParentRecord{ParentID: parentID, Origin: origin, Text: parentText},
	}
	sd.drafts = append(sd.drafts, newParentDraft(origin, parentID, parentText, meta))

	index := 0
	texts := b.chunker.Chunk(normalize.ParagraphText(normalize.Paragraphs(doc.Facts)))
	b.addChunks(run, &sd, texts, nil, meta, &index)
	return sd
}

// pdfDrafts builds the parent and chunk drafts of one extracted PDF. Each
// section is chunked on its own and chunks are labelled with their section path.
func (b *recordBuilder) pdfDrafts(run *RunContext, origin, fingerprint, text string, meta core.MachineMeta) sourceDrafts {
	parentID := ParentID(origin, fingerprint)
	parentText := truncateRunes(text, b.parentChars)

	sd := sourceDrafts{
		origin: origin,
		parent: core.ParentRecord{ParentID: parentID, Origin: origin, Text: parentText},
	}
	sd.drafts = append(sd.drafts, newParentDraft(origin, parentID, parentText, meta))

	index := 0
	for _, section := range chunker.Sectionize(text) {
		heading := func(chunk string) string { return chunker.SectionPath(chunk, section) }
		b.addChunks(run, &sd, b.chunker.Chunk(section.Text), heading, meta, &index)
	}
	return sd
}
