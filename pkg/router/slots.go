package router

import (
	"bytes"
	"hash/fnv"
	"strings"
	"sync"
)

var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// putBuffer returns buf to the pool unless it grew unusually large.
func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1<<20 {
		return
	}
	bufferPool.Put(buf)
}

// extractSlots finds every element carrying data-slot="id" in a single pass
// and returns its inner content, split into plain-text and HTML slots.
// Nested elements of the same tag are balanced with a depth counter.
func extractSlots(html string) (textSlots, htmlSlots map[string]string) {
	textSlots = make(map[string]string)
	htmlSlots = make(map[string]string)

	const marker = `data-slot="`
	htmlLen := len(html)
	pos := 0

	for pos < htmlLen {
		idx := strings.Index(html[pos:], marker)
		if idx == -1 {
			break
		}

		idStart := pos + idx + len(marker)
		idLen := strings.IndexByte(html[idStart:], '"')
		if idLen == -1 {
			break
		}
		slotID := html[idStart : idStart+idLen]

		tagStart := pos + idx
		for tagStart > 0 && html[tagStart] != '<' {
			tagStart--
		}
		tagNameEnd := tagStart + 1
		for tagNameEnd < htmlLen && !isTagNameEnd(html[tagNameEnd]) {
			tagNameEnd++
		}
		tagName := html[tagStart+1 : tagNameEnd]

		closeAngle := strings.IndexByte(html[idStart+idLen:], '>')
		if closeAngle == -1 {
			break
		}
		contentStart := idStart + idLen + closeAngle + 1

		openTag := "<" + tagName
		closeTag := "</" + tagName
		depth := 1
		searchPos := contentStart
		contentEnd := -1

		for depth > 0 && searchPos < htmlLen {
			nextClose := strings.Index(html[searchPos:], closeTag)
			if nextClose == -1 {
				break
			}
			nextClose += searchPos

			nextOpen := strings.Index(html[searchPos:], openTag)
			if nextOpen == -1 {
				nextOpen = htmlLen
			} else {
				nextOpen += searchPos
			}

			if nextOpen < nextClose {
				after := nextOpen + len(openTag)
				if after < htmlLen && isTagNameEnd(html[after]) {
					depth++
				}
				searchPos = after
				continue
			}

			depth--
			if depth == 0 {
				contentEnd = nextClose
			}
			searchPos = nextClose + len(closeTag)
		}

		if contentEnd == -1 {
			pos = contentStart
			continue
		}

		content := strings.TrimSpace(html[contentStart:contentEnd])
		if strings.ContainsAny(content, "<>&") {
			htmlSlots[slotID] = content
		} else {
			textSlots[slotID] = content
		}
		// Slots nested inside this one travel with its content.
		pos = searchPos
	}

	return textSlots, htmlSlots
}

func isTagNameEnd(c byte) bool {
	return c == ' ' || c == '>' || c == '/' || c == '\t' || c == '\n' || c == '\r'
}

// hashSlot computes the FNV-64a hash of slot content.
func hashSlot(content string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(content))
	return h.Sum64()
}
