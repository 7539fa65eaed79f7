package htsvoice

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/example/jbonsai/internal/label"
)

// scanner is a small hand-rolled reader over the QS/tree text embedded in
// the [DATA] section. The grammar (brace-delimited pattern lists,
// bracketed state numbers, optionally-quoted tree indices) doesn't map
// cleanly onto whitespace-delimited tokenizing, so this walks rune by rune
// the way the reference implementation's nom grammar does, simplified to
// assume one QS declaration per line (every voice in the corpus is
// written that way).
type scanner struct {
	s   string
	pos int
}

func (sc *scanner) skipSpace() {
	for sc.pos < len(sc.s) {
		switch sc.s[sc.pos] {
		case ' ', '\t', '\n', '\r':
			sc.pos++
		default:
			return
		}
	}
}

func (sc *scanner) eof() bool {
	sc.skipSpace()
	return sc.pos >= len(sc.s)
}

func (sc *scanner) peek() byte {
	if sc.pos >= len(sc.s) {
		return 0
	}

	return sc.s[sc.pos]
}

func isDelim(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '{', '}', '[', ']', ',':
		return true
	default:
		return false
	}
}

// readToken reads a quoted ("...") or bare (run of non-delimiter bytes)
// token, stripping surrounding quotes.
func (sc *scanner) readToken() (string, error) {
	sc.skipSpace()

	if sc.pos >= len(sc.s) {
		return "", fmt.Errorf("%w: unexpected end of tree data", ErrInvalidBinary)
	}

	if sc.s[sc.pos] == '"' {
		end := strings.IndexByte(sc.s[sc.pos+1:], '"')
		if end < 0 {
			return "", fmt.Errorf("%w: unterminated quoted token", ErrInvalidBinary)
		}

		tok := sc.s[sc.pos+1 : sc.pos+1+end]
		sc.pos += end + 2

		return tok, nil
	}

	start := sc.pos
	for sc.pos < len(sc.s) && !isDelim(sc.s[sc.pos]) {
		sc.pos++
	}

	if sc.pos == start {
		return "", fmt.Errorf("%w: expected token at offset %d", ErrInvalidBinary, start)
	}

	return sc.s[start:sc.pos], nil
}

func (sc *scanner) expect(b byte) error {
	sc.skipSpace()

	if sc.pos >= len(sc.s) || sc.s[sc.pos] != b {
		return fmt.Errorf("%w: expected %q at offset %d", ErrInvalidBinary, b, sc.pos)
	}

	sc.pos++

	return nil
}

func (sc *scanner) hasPrefix(p string) bool {
	sc.skipSpace()
	return strings.HasPrefix(sc.s[sc.pos:], p)
}

// readPatternList parses "{" tok ("," tok)* "}", unquoted or quoted tokens.
func (sc *scanner) readPatternList() ([]string, error) {
	if err := sc.expect('{'); err != nil {
		return nil, err
	}

	var items []string

	for {
		sc.skipSpace()
		if sc.peek() == '}' {
			break
		}

		tok, err := sc.readToken()
		if err != nil {
			return nil, err
		}

		items = append(items, tok)

		sc.skipSpace()
		if sc.peek() == ',' {
			sc.pos++
			continue
		}

		break
	}

	if err := sc.expect('}'); err != nil {
		return nil, err
	}

	return items, nil
}

func (sc *scanner) readBracketInt() (int, error) {
	if err := sc.expect('['); err != nil {
		return 0, err
	}

	sc.skipSpace()

	start := sc.pos
	if sc.peek() == '-' {
		sc.pos++
	}

	for sc.pos < len(sc.s) && sc.s[sc.pos] >= '0' && sc.s[sc.pos] <= '9' {
		sc.pos++
	}

	n, err := strconv.Atoi(sc.s[start:sc.pos])
	if err != nil {
		return 0, fmt.Errorf("%w: bad state index", ErrInvalidBinary)
	}

	if err := sc.expect(']'); err != nil {
		return 0, err
	}

	return n, nil
}

// treeIndexRef is a not-yet-resolved node/leaf reference parsed from tree
// text: either another node by its textual id, or a PDF leaf identified by
// the trailing digit run of its name token.
type treeIndexRef struct {
	isNode bool
	id     int
}

var digitRun = func(tok string) (int, bool) {
	end := len(tok)
	start := end

	for start > 0 && tok[start-1] >= '0' && tok[start-1] <= '9' {
		start--
	}

	if start == end {
		return 0, false
	}

	n, err := strconv.Atoi(tok[start:end])
	if err != nil {
		return 0, false
	}

	return n, true
}

func parseTreeIndex(tok string) (treeIndexRef, error) {
	if n, err := strconv.Atoi(tok); err == nil {
		return treeIndexRef{isNode: true, id: n}, nil
	}

	n, ok := digitRun(tok)
	if !ok {
		return treeIndexRef{}, fmt.Errorf("%w: cannot resolve tree index %q", ErrInvalidBinary, tok)
	}

	return treeIndexRef{isNode: false, id: n}, nil
}

func (sc *scanner) readTreeIndex() (treeIndexRef, error) {
	tok, err := sc.readToken()
	if err != nil {
		return treeIndexRef{}, err
	}

	return parseTreeIndex(tok)
}

type rawNode struct {
	id           int
	questionName string
	no, yes      treeIndexRef
}

type rawTree struct {
	state int
	nodes []rawNode
}

func (sc *scanner) readNode() (rawNode, error) {
	sc.skipSpace()

	start := sc.pos
	if sc.peek() == '-' {
		sc.pos++
	}

	for sc.pos < len(sc.s) && sc.s[sc.pos] >= '0' && sc.s[sc.pos] <= '9' {
		sc.pos++
	}

	id, err := strconv.Atoi(sc.s[start:sc.pos])
	if err != nil {
		return rawNode{}, fmt.Errorf("%w: bad node id", ErrInvalidBinary)
	}

	qname, err := sc.readToken()
	if err != nil {
		return rawNode{}, err
	}

	no, err := sc.readTreeIndex()
	if err != nil {
		return rawNode{}, err
	}

	yes, err := sc.readTreeIndex()
	if err != nil {
		return rawNode{}, err
	}

	return rawNode{id: id, questionName: qname, no: no, yes: yes}, nil
}

func (sc *scanner) readTree() (rawTree, error) {
	if _, err := sc.readPatternList(); err != nil {
		return rawTree{}, err
	}

	state, err := sc.readBracketInt()
	if err != nil {
		return rawTree{}, err
	}

	sc.skipSpace()
	if sc.peek() == '{' {
		sc.pos++

		var nodes []rawNode

		for {
			sc.skipSpace()
			if sc.peek() == '}' {
				break
			}

			n, err := sc.readNode()
			if err != nil {
				return rawTree{}, err
			}

			nodes = append(nodes, n)
		}

		if err := sc.expect('}'); err != nil {
			return rawTree{}, err
		}

		return rawTree{state: state, nodes: nodes}, nil
	}

	idx, err := sc.readTreeIndex()
	if err != nil {
		return rawTree{}, err
	}

	return rawTree{state: state, nodes: []rawNode{{yes: idx, no: idx}}}, nil
}

// parseQuestionsAndTrees parses the concatenated QS-declarations-then-trees
// text of one model's tree byte range.
func parseQuestionsAndTrees(text string) (map[string]label.Question, []rawTree, error) {
	sc := &scanner{s: text}
	questions := make(map[string]label.Question)

	for !sc.eof() && sc.hasPrefix("QS") {
		sc.pos += len("QS")

		name, err := sc.readToken()
		if err != nil {
			return nil, nil, err
		}

		patterns, err := sc.readPatternList()
		if err != nil {
			return nil, nil, err
		}

		questions[name] = label.NewQuestion(name, patterns)
	}

	var trees []rawTree
	for !sc.eof() {
		t, err := sc.readTree()
		if err != nil {
			return nil, nil, err
		}

		trees = append(trees, t)
	}

	return questions, trees, nil
}

// convertTree resolves a rawTree's id-linked node/leaf references into the
// flat NodeRef form Tree uses. Internal-node ids reference array position
// directly; PDF leaf ids are collected, sorted ascending, and mapped to
// their position in that sorted order -- matching the binary PDF section's
// write order, which the voice-training tool emits in ascending leaf-id
// order.
func convertTree(t rawTree, questions map[string]label.Question) (Tree, error) {
	if len(t.nodes) == 1 && t.nodes[0].yes == t.nodes[0].no && !t.nodes[0].yes.isNode {
		return Tree{
			State: t.state,
			Nodes: []Node{{
				Yes: NodeRef{IsLeaf: true, Index: 0},
				No:  NodeRef{IsLeaf: true, Index: 0},
			}},
		}, nil
	}

	nodeIndexByID := make(map[int]int, len(t.nodes))
	for i, n := range t.nodes {
		nodeIndexByID[n.id] = i
	}

	var leafIDs []int
	for _, n := range t.nodes {
		if !n.yes.isNode {
			leafIDs = append(leafIDs, n.yes.id)
		}

		if !n.no.isNode {
			leafIDs = append(leafIDs, n.no.id)
		}
	}

	sort.Ints(leafIDs)
	leafIDs = dedupInts(leafIDs)

	resolve := func(ref treeIndexRef) (NodeRef, error) {
		if ref.isNode {
			idx, ok := nodeIndexByID[ref.id]
			if !ok {
				return NodeRef{}, fmt.Errorf("%w: dangling node id %d", ErrUnresolvedNode, ref.id)
			}

			return NodeRef{IsLeaf: false, Index: idx}, nil
		}

		pos := sort.SearchInts(leafIDs, ref.id)

		return NodeRef{IsLeaf: true, Index: pos}, nil
	}

	nodes := make([]Node, len(t.nodes))

	for i, n := range t.nodes {
		q, ok := questions[n.questionName]
		if !ok {
			return Tree{}, fmt.Errorf("%w: unknown question %q", ErrInvalidBinary, n.questionName)
		}

		yes, err := resolve(n.yes)
		if err != nil {
			return Tree{}, err
		}

		no, err := resolve(n.no)
		if err != nil {
			return Tree{}, err
		}

		question := q
		nodes[i] = Node{Question: &question, Yes: yes, No: no}
	}

	return Tree{State: t.state, Nodes: nodes}, nil
}

func dedupInts(sorted []int) []int {
	if len(sorted) == 0 {
		return sorted
	}

	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}

	return out
}
