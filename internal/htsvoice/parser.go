package htsvoice

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/jbonsai/internal/label"
)

// ParseVoice decodes one .htsvoice file's bytes into its GlobalMetadata and
// Voice content. Multiple voices are combined into a VoiceSet by the
// caller (internal/voiceset), after checking GlobalMetadata.Equal across
// files.
func ParseVoice(data []byte, logger *slog.Logger) (GlobalMetadata, Voice, error) {
	text := string(data)

	globalRaw, streamRaw, positionRaw, dataRaw, err := splitSections(text)
	if err != nil {
		return GlobalMetadata{}, Voice{}, err
	}

	global, err := parseGlobalSection(globalRaw)
	if err != nil {
		return GlobalMetadata{}, Voice{}, err
	}

	streams, err := parseStreamSection(streamRaw)
	if err != nil {
		return GlobalMetadata{}, Voice{}, err
	}

	position, err := parsePositionSection(positionRaw)
	if err != nil {
		return GlobalMetadata{}, Voice{}, err
	}

	dataBytes := []byte(dataRaw)

	durationModel, err := parseModelSection(dataBytes, position.durationTree, position.durationPDF, global.numStates, 1, false)
	if err != nil {
		return GlobalMetadata{}, Voice{}, fmt.Errorf("duration model: %w", err)
	}

	voice := Voice{Duration: durationModel}

	for _, name := range global.streamType {
		sraw, ok := streams[name]
		if !ok {
			return GlobalMetadata{}, Voice{}, fmt.Errorf("%w: stream %q has no [STREAM] entry", ErrInvalidHeader, name)
		}

		pos, ok := position.perStream[name]
		if !ok {
			return GlobalMetadata{}, Voice{}, fmt.Errorf("%w: stream %q has no [POSITION] entry", ErrInvalidHeader, name)
		}

		streamModel, err := parseModelSection(dataBytes, pos.tree, pos.pdf, sraw.vectorLength, sraw.numWindows, sraw.isMSD)
		if err != nil {
			return GlobalMetadata{}, Voice{}, fmt.Errorf("stream %q model: %w", name, err)
		}

		var gvModel *Model
		if sraw.useGV {
			if !pos.hasGV {
				return GlobalMetadata{}, Voice{}, fmt.Errorf("%w: stream %q", ErrGvRangeMissing, name)
			}

			gv, err := parseModelSection(dataBytes, pos.gvTree, pos.gvPDF, sraw.vectorLength, 1, false)
			if err != nil {
				return GlobalMetadata{}, Voice{}, fmt.Errorf("stream %q gv model: %w", name, err)
			}

			gvModel = &gv
		}

		windows := make([]Window, 0, len(pos.win))
		for _, wr := range pos.win {
			if wr.end+1 > len(dataBytes) || wr.start < 0 || wr.start > wr.end {
				return GlobalMetadata{}, Voice{}, fmt.Errorf("%w: window byte range out of bounds", ErrInvalidBinary)
			}

			coeffs, err := parseWindowRow(string(dataBytes[wr.start : wr.end+1]))
			if err != nil {
				return GlobalMetadata{}, Voice{}, err
			}

			windows = append(windows, NewWindow(coeffs))
		}

		voice.Streams = append(voice.Streams, StreamModel{
			Metadata: StreamMetadata{
				Name:         name,
				VectorLength: sraw.vectorLength,
				NumWindows:   sraw.numWindows,
				IsMSD:        sraw.isMSD,
				UseGV:        sraw.useGV,
				Options:      ParseStreamOptions(sraw.option, logger),
			},
			Model:   streamModel,
			GV:      gvModel,
			Windows: NewWindows(windows),
		})
	}

	meta := GlobalMetadata{
		HTSVoiceVersion:    global.htsVoiceVersion,
		SamplingFrequency:  global.samplingFrequency,
		FramePeriod:        global.framePeriod,
		NumStates:          global.numStates,
		NumStreams:         global.numStreams,
		StreamTypes:        global.streamType,
		FullContextFormat:  global.fullcontextFormat,
		FullContextVersion: global.fullcontextVersion,
		Comment:            global.comment,
	}

	if len(global.gvOffContext) > 0 {
		meta.GVOffContext = label.NewQuestion("GV_OFF_CONTEXT", global.gvOffContext)
		meta.HasGVOffContext = true
	}

	return meta, voice, nil
}

// parseModelSection parses one tree-range/pdf-range pair into a Model.
func parseModelSection(data []byte, treeRange, pdfRange byteRange, vectorLength, numWindows int, hasMSD bool) (Model, error) {
	if treeRange.end+1 > len(data) || treeRange.start < 0 || treeRange.start > treeRange.end {
		return Model{}, fmt.Errorf("%w: tree byte range out of bounds", ErrInvalidBinary)
	}

	if pdfRange.end+1 > len(data) || pdfRange.start < 0 || pdfRange.start > pdfRange.end {
		return Model{}, fmt.Errorf("%w: pdf byte range out of bounds", ErrInvalidBinary)
	}

	treeText := string(data[treeRange.start : treeRange.end+1])

	questions, rawTrees, err := parseQuestionsAndTrees(treeText)
	if err != nil {
		return Model{}, err
	}

	trees := make([]Tree, len(rawTrees))
	for i, rt := range rawTrees {
		t, err := convertTree(rt, questions)
		if err != nil {
			return Model{}, err
		}

		trees[i] = t
	}

	pdf, err := parsePDFBlock(data[pdfRange.start:pdfRange.end+1], len(trees), vectorLength, numWindows, hasMSD)
	if err != nil {
		return Model{}, err
	}

	return Model{Trees: trees, PDF: pdf}, nil
}

// splitSections locates the four top-level [GLOBAL]/[STREAM]/[POSITION]/
// [DATA] markers and returns each section's raw content. [DATA]'s content
// spans to the end of the file (it is binary, so it is not newline
// terminated the way the text sections are).
func splitSections(text string) (global, stream, position, data string, err error) {
	markers := []string{"[GLOBAL]\n", "[STREAM]\n", "[POSITION]\n", "[DATA]\n"}

	idx := make([]int, len(markers))
	for i, m := range markers {
		p := strings.Index(text, m)
		if p < 0 {
			return "", "", "", "", fmt.Errorf("%w: missing %s section marker", ErrInvalidHeader, strings.TrimSpace(m))
		}

		idx[i] = p
	}

	sectionStart := func(i int) int { return idx[i] + len(markers[i]) }

	global = text[sectionStart(0):idx[1]]
	stream = text[sectionStart(1):idx[2]]
	position = text[sectionStart(2):idx[3]]
	data = text[sectionStart(3):]

	return global, stream, position, data, nil
}
