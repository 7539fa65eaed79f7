package htsvoice

import (
	"fmt"
	"strconv"
	"strings"
)

// byteRange is an inclusive [start, end] byte offset pair into the [DATA]
// section, as written in a [POSITION] line like "9804-40879".
type byteRange struct {
	start, end int
}

func parseByteRange(raw string) (byteRange, error) {
	lo, hi, found := strings.Cut(strings.TrimSpace(raw), "-")
	if !found {
		return byteRange{}, fmt.Errorf("%w: malformed byte range %q", ErrInvalidHeader, raw)
	}

	start, err := strconv.Atoi(lo)
	if err != nil {
		return byteRange{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}

	end, err := strconv.Atoi(hi)
	if err != nil {
		return byteRange{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}

	return byteRange{start: start, end: end}, nil
}

func parseByteRanges(raw string) ([]byteRange, error) {
	var ranges []byteRange
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		r, err := parseByteRange(part)
		if err != nil {
			return nil, err
		}

		ranges = append(ranges, r)
	}

	return ranges, nil
}

// headerLine is one KEY[SUBKEY]:VALUE line of a header section, already
// split into its parts. SUBKEY is empty when the line has no brackets.
type headerLine struct {
	Key    string
	Subkey string
	Value  string
}

// parseHeaderLines splits a header section's raw text into headerLine
// records, one per non-blank line. Quoted values ("a","b") keep their
// commas; unquoted values are taken verbatim including embedded commas
// (callers that need a list further split on top-level commas themselves).
func parseHeaderLines(section string) []headerLine {
	var lines []headerLine

	for _, raw := range strings.Split(section, "\n") {
		raw = strings.TrimRight(raw, "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}

		keyPart, value, found := strings.Cut(raw, ":")
		if !found {
			continue
		}

		key, subkey := keyPart, ""
		if lb := strings.IndexByte(keyPart, '['); lb >= 0 {
			if rb := strings.IndexByte(keyPart, ']'); rb > lb {
				key = keyPart[:lb]
				subkey = keyPart[lb+1 : rb]
			}
		}

		lines = append(lines, headerLine{Key: key, Subkey: subkey, Value: value})
	}

	return lines
}

// splitQuotedList splits a comma-separated list of "..." quoted tokens,
// such as GV_OFF_CONTEXT:"*-sil+*","*-pau+*". Unquoted items are accepted
// verbatim as a convenience for hand-edited fixtures.
func splitQuotedList(value string) []string {
	var items []string

	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		part = strings.TrimPrefix(part, `"`)
		part = strings.TrimSuffix(part, `"`)
		items = append(items, part)
	}

	return items
}

// rawGlobal, rawStream and rawPosition are the parsed-but-not-yet-typed
// header sections, used only inside the parser before being assembled into
// GlobalMetadata / StreamMetadata / byte-range tables.
type rawGlobal struct {
	htsVoiceVersion    string
	samplingFrequency  int
	framePeriod        int
	numStates          int
	numStreams         int
	streamType         []string
	fullcontextFormat  string
	fullcontextVersion string
	gvOffContext       []string
	comment            string
}

func parseGlobalSection(section string) (rawGlobal, error) {
	var g rawGlobal

	for _, l := range parseHeaderLines(section) {
		switch l.Key {
		case "HTS_VOICE_VERSION":
			g.htsVoiceVersion = l.Value
		case "SAMPLING_FREQUENCY":
			v, err := strconv.Atoi(strings.TrimSpace(l.Value))
			if err != nil {
				return g, fmt.Errorf("%w: SAMPLING_FREQUENCY: %v", ErrInvalidHeader, err)
			}

			g.samplingFrequency = v
		case "FRAME_PERIOD":
			v, err := strconv.Atoi(strings.TrimSpace(l.Value))
			if err != nil {
				return g, fmt.Errorf("%w: FRAME_PERIOD: %v", ErrInvalidHeader, err)
			}

			g.framePeriod = v
		case "NUM_STATES":
			v, err := strconv.Atoi(strings.TrimSpace(l.Value))
			if err != nil {
				return g, fmt.Errorf("%w: NUM_STATES: %v", ErrInvalidHeader, err)
			}

			g.numStates = v
		case "NUM_STREAMS":
			v, err := strconv.Atoi(strings.TrimSpace(l.Value))
			if err != nil {
				return g, fmt.Errorf("%w: NUM_STREAMS: %v", ErrInvalidHeader, err)
			}

			g.numStreams = v
		case "STREAM_TYPE":
			g.streamType = splitQuotedList(l.Value)
		case "FULLCONTEXT_FORMAT":
			g.fullcontextFormat = l.Value
		case "FULLCONTEXT_VERSION":
			g.fullcontextVersion = l.Value
		case "GV_OFF_CONTEXT":
			g.gvOffContext = splitQuotedList(l.Value)
		case "COMMENT":
			g.comment = l.Value
		}
	}

	if g.numStreams != len(g.streamType) {
		return g, fmt.Errorf("%w: NUM_STREAMS=%d but STREAM_TYPE has %d entries", ErrInvalidHeader, g.numStreams, len(g.streamType))
	}

	return g, nil
}

type rawStream struct {
	vectorLength int
	numWindows   int
	isMSD        bool
	useGV        bool
	option       []string
}

func parseStreamSection(section string) (map[string]rawStream, error) {
	streams := make(map[string]rawStream)

	for _, l := range parseHeaderLines(section) {
		if l.Subkey == "" {
			continue
		}

		entry := streams[l.Subkey]

		switch l.Key {
		case "VECTOR_LENGTH":
			v, err := strconv.Atoi(strings.TrimSpace(l.Value))
			if err != nil {
				return nil, fmt.Errorf("%w: VECTOR_LENGTH[%s]: %v", ErrInvalidHeader, l.Subkey, err)
			}

			entry.vectorLength = v
		case "NUM_WINDOWS":
			v, err := strconv.Atoi(strings.TrimSpace(l.Value))
			if err != nil {
				return nil, fmt.Errorf("%w: NUM_WINDOWS[%s]: %v", ErrInvalidHeader, l.Subkey, err)
			}

			entry.numWindows = v
		case "IS_MSD":
			entry.isMSD = strings.TrimSpace(l.Value) == "1"
		case "USE_GV":
			entry.useGV = strings.TrimSpace(l.Value) == "1"
		case "OPTION":
			entry.option = splitQuotedList(l.Value)
		}

		streams[l.Subkey] = entry
	}

	return streams, nil
}

type rawPosition struct {
	durationPDF  byteRange
	durationTree byteRange
	perStream    map[string]rawStreamPosition
}

type rawStreamPosition struct {
	win  []byteRange
	pdf  byteRange
	tree byteRange
	gvPDF, gvTree   byteRange
	hasGV bool
}

func parsePositionSection(section string) (rawPosition, error) {
	pos := rawPosition{perStream: make(map[string]rawStreamPosition)}

	for _, l := range parseHeaderLines(section) {
		var err error

		if l.Subkey == "" {
			switch l.Key {
			case "DURATION_PDF":
				pos.durationPDF, err = parseByteRange(l.Value)
			case "DURATION_TREE":
				pos.durationTree, err = parseByteRange(l.Value)
			}

			if err != nil {
				return pos, err
			}

			continue
		}

		entry := pos.perStream[l.Subkey]

		switch l.Key {
		case "STREAM_WIN":
			entry.win, err = parseByteRanges(l.Value)
		case "STREAM_PDF":
			entry.pdf, err = parseByteRange(l.Value)
		case "STREAM_TREE":
			entry.tree, err = parseByteRange(l.Value)
		case "GV_PDF":
			entry.gvPDF, err = parseByteRange(l.Value)
			entry.hasGV = true
		case "GV_TREE":
			entry.gvTree, err = parseByteRange(l.Value)
			entry.hasGV = true
		}

		if err != nil {
			return pos, err
		}

		pos.perStream[l.Subkey] = entry
	}

	return pos, nil
}
