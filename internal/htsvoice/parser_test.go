package htsvoice

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/example/jbonsai/internal/label"
)

// putFloats appends little-endian float32 encodings of vs to buf.
func putFloats(buf *bytes.Buffer, vs ...float64) {
	for _, v := range vs {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(float32(v)))
		buf.Write(b[:])
	}
}

func putU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

// buildFixtureVoice assembles a tiny but structurally complete .htsvoice
// buffer: 2 states, 1 stream ("MCP", vector length 1, 1 window, no GV),
// a 2-leaf duration tree and a 2-leaf stream tree.
func buildFixtureVoice(t *testing.T) []byte {
	t.Helper()

	durationTreeText := "QS Test<=0 { \"*\" }\n{*}[2]\n{\n0 Test<=0 \"dur_1\" \"dur_2\"\n}"

	var durationPDF bytes.Buffer
	putU32(&durationPDF, 2) // npdf for the single duration tree
	putFloats(&durationPDF, 3.0, 5.0, 0.5, 0.7)
	putFloats(&durationPDF, 4.0, 6.0, 0.6, 0.8)

	streamTreeText := "QS Test<=0 { \"*\" }\n{*}[2]\n{\n0 Test<=0 \"mcp_1\" \"mcp_2\"\n}"

	var streamPDF bytes.Buffer
	putU32(&streamPDF, 2)
	putFloats(&streamPDF, 0.1, 0.2) // mean, variance (vector length 1, 1 window)
	putFloats(&streamPDF, 0.3, 0.4)

	windowText := "3 -0.5 0.0 0.5"

	var data bytes.Buffer
	durTreeStart := data.Len()
	data.WriteString(durationTreeText)
	durTreeEnd := data.Len() - 1

	durPDFStart := data.Len()
	data.Write(durationPDF.Bytes())
	durPDFEnd := data.Len() - 1

	winStart := data.Len()
	data.WriteString(windowText)
	winEnd := data.Len() - 1

	streamPDFStart := data.Len()
	data.Write(streamPDF.Bytes())
	streamPDFEnd := data.Len() - 1

	streamTreeStart := data.Len()
	data.WriteString(streamTreeText)
	streamTreeEnd := data.Len() - 1

	var buf bytes.Buffer
	buf.WriteString("[GLOBAL]\n")
	buf.WriteString("HTS_VOICE_VERSION:1.0\n")
	buf.WriteString("SAMPLING_FREQUENCY:16000\n")
	buf.WriteString("FRAME_PERIOD:80\n")
	buf.WriteString("NUM_STATES:2\n")
	buf.WriteString("NUM_STREAMS:1\n")
	buf.WriteString("STREAM_TYPE:MCP\n")
	buf.WriteString("FULLCONTEXT_FORMAT:HTS_TTS_ENG\n")
	buf.WriteString("FULLCONTEXT_VERSION:1.0\n")
	buf.WriteString("GV_OFF_CONTEXT:\"*-sil+*\"\n")
	buf.WriteString("COMMENT:fixture\n")
	buf.WriteString("[STREAM]\n")
	buf.WriteString("VECTOR_LENGTH[MCP]:1\n")
	buf.WriteString("NUM_WINDOWS[MCP]:1\n")
	buf.WriteString("IS_MSD[MCP]:0\n")
	buf.WriteString("USE_GV[MCP]:0\n")
	buf.WriteString("OPTION[MCP]:ALPHA=0.42\n")
	buf.WriteString("[POSITION]\n")
	buf.WriteString("DURATION_PDF:" + itoa(durPDFStart) + "-" + itoa(durPDFEnd) + "\n")
	buf.WriteString("DURATION_TREE:" + itoa(durTreeStart) + "-" + itoa(durTreeEnd) + "\n")
	buf.WriteString("STREAM_WIN[MCP]:" + itoa(winStart) + "-" + itoa(winEnd) + "\n")
	buf.WriteString("STREAM_PDF[MCP]:" + itoa(streamPDFStart) + "-" + itoa(streamPDFEnd) + "\n")
	buf.WriteString("STREAM_TREE[MCP]:" + itoa(streamTreeStart) + "-" + itoa(streamTreeEnd) + "\n")
	buf.WriteString("[DATA]\n")
	buf.Write(data.Bytes())

	return buf.Bytes()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}

	neg := n < 0
	if neg {
		n = -n
	}

	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}

	if neg {
		return "-" + string(digits)
	}

	return string(digits)
}

func TestParseVoice_Fixture(t *testing.T) {
	data := buildFixtureVoice(t)

	meta, voice, err := ParseVoice(data, nil)
	if err != nil {
		t.Fatalf("ParseVoice: %v", err)
	}

	if meta.SamplingFrequency != 16000 || meta.FramePeriod != 80 || meta.NumStates != 2 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	if !meta.HasGVOffContext {
		t.Fatalf("expected gv_off_context to be set")
	}

	if len(voice.Streams) != 1 || voice.Streams[0].Metadata.Name != "MCP" {
		t.Fatalf("unexpected streams: %+v", voice.Streams)
	}

	if voice.Streams[0].Metadata.Options.Alpha != 0.42 {
		t.Fatalf("expected alpha option 0.42, got %+v", voice.Streams[0].Metadata.Options)
	}

	if voice.Streams[0].Windows.Size() != 1 || voice.Streams[0].Windows.At(0).Size() != 3 {
		t.Fatalf("unexpected windows: %+v", voice.Streams[0].Windows)
	}

	l := label.Label{Text: "sil^a-b+c=d"}

	durMP, err := voice.Duration.GetParameter(durationTreeState, l)
	if err != nil {
		t.Fatalf("GetParameter(duration): %v", err)
	}

	if len(durMP.Pairs) != 2 || durMP.Pairs[0].Mean != 4.0 {
		t.Fatalf("unexpected duration leaf: %+v", durMP)
	}

	streamMP, err := voice.Streams[0].Model.GetParameter(2, l)
	if err != nil {
		t.Fatalf("GetParameter(stream): %v", err)
	}

	if len(streamMP.Pairs) != 1 || streamMP.Pairs[0].Mean != float64(float32(0.3)) {
		t.Fatalf("unexpected stream leaf: %+v", streamMP)
	}
}

func TestParseVoice_MissingSection(t *testing.T) {
	_, _, err := ParseVoice([]byte("[GLOBAL]\nSAMPLING_FREQUENCY:16000\n"), nil)
	if err == nil {
		t.Fatalf("expected error for missing sections")
	}
}

func TestNewVoiceSet_RequiresAtLeastOneVoice(t *testing.T) {
	if _, err := NewVoiceSet(GlobalMetadata{}, nil); err == nil {
		t.Fatalf("expected ErrEmptyVoice")
	}
}

func TestGlobalMetadata_Equal(t *testing.T) {
	a := GlobalMetadata{SamplingFrequency: 16000, NumStates: 5, NumStreams: 2, StreamTypes: []string{"MCP", "LF0"}}
	b := a
	if !a.Equal(b) {
		t.Fatalf("expected equal metadata")
	}

	b.SamplingFrequency = 48000
	if a.Equal(b) {
		t.Fatalf("expected unequal metadata")
	}
}
