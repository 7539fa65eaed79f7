package main

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// buildCmdFixtureVoice builds a minimal but structurally valid 2-stream
// (MCP, LF0) .htsvoice bundle for exercising the synth/bench commands
// end to end against a real internal/tts.Service, mirroring the fixture
// shape used by internal/htsvoice's and internal/server's own tests.
func buildCmdFixtureVoice(t *testing.T) []byte {
	t.Helper()

	durationTreeText := "QS Test<=0 { \"*\" }\n{*}[2]\n{\n0 Test<=0 \"dur_1\" \"dur_2\"\n}"

	var durationPDF bytes.Buffer
	putCmdU32(&durationPDF, 2)
	putCmdFloats(&durationPDF, 3.0, 5.0, 0.5, 0.7)
	putCmdFloats(&durationPDF, 4.0, 6.0, 0.6, 0.8)

	mcpTreeText := "QS Test<=0 { \"*\" }\n{*}[2]\n{\n0 Test<=0 \"mcp_1\" \"mcp_2\"\n}"

	var mcpPDF bytes.Buffer
	putCmdU32(&mcpPDF, 2)
	putCmdFloats(&mcpPDF, 0.1, 0.05, 0.01, 0.01)
	putCmdFloats(&mcpPDF, 0.2, 0.06, 0.02, 0.02)

	lf0TreeText := "QS Test<=0 { \"*\" }\n{*}[2]\n{\n0 Test<=0 \"lf0_1\" \"lf0_2\"\n}"

	var lf0PDF bytes.Buffer
	putCmdU32(&lf0PDF, 2)
	putCmdFloats(&lf0PDF, math.Log(150), 0.01, 0.9)
	putCmdFloats(&lf0PDF, math.Log(140), 0.01, 0.9)

	mcpWindowText := "1 1.0"
	lf0WindowText := "1 1.0"

	var data bytes.Buffer

	durTreeStart := data.Len()
	data.WriteString(durationTreeText)
	durTreeEnd := data.Len() - 1

	durPDFStart := data.Len()
	data.Write(durationPDF.Bytes())
	durPDFEnd := data.Len() - 1

	mcpWinStart := data.Len()
	data.WriteString(mcpWindowText)
	mcpWinEnd := data.Len() - 1

	mcpPDFStart := data.Len()
	data.Write(mcpPDF.Bytes())
	mcpPDFEnd := data.Len() - 1

	mcpTreeStart := data.Len()
	data.WriteString(mcpTreeText)
	mcpTreeEnd := data.Len() - 1

	lf0WinStart := data.Len()
	data.WriteString(lf0WindowText)
	lf0WinEnd := data.Len() - 1

	lf0PDFStart := data.Len()
	data.Write(lf0PDF.Bytes())
	lf0PDFEnd := data.Len() - 1

	lf0TreeStart := data.Len()
	data.WriteString(lf0TreeText)
	lf0TreeEnd := data.Len() - 1

	var buf bytes.Buffer
	buf.WriteString("[GLOBAL]\n")
	buf.WriteString("HTS_VOICE_VERSION:1.0\n")
	buf.WriteString("SAMPLING_FREQUENCY:16000\n")
	buf.WriteString("FRAME_PERIOD:80\n")
	buf.WriteString("NUM_STATES:2\n")
	buf.WriteString("NUM_STREAMS:2\n")
	buf.WriteString("STREAM_TYPE:MCP,LF0\n")
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
	buf.WriteString("VECTOR_LENGTH[LF0]:1\n")
	buf.WriteString("NUM_WINDOWS[LF0]:1\n")
	buf.WriteString("IS_MSD[LF0]:1\n")
	buf.WriteString("USE_GV[LF0]:0\n")
	buf.WriteString("OPTION[LF0]:\n")
	buf.WriteString("[POSITION]\n")
	buf.WriteString("DURATION_PDF:" + itoaCmd(durPDFStart) + "-" + itoaCmd(durPDFEnd) + "\n")
	buf.WriteString("DURATION_TREE:" + itoaCmd(durTreeStart) + "-" + itoaCmd(durTreeEnd) + "\n")
	buf.WriteString("STREAM_WIN[MCP]:" + itoaCmd(mcpWinStart) + "-" + itoaCmd(mcpWinEnd) + "\n")
	buf.WriteString("STREAM_PDF[MCP]:" + itoaCmd(mcpPDFStart) + "-" + itoaCmd(mcpPDFEnd) + "\n")
	buf.WriteString("STREAM_TREE[MCP]:" + itoaCmd(mcpTreeStart) + "-" + itoaCmd(mcpTreeEnd) + "\n")
	buf.WriteString("STREAM_WIN[LF0]:" + itoaCmd(lf0WinStart) + "-" + itoaCmd(lf0WinEnd) + "\n")
	buf.WriteString("STREAM_PDF[LF0]:" + itoaCmd(lf0PDFStart) + "-" + itoaCmd(lf0PDFEnd) + "\n")
	buf.WriteString("STREAM_TREE[LF0]:" + itoaCmd(lf0TreeStart) + "-" + itoaCmd(lf0TreeEnd) + "\n")
	buf.WriteString("[DATA]\n")
	buf.Write(data.Bytes())

	return buf.Bytes()
}

func putCmdFloats(buf *bytes.Buffer, vs ...float64) {
	for _, v := range vs {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(float32(v)))
		buf.Write(b[:])
	}
}

func putCmdU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func itoaCmd(n int) string {
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
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}
