package mlpg

import (
	"testing"

	"github.com/example/jbonsai/internal/htsvoice"
	"github.com/example/jbonsai/internal/interp"
	"github.com/example/jbonsai/internal/label"
	"github.com/example/jbonsai/internal/sstream"
)

func singleLeaf(state int) htsvoice.Tree {
	ref := htsvoice.NodeRef{IsLeaf: true, Index: 0}
	return htsvoice.Tree{State: state, Nodes: []htsvoice.Node{{Yes: ref, No: ref}}}
}

// buildVoiceSet constructs a minimal one-stream voice: a static-only window
// (so MLPG reduces to a per-frame diagonal solve with an exact-match
// closed form) when dynamic is false, or a static+delta pair otherwise.
func buildVoiceSet(t *testing.T, isMSD, useGV, dynamic bool) htsvoice.VoiceSet {
	t.Helper()

	const nstate = 2

	durTrees := []htsvoice.Tree{singleLeaf(2)}
	durPDF := [][]htsvoice.ModelParameter{{
		htsvoice.ModelParameterFromLinear([]float64{3, 5, 0.5, 0.7}, nstate, false),
	}}

	windows := []htsvoice.Window{htsvoice.NewWindow([]float64{1})}
	if dynamic {
		windows = append(windows, htsvoice.NewWindow([]float64{-0.5, 0, 0.5}))
	}

	nwin := len(windows)

	mcpTrees := make([]htsvoice.Tree, nstate)
	mcpPDF := make([][]htsvoice.ModelParameter, nstate)

	for s := 0; s < nstate; s++ {
		mcpTrees[s] = singleLeaf(s + 2)

		lin := make([]float64, 2*nwin+1)
		for w := 0; w < nwin; w++ {
			lin[w] = float64(s) + 0.1 + float64(w)
			lin[nwin+w] = 0.2
		}

		var msd float64
		if isMSD {
			if s == 0 {
				msd = 0.0
			} else {
				msd = 1.0
			}
		}

		mp := htsvoice.ModelParameterFromLinear(lin, nwin, isMSD)
		if isMSD {
			mp.MSD = msd
		}

		mcpPDF[s] = []htsvoice.ModelParameter{mp}
	}

	var gv *htsvoice.Model
	if useGV {
		gvModel := htsvoice.Model{
			Trees: []htsvoice.Tree{singleLeaf(2)},
			PDF:   [][]htsvoice.ModelParameter{{htsvoice.ModelParameterFromLinear([]float64{0.5, 0.05}, 1, false)}},
		}
		gv = &gvModel
	}

	voice := htsvoice.Voice{
		Duration: htsvoice.Model{Trees: durTrees, PDF: durPDF},
		Streams: []htsvoice.StreamModel{{
			Metadata: htsvoice.StreamMetadata{Name: "MCP", VectorLength: 1, NumWindows: nwin, IsMSD: isMSD, UseGV: useGV},
			Model:    htsvoice.Model{Trees: mcpTrees, PDF: mcpPDF},
			GV:       gv,
			Windows:  htsvoice.NewWindows(windows),
		}},
	}

	vs, err := htsvoice.NewVoiceSet(htsvoice.GlobalMetadata{
		SamplingFrequency: 16000,
		FramePeriod:       80,
		NumStates:         nstate,
		NumStreams:        1,
		StreamTypes:       []string{"MCP"},
	}, []htsvoice.Voice{voice})
	if err != nil {
		t.Fatalf("NewVoiceSet: %v", err)
	}

	return vs
}

func TestGenerate_StaticOnly_MatchesMeans(t *testing.T) {
	vs := buildVoiceSet(t, false, false, false)
	labels := []label.Label{{Text: "a"}, {Text: "b"}}
	w := interp.NewSet(1, 1)

	seq, err := sstream.Create(vs, labels, false, 1.0, w, nil)
	if err != nil {
		t.Fatalf("sstream.Create: %v", err)
	}

	out := Generate(seq, Options{MSDThreshold: []float64{0.5}, GVWeight: []float64{1.0}})

	if len(out) != 1 {
		t.Fatalf("expected 1 stream, got %d", len(out))
	}

	stream := out[0]
	if len(stream.Parameters) != 1 {
		t.Fatalf("expected 1 dimension, got %d", len(stream.Parameters))
	}

	traj := stream.Parameters[0]
	if len(traj) != seq.TotalFrame {
		t.Fatalf("expected %d frames, got %d", seq.TotalFrame, len(traj))
	}

	// With a single static window, MLPG has no cross-frame coupling, so
	// the generated value at each frame must equal that state's mean
	// exactly (within floating-point tolerance).
	frame := 0

	for state, d := range seq.Durations {
		mean := ss0MeanFromState(state)

		for k := 0; k < d; k++ {
			got := traj[frame]
			if diff := got - mean; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("frame %d: expected %.6f, got %.6f", frame, mean, got)
			}

			frame++
		}
	}
}

// ss0MeanFromState mirrors buildVoiceSet's per-state mean assignment
// (local state s = global state index mod nstate=2, mean = s+0.1).
func ss0MeanFromState(state int) float64 {
	return float64(state%2) + 0.1
}

func TestGenerate_MSD_FillsNodataAtUnvoicedFrames(t *testing.T) {
	vs := buildVoiceSet(t, true, false, false)
	labels := []label.Label{{Text: "a"}, {Text: "b"}}
	w := interp.NewSet(1, 1)

	seq, err := sstream.Create(vs, labels, false, 1.0, w, nil)
	if err != nil {
		t.Fatalf("sstream.Create: %v", err)
	}

	out := Generate(seq, Options{MSDThreshold: []float64{0.5}, GVWeight: []float64{1.0}})
	traj := out[0].Parameters[0]

	// buildVoiceSet tags local state 0 with MSD=0.0 (below the 0.5
	// threshold, so unvoiced) and local state 1 with MSD=1.0 (voiced).
	// Durations alternate [3,5,3,5] across the two labels' two states.
	frame := 0

	for state, d := range seq.Durations {
		voiced := state%2 == 1

		for k := 0; k < d; k++ {
			if voiced && traj[frame] == NODATA {
				t.Fatalf("frame %d: expected generated value, got NODATA", frame)
			}

			if !voiced && traj[frame] != NODATA {
				t.Fatalf("frame %d: expected NODATA, got %.6f", frame, traj[frame])
			}

			frame++
		}
	}
}

func TestGenerate_WithGV_ProducesFiniteTrajectory(t *testing.T) {
	vs := buildVoiceSet(t, false, true, true)
	labels := []label.Label{{Text: "a"}, {Text: "b"}}
	w := interp.NewSet(1, 1)

	seq, err := sstream.Create(vs, labels, false, 1.0, w, nil)
	if err != nil {
		t.Fatalf("sstream.Create: %v", err)
	}

	out := Generate(seq, Options{MSDThreshold: []float64{0.5}, GVWeight: []float64{1.0}})
	traj := out[0].Parameters[0]

	if len(traj) != seq.TotalFrame {
		t.Fatalf("expected %d frames, got %d", seq.TotalFrame, len(traj))
	}

	for i, v := range traj {
		if v != v { // NaN check
			t.Fatalf("frame %d: generated NaN", i)
		}
	}
}

func TestToIVar(t *testing.T) {
	tests := []struct {
		name string
		vari float64
		want float64
	}{
		{"large positive variance clamps to 0", 1e20, 0},
		{"large negative variance clamps to 0", -1e20, 0},
		{"tiny positive variance clamps to +1e38", 1e-20, 1e38},
		{"tiny negative variance clamps to -1e38", -1e-20, -1e38},
		{"ordinary variance inverts", 2.0, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toIVar(tt.vari); got != tt.want {
				t.Errorf("toIVar(%v) = %v, want %v", tt.vari, got, tt.want)
			}
		})
	}
}
