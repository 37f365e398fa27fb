package vision

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	deskerrors "github.com/rahul/deskpilot/internal/errors"
	"github.com/rahul/deskpilot/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func tsv(rows ...string) []byte {
	header := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext"
	return []byte(strings.Join(append([]string{header}, rows...), "\n") + "\n")
}

var sampleTSV = tsv(
	"1\t1\t0\t0\t0\t0\t0\t0\t1920\t1080\t-1\t",
	"4\t1\t1\t1\t1\t0\t100\t200\t130\t30\t-1\t",
	"5\t1\t1\t1\t1\t1\t100\t200\t80\t30\t96.5\tSave",
	"5\t1\t1\t1\t1\t2\t190\t200\t40\t30\t91\tAs",
	"5\t1\t2\t1\t1\t1\t500\t600\t120\t40\t88.25\tSubmit",
	"5\t1\t2\t1\t1\t2\t640\t600\t10\t40\t12\t~",
)

func TestParseTSV(t *testing.T) {
	words, err := ParseTSV(sampleTSV)
	require.NoError(t, err)
	require.Len(t, words, 4)

	assert.Equal(t, "Save", words[0].Text)
	assert.Equal(t, Box{X: 100, Y: 200, W: 80, H: 30}, words[0].Box)
	assert.InDelta(t, 0.965, words[0].Confidence, 1e-9)
	assert.Equal(t, 0, words[1].Line)
	assert.Equal(t, 1, words[2].Line)

	_, err = ParseTSV(tsv("x\t1\t1\t1\t1\t1\t0\t0\t1\t1\t90\tbad"))
	assert.Error(t, err)
}

func TestLines(t *testing.T) {
	words, err := ParseTSV(sampleTSV)
	require.NoError(t, err)
	lines := Lines(words)
	require.Len(t, lines, 2)
	assert.Equal(t, "Save As", lines[0].Text)
	assert.Equal(t, Box{X: 100, Y: 200, W: 130, H: 30}, lines[0].Box)
	assert.InDelta(t, (0.965+0.91)/2, lines[0].Confidence, 1e-9)
	assert.Equal(t, "Submit ~", lines[1].Text)
}

func frag(text string, x, y, w, h int) Fragment {
	return Fragment{Text: text, Box: Box{X: x, Y: y, W: w, H: h}, Confidence: 0.9}
}

func TestMatcher_Exact(t *testing.T) {
	m := NewMatcher(0.8)
	frags := []Fragment{frag("File", 0, 0, 10, 10), frag("Submit form", 100, 100, 40, 20), frag("submit", 300, 300, 20, 20)}

	got, ok := m.Exact("SUBMIT", frags)
	require.True(t, ok)
	assert.Equal(t, MatchSubstring, got.Kind, "first containing fragment wins")
	assert.Equal(t, 120, got.X)
	assert.Equal(t, 110, got.Y)

	got, ok = m.Exact("file", frags)
	require.True(t, ok)
	assert.Equal(t, MatchExact, got.Kind)

	_, ok = m.Exact("Sbmit", frags)
	assert.False(t, ok)
	_, ok = m.Exact("  ", frags)
	assert.False(t, ok)
}

func TestMatcher_Similarity(t *testing.T) {
	m := NewMatcher(0)
	assert.Equal(t, DefaultFuzzyThreshold, m.Threshold)
	assert.InDelta(t, 10.0/11.0, m.Similarity("sbmit", "submit"), 1e-9)
	assert.Equal(t, 1.0, m.Similarity("ok", "ok"))
	assert.Equal(t, 1.0, m.Similarity("", ""))
	assert.Less(t, m.Similarity("cancel", "submit"), 0.5)
}

func TestMatcher_Fuzzy(t *testing.T) {
	m := NewMatcher(0.8)
	frags := []Fragment{frag("Cancel", 0, 0, 60, 20), frag("Submit", 100, 50, 60, 20)}

	got, ok := m.Fuzzy("Sbmit", frags)
	require.True(t, ok)
	assert.Equal(t, "Submit", got.Fragment.Text)
	assert.Equal(t, MatchFuzzy, got.Kind)
	assert.Equal(t, 130, got.X)
	assert.Equal(t, 60, got.Y)

	got, ok = m.Fuzzy("save", []Fragment{frag("Save, as...", 0, 0, 10, 10)})
	require.True(t, ok, "normalized substring matches below the ratio")
	assert.Less(t, got.Score, 0.8)

	_, ok = m.Fuzzy("Print", frags)
	assert.False(t, ok)
}

type fakeCapturer struct {
	calls     int
	err       error
	left, top int
}

func (c *fakeCapturer) Capture(context.Context) (Screenshot, error) {
	c.calls++
	if c.err != nil {
		return Screenshot{}, c.err
	}
	return Screenshot{Path: "screen.png", Left: c.left, Top: c.top}, nil
}

type sequenceRecognizer struct {
	mu     sync.Mutex
	frames [][]Fragment
	calls  int
}

func (r *sequenceRecognizer) Recognize(context.Context, string) ([]Fragment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := min(r.calls, len(r.frames)-1)
	r.calls++
	return r.frames[i], nil
}

type recordingClicker struct {
	points [][2]int
}

func (c *recordingClicker) Click(_ context.Context, x, y int) error {
	c.points = append(c.points, [2]int{x, y})
	return nil
}

func newTestGrounder(frames ...[]Fragment) (*Grounder, *fakeCapturer, *sequenceRecognizer, *recordingClicker) {
	capt := &fakeCapturer{}
	rec := &sequenceRecognizer{frames: frames}
	clk := &recordingClicker{}
	cfg := config.GroundingConfig{ConfidenceFloor: 0.4, FuzzyThreshold: 0.8, PollInterval: 5 * time.Millisecond}
	return NewGrounder(capt, rec, clk, cfg, zap.NewNop()), capt, rec, clk
}

func TestGrounder_ClickTextSelfHeals(t *testing.T) {
	screen := []Fragment{frag("Cancel", 0, 0, 60, 20), frag("Submit", 100, 50, 60, 20)}
	g, capt, _, clk := newTestGrounder(screen)

	m, err := g.ClickText(context.Background(), "Sbmit")
	require.NoError(t, err)
	assert.Equal(t, MatchFuzzy, m.Kind)
	assert.Equal(t, [][2]int{{130, 60}}, clk.points)
	assert.Equal(t, 2, capt.calls, "one exact scan and one fuzzy retry")
}

func TestGrounder_ClickTextMultiWordLine(t *testing.T) {
	words, err := ParseTSV(sampleTSV)
	require.NoError(t, err)
	g, _, _, clk := newTestGrounder(words)

	m, err := g.ClickText(context.Background(), "save as")
	require.NoError(t, err)
	assert.Equal(t, MatchExact, m.Kind)
	assert.Equal(t, [][2]int{{165, 215}}, clk.points)
}

func TestGrounder_ClickTextOnSecondaryMonitor(t *testing.T) {
	g, capt, _, clk := newTestGrounder([]Fragment{frag("Submit", 100, 50, 60, 20)})
	capt.left, capt.top = -1920, -200

	m, err := g.ClickText(context.Background(), "Submit")
	require.NoError(t, err)
	assert.Equal(t, -1920+130, m.X)
	assert.Equal(t, -200+60, m.Y)
	assert.Equal(t, [][2]int{{-1790, -140}}, clk.points)
}

func TestGrounder_ClickTextNotFound(t *testing.T) {
	g, _, _, clk := newTestGrounder([]Fragment{frag("Cancel", 0, 0, 60, 20)})

	_, err := g.ClickText(context.Background(), "Export")
	require.Error(t, err)
	assert.ErrorIs(t, err, deskerrors.ErrNotFound)
	assert.False(t, deskerrors.IsRecoverable(err))
	assert.Empty(t, clk.points)
}

func TestGrounder_ConfidenceFloor(t *testing.T) {
	low := frag("Secret", 0, 0, 10, 10)
	low.Confidence = 0.1
	g, _, _, _ := newTestGrounder([]Fragment{low})

	_, ok, err := g.FindText(context.Background(), "secret", false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGrounder_WaitForTextAppears(t *testing.T) {
	empty := []Fragment{frag("Loading", 0, 0, 10, 10)}
	ready := []Fragment{frag("Ready", 10, 10, 20, 20)}
	g, _, rec, _ := newTestGrounder(empty, empty, ready)

	m, err := g.WaitForText(context.Background(), "ready", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Ready", m.Fragment.Text)
	assert.Equal(t, 3, rec.calls)
}

func TestGrounder_WaitForTextTimeout(t *testing.T) {
	g, _, rec, _ := newTestGrounder([]Fragment{frag("Loading", 0, 0, 10, 10)})

	_, err := g.WaitForText(context.Background(), "Ready", 20*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, deskerrors.ErrTimeout)
	assert.NotErrorIs(t, err, deskerrors.ErrNotFound)
	assert.GreaterOrEqual(t, rec.calls, 2)
}

func TestGrounder_WaitForTextFatalError(t *testing.T) {
	g, capt, _, _ := newTestGrounder([]Fragment{})
	capt.err = deskerrors.ActionFailed("tesseract is not installed", false)

	_, err := g.WaitForText(context.Background(), "Ready", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tesseract")
	assert.Equal(t, 1, capt.calls)
}

func TestGrounder_ReadScreen(t *testing.T) {
	words, err := ParseTSV(sampleTSV)
	require.NoError(t, err)
	g, _, _, _ := newTestGrounder(words)

	text, err := g.ReadScreen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Save As\nSubmit", text)
}

func TestGrounder_CaptureFailure(t *testing.T) {
	g, capt, _, _ := newTestGrounder([]Fragment{})
	capt.err = errors.New("no display")
	_, _, err := g.FindText(context.Background(), "x", false)
	assert.Error(t, err)
}

func TestCaptureCommands(t *testing.T) {
	linux := captureCommands("linux", ":1", "/tmp/s.png")
	require.Len(t, linux, 2)
	assert.Equal(t, []string{"ffmpeg", "-f", "x11grab", "-i", ":1", "-frames:v", "1", "/tmp/s.png", "-y"}, linux[0])
	assert.Equal(t, "scrot", linux[1][0])

	win := captureCommands("windows", "", `C:\it's\s.png`)
	require.Len(t, win, 1)
	assert.Contains(t, win[0][len(win[0])-1], `'C:\it''s\s.png'`)

	assert.Equal(t, [][]string{{"screencapture", "-x", "/tmp/s.png"}}, captureCommands("darwin", "", "/tmp/s.png"))
}

type scriptedRunner struct {
	fail map[string]bool
	out  map[string]string
	seen []string
}

func (r *scriptedRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.seen = append(r.seen, name)
	if r.fail[name] {
		return nil, errors.New(name + " failed")
	}
	if name == "tesseract" {
		return sampleTSV, nil
	}
	if out, ok := r.out[name]; ok {
		return []byte(out), nil
	}
	return nil, nil
}

func TestScreenCapturer_FallsBackToScrot(t *testing.T) {
	r := &scriptedRunner{fail: map[string]bool{"ffmpeg": true}}
	c := NewScreenCapturer(r, t.TempDir(), ":0.0")
	c.goos = "linux"

	shot, err := c.Capture(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(shot.Path, ".png"))
	assert.Zero(t, shot.Left)
	assert.Zero(t, shot.Top)
	assert.Equal(t, []string{"ffmpeg", "scrot"}, r.seen)

	r = &scriptedRunner{fail: map[string]bool{"ffmpeg": true, "scrot": true}}
	c = NewScreenCapturer(r, t.TempDir(), ":0.0")
	c.goos = "linux"
	_, err = c.Capture(context.Background())
	assert.Error(t, err)
}

func TestScreenCapturer_WindowsReportsOrigin(t *testing.T) {
	r := &scriptedRunner{out: map[string]string{"powershell": "-1920,-200\r\n"}}
	c := NewScreenCapturer(r, t.TempDir(), "")
	c.goos = "windows"

	shot, err := c.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1920, shot.Left)
	assert.Equal(t, -200, shot.Top)

	r.out["powershell"] = "saved\r\n"
	_, err = c.Capture(context.Background())
	assert.ErrorContains(t, err, "malformed screen origin")
}

func TestTesseract_Recognize(t *testing.T) {
	r := &scriptedRunner{}
	words, err := NewTesseract(r, "", "").Recognize(context.Background(), "screen.png")
	require.NoError(t, err)
	assert.Len(t, words, 4)
	assert.Equal(t, []string{"tesseract"}, r.seen)
}
