package vision

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rahul/deskpilot/internal/desktop"
)

// Box is a screen-space rectangle in pixels.
type Box struct {
	X, Y, W, H int
}

// Center returns the point a click should land on.
func (b Box) Center() (int, int) {
	return b.X + b.W/2, b.Y + b.H/2
}

func (b Box) union(o Box) Box {
	x0, y0 := min(b.X, o.X), min(b.Y, o.Y)
	x1, y1 := max(b.X+b.W, o.X+o.W), max(b.Y+b.H, o.Y+o.H)
	return Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Fragment is one recognized word. Line groups words that OCR placed on the
// same text line, numbered in reading order.
type Fragment struct {
	Text       string
	Box        Box
	Confidence float64
	Line       int
}

// Recognizer extracts words from an image file.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) ([]Fragment, error)
}

// Tesseract runs the tesseract CLI and parses its TSV output.
type Tesseract struct {
	run      desktop.Runner
	command  string
	language string
}

func NewTesseract(run desktop.Runner, command, language string) *Tesseract {
	if run == nil {
		run = desktop.ExecRunner{}
	}
	if command == "" {
		command = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	return &Tesseract{run: run, command: command, language: language}
}

func (t *Tesseract) Recognize(ctx context.Context, imagePath string) ([]Fragment, error) {
	out, err := t.run.Run(ctx, t.command, imagePath, "stdout", "-l", t.language, "tsv")
	if err != nil {
		return nil, err
	}
	return ParseTSV(out)
}

const wordLevel = 5

// ParseTSV decodes tesseract TSV output into word fragments in reading order.
// Confidence is scaled to 0..1.
func ParseTSV(data []byte) ([]Fragment, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		words    []Fragment
		lineKeys = make(map[string]int)
		header   = true
	)
	for sc.Scan() {
		row := strings.TrimRight(sc.Text(), "\r")
		if header {
			header = false
			if strings.HasPrefix(row, "level") {
				continue
			}
		}
		if row == "" {
			continue
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 {
			continue
		}
		level, err := strconv.Atoi(cols[0])
		if err != nil {
			return nil, fmt.Errorf("malformed tsv row %q: %w", row, err)
		}
		text := strings.TrimSpace(strings.Join(cols[11:], "\t"))
		if level != wordLevel || text == "" {
			continue
		}

		nums := make([]int, 4)
		for i := range nums {
			if nums[i], err = strconv.Atoi(cols[6+i]); err != nil {
				return nil, fmt.Errorf("malformed tsv geometry %q: %w", row, err)
			}
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed tsv confidence %q: %w", row, err)
		}

		key := strings.Join(cols[1:5], "/")
		line, ok := lineKeys[key]
		if !ok {
			line = len(lineKeys)
			lineKeys[key] = line
		}
		words = append(words, Fragment{
			Text:       text,
			Box:        Box{X: nums[0], Y: nums[1], W: nums[2], H: nums[3]},
			Confidence: max(conf, 0) / 100,
			Line:       line,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tsv: %w", err)
	}
	return words, nil
}

// Lines assembles words into line fragments, ordered by line number.
func Lines(words []Fragment) []Fragment {
	var lines []Fragment
	index := make(map[int]int)
	counts := make(map[int]int)
	for _, w := range words {
		i, ok := index[w.Line]
		if !ok {
			index[w.Line] = len(lines)
			lines = append(lines, w)
			counts[w.Line] = 1
			continue
		}
		l := &lines[i]
		l.Text += " " + w.Text
		l.Box = l.Box.union(w.Box)
		l.Confidence += w.Confidence
		counts[w.Line]++
	}
	for i := range lines {
		lines[i].Confidence /= float64(counts[lines[i].Line])
	}
	return lines
}
