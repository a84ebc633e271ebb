package render

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"

	svg "github.com/ajstarks/svgo"
)

// SVG writes each frame as a standalone SVG document
type SVG struct {
	W io.Writer

	handles Handles
}

// NewSVG creates an SVG bridge writing to w
func NewSVG(w io.Writer) *SVG {
	return &SVG{W: w}
}

// Render implements Bridge
// Transitions are not animated; the frame's final layout is drawn.
func (s *SVG) Render(f Frame) error {
	ew := &errWriter{w: s.W}
	canvas := svg.New(ew)

	width, height := f.Transform.Width(), f.Transform.Height()
	canvas.Start(width, height+f.Header,
		fmt.Sprintf(`viewBox="0.5 %g %d %d"`, -float64(f.Header)-0.5, width, height+f.Header),
		`style="max-width: 100%; height: auto; font: 10px sans-serif;"`)

	if f.Interactive {
		canvas.Group()
	} else {
		canvas.Group(`pointer-events="none"`)
	}
	for _, it := range f.Items {
		s.item(canvas, ew, it)
	}
	canvas.Gend()
	canvas.End()
	return ew.err
}

func (s *SVG) item(canvas *svg.SVG, w io.Writer, it Item) {
	cursor := "default"
	if it.Drillable || it.IsRoot {
		cursor = "pointer"
	}
	canvas.Group(fmt.Sprintf(`transform="translate(%d,%d)"`, it.Device.X, it.Device.Y),
		fmt.Sprintf(`cursor="%s"`, cursor))
	canvas.Title(it.Title)

	leaf := s.handles.Next("leaf")
	canvas.Rect(0, 0, it.Device.W, it.Device.H,
		fmt.Sprintf(`id="%s"`, leaf.ID),
		fmt.Sprintf(`fill="%s"`, it.Color),
		`stroke="#fff"`)

	clip := s.handles.Next("clip")
	canvas.ClipPath(fmt.Sprintf(`id="%s"`, clip.ID))
	canvas.Use(0, 0, leaf.Ref())
	canvas.ClipEnd()

	weight := "normal"
	if it.IsRoot {
		weight = "bold"
	}
	fmt.Fprintf(w, `<text clip-path="%s" font-weight="%s">`, clip.URL(), weight)
	for i, line := range it.Lines {
		last := i == len(it.Lines)-1
		dy := 1.1 + float64(i)*0.9
		if last {
			dy += 0.3
		}
		attrs := fmt.Sprintf(`x="3" y="%.1fem"`, dy)
		if last {
			attrs += ` fill-opacity="0.7" font-weight="normal"`
		}
		fmt.Fprintf(w, "<tspan %s>", attrs)
		_ = xml.EscapeText(w, []byte(line))
		io.WriteString(w, "</tspan>")
	}
	io.WriteString(w, "</text>\n")
	canvas.Gend()
}

// errWriter remembers the first write error so drawing calls need no checks
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return len(p), nil
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, nil
}

// JSON writes each frame as one JSON document per line
type JSON struct {
	enc *json.Encoder
}

// NewJSON creates a JSON bridge writing to w
func NewJSON(w io.Writer, indent bool) *JSON {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return &JSON{enc: enc}
}

// Render implements Bridge
func (j *JSON) Render(f Frame) error {
	if err := j.enc.Encode(f); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return nil
}

// Recorder keeps every frame it is handed
type Recorder struct {
	Frames []Frame
}

// Render implements Bridge
func (r *Recorder) Render(f Frame) error {
	r.Frames = append(r.Frames, f)
	return nil
}

// Last returns the most recent frame
func (r *Recorder) Last() (Frame, bool) {
	if len(r.Frames) == 0 {
		return Frame{}, false
	}
	return r.Frames[len(r.Frames)-1], true
}
