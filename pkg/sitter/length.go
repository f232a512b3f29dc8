package sitter

import "fmt"

// Point is a zero-based row/column position. Columns count bytes.
type Point struct {
	Row    uint32
	Column uint32
}

func (p Point) String() string {
	return fmt.Sprintf("(%d, %d)", p.Row, p.Column)
}

// Less reports whether p comes before o.
func (p Point) Less(o Point) bool {
	return p.Row < o.Row || (p.Row == o.Row && p.Column < o.Column)
}

// Range is a span of source text in both byte and point coordinates.
type Range struct {
	StartPoint Point
	EndPoint   Point
	StartByte  uint32
	EndByte    uint32
}

// InputEdit describes a replacement of the bytes [StartByte, OldEndByte)
// with new text ending at NewEndByte.
type InputEdit struct {
	StartByte   uint32
	OldEndByte  uint32
	NewEndByte  uint32
	StartPoint  Point
	OldEndPoint Point
	NewEndPoint Point
}

// Length is a relative extent of text. Extent.Column is relative to the
// starting column only when Extent.Row is zero.
type Length struct {
	Bytes  uint32
	Extent Point
}

func lengthAdd(a, b Length) Length {
	r := Length{Bytes: a.Bytes + b.Bytes}
	if b.Extent.Row > 0 {
		r.Extent = Point{Row: a.Extent.Row + b.Extent.Row, Column: b.Extent.Column}
	} else {
		r.Extent = Point{Row: a.Extent.Row, Column: a.Extent.Column + b.Extent.Column}
	}
	return r
}

// lengthSub assumes b <= a.
func lengthSub(a, b Length) Length {
	r := Length{Bytes: a.Bytes - b.Bytes}
	if a.Extent.Row > b.Extent.Row {
		r.Extent = Point{Row: a.Extent.Row - b.Extent.Row, Column: a.Extent.Column}
	} else if a.Extent.Column > b.Extent.Column {
		r.Extent = Point{Column: a.Extent.Column - b.Extent.Column}
	}
	return r
}

func lengthSaturatingSub(a, b Length) Length {
	if a.Bytes <= b.Bytes {
		return Length{}
	}
	return lengthSub(a, b)
}

// lengthOf measures text, counting '\n' as a row break.
func lengthOf(text []byte) Length {
	l := Length{Bytes: uint32(len(text))}
	for _, c := range text {
		if c == '\n' {
			l.Extent.Row++
			l.Extent.Column = 0
		} else {
			l.Extent.Column++
		}
	}
	return l
}

// PointAt returns the point of byte offset off within text.
func PointAt(text []byte, off uint32) Point {
	if int(off) > len(text) {
		off = uint32(len(text))
	}
	return lengthOf(text[:off]).Extent
}

// EditFor describes replacing oldText[start:oldEnd] with repl.
func EditFor(oldText []byte, start, oldEnd uint32, repl []byte) InputEdit {
	startPoint := PointAt(oldText, start)
	newEnd := lengthAdd(Length{Bytes: start, Extent: startPoint}, lengthOf(repl))
	return InputEdit{
		StartByte:   start,
		OldEndByte:  oldEnd,
		NewEndByte:  newEnd.Bytes,
		StartPoint:  startPoint,
		OldEndPoint: PointAt(oldText, oldEnd),
		NewEndPoint: newEnd.Extent,
	}
}
