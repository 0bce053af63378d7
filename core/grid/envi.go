package grid

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"topofetch/core/reproject"
	"topofetch/internal/errors"
)

// Extension of the binary part of the interchange format
const Extension = ".bil"

const (
	enviFloat32  = 4
	littleEndian = 0
	bigEndian    = 1
)

// Header is the parsed ENVI sidecar
type Header struct {
	Samples          int
	Lines            int
	Bands            int
	HeaderOffset     int
	DataType         int
	ByteOrder        int
	Interleave       string
	Zone             reproject.Zone
	West             float64
	North            float64
	CellSize         float64
	NoData           float32
	CoordinateSystem string
}

// HeaderPath maps a .bil path to its .hdr sidecar
func HeaderPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".hdr"
}

func num(v float64) string {
	return decimal.NewFromFloat(v).String()
}

// Write stores g as path (.bil) plus the .hdr sidecar
func Write(path string, g *Grid) error {
	if len(g.Data) != g.Cols*g.Rows {
		return errors.Internal("grid data does not match its dimensions", nil).
			WithContext("cols", g.Cols).WithContext("rows", g.Rows).WithContext("cells", len(g.Data))
	}
	if err := writeHeader(HeaderPath(path), g); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Internal("cannot create grid file", err).WithContext("path", path)
	}
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, g.Data); err != nil {
		f.Close()
		return errors.Internal("cannot write grid data", err).WithContext("path", path)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Internal("cannot write grid data", err).WithContext("path", path)
	}
	if err := f.Close(); err != nil {
		return errors.Internal("cannot close grid file", err).WithContext("path", path)
	}
	return nil
}

func writeHeader(path string, g *Grid) error {
	var b strings.Builder
	b.WriteString("ENVI\n")
	b.WriteString("description = {\ntopofetch elevation grid}\n")
	fmt.Fprintf(&b, "samples = %d\n", g.Cols)
	fmt.Fprintf(&b, "lines = %d\n", g.Rows)
	b.WriteString("bands = 1\n")
	b.WriteString("header offset = 0\n")
	b.WriteString("file type = ENVI Standard\n")
	fmt.Fprintf(&b, "data type = %d\n", enviFloat32)
	b.WriteString("interleave = bsq\n")
	fmt.Fprintf(&b, "byte order = %d\n", littleEndian)
	fmt.Fprintf(&b, "map info = {UTM, 1, 1, %s, %s, %s, %s, %d, %s, WGS-84, units=Meters}\n",
		num(g.West), num(g.North), num(g.CellSize), num(g.CellSize), g.Zone.Number, g.Zone.Hemisphere())
	if g.CoordinateSystem != "" {
		fmt.Fprintf(&b, "coordinate system string = {%s}\n", g.CoordinateSystem)
	}
	fmt.Fprintf(&b, "data ignore value = %s\n", num(float64(g.NoData)))

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return errors.Internal("cannot write grid header", err).WithContext("path", path)
	}
	return nil
}

// ReadHeader parses an ENVI header. Values in braces may span lines.
func ReadHeader(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, errors.Format(path, "cannot read header", err)
	}
	text := string(data)
	if !strings.HasPrefix(strings.TrimSpace(text), "ENVI") {
		return Header{}, errors.Format(path, "not an ENVI header", nil)
	}

	fields := map[string]string{}
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:eq]))
		val := strings.TrimSpace(line[eq+1:])
		if strings.HasPrefix(val, "{") {
			for !strings.Contains(val, "}") && i+1 < len(lines) {
				i++
				val += "\n" + strings.TrimSpace(lines[i])
			}
			val = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(val, "{"), "}"))
		}
		fields[key] = val
	}

	h := Header{Bands: 1, NoData: NoData, Interleave: "bsq"}
	ints := []struct {
		key      string
		dst      *int
		required bool
	}{
		{"samples", &h.Samples, true},
		{"lines", &h.Lines, true},
		{"bands", &h.Bands, false},
		{"header offset", &h.HeaderOffset, false},
		{"data type", &h.DataType, true},
		{"byte order", &h.ByteOrder, false},
	}
	for _, f := range ints {
		v, ok := fields[f.key]
		if !ok {
			if f.required {
				return Header{}, errors.Format(path, "header is missing "+f.key, nil)
			}
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Header{}, errors.Format(path, "bad "+f.key, err)
		}
		*f.dst = n
	}
	if v, ok := fields["interleave"]; ok {
		h.Interleave = strings.ToLower(v)
	}
	if v, ok := fields["data ignore value"]; ok {
		nd, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return Header{}, errors.Format(path, "bad data ignore value", err)
		}
		h.NoData = float32(nd)
	}
	h.CoordinateSystem = fields["coordinate system string"]

	mi, ok := fields["map info"]
	if !ok {
		return Header{}, errors.Format(path, "header is missing map info", nil)
	}
	if err := parseMapInfo(mi, &h); err != nil {
		return Header{}, errors.Format(path, "bad map info", err)
	}
	return h, nil
}

// map info = {UTM, refX, refY, easting, northing, dx, dy, zone, hemisphere, datum, units}
func parseMapInfo(v string, h *Header) error {
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 9 || !strings.EqualFold(parts[0], "UTM") {
		return fmt.Errorf("expected a UTM map info, got %q", v)
	}

	vals := make([]float64, 6)
	for i := 1; i <= 6; i++ {
		f, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
		vals[i-1] = f
	}
	if vals[4] != vals[5] {
		return fmt.Errorf("non-square cells %g x %g", vals[4], vals[5])
	}
	zone, err := strconv.Atoi(parts[7])
	if err != nil {
		return fmt.Errorf("zone: %w", err)
	}

	// reference pixel is 1-based and refers to its upper-left corner
	h.CellSize = vals[4]
	h.West = vals[2] - (vals[0]-1)*h.CellSize
	h.North = vals[3] + (vals[1]-1)*h.CellSize
	h.Zone = reproject.Zone{Number: zone, North: !strings.EqualFold(parts[8], "South")}
	return nil
}

// Read loads a grid written by Write (or by LSDTopoTools)
func Read(path string) (*Grid, error) {
	h, err := ReadHeader(HeaderPath(path))
	if err != nil {
		return nil, err
	}
	if h.DataType != enviFloat32 {
		return nil, errors.Format(path, fmt.Sprintf("unsupported data type %d", h.DataType), nil)
	}
	if h.Bands != 1 {
		return nil, errors.Format(path, fmt.Sprintf("expected one band, found %d", h.Bands), nil)
	}

	var order binary.ByteOrder = binary.LittleEndian
	switch h.ByteOrder {
	case littleEndian:
	case bigEndian:
		order = binary.BigEndian
	default:
		return nil, errors.Format(path, fmt.Sprintf("unknown byte order %d", h.ByteOrder), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Format(path, "cannot open grid", err)
	}
	defer f.Close()

	want := int64(h.HeaderOffset) + int64(h.Samples)*int64(h.Lines)*4
	if st, err := f.Stat(); err == nil && st.Size() != want {
		return nil, errors.Format(path, fmt.Sprintf("file holds %d bytes, header implies %d", st.Size(), want), nil)
	}
	if h.HeaderOffset > 0 {
		if _, err := f.Seek(int64(h.HeaderOffset), io.SeekStart); err != nil {
			return nil, errors.Format(path, "cannot skip header offset", err)
		}
	}

	g := &Grid{
		Cols:             h.Samples,
		Rows:             h.Lines,
		CellSize:         h.CellSize,
		West:             h.West,
		North:            h.North,
		Zone:             h.Zone,
		NoData:           h.NoData,
		Data:             make([]float32, h.Samples*h.Lines),
		CoordinateSystem: h.CoordinateSystem,
	}
	if err := binary.Read(bufio.NewReader(f), order, g.Data); err != nil {
		return nil, errors.Format(path, "truncated grid data", err)
	}
	return g, nil
}

// Remove deletes a grid and its header, ignoring files that do not exist
func Remove(path string) error {
	for _, p := range []string{path, HeaderPath(path), path + ".aux.xml"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
