package loaders

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

var ErrMalformedModel = errors.New("malformed model")

// LoadOBJ reads a Wavefront OBJ file into a flat triangle list.
func LoadOBJ(path string) ([]metadata.Vertex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open model %s", path)
	}
	defer f.Close()

	vertices, err := ParseOBJ(f)
	if err != nil {
		return nil, errors.Wrapf(err, "model %s", path)
	}
	return vertices, nil
}

// ParseOBJ reads positions, normals and faces. Polygons are triangulated as
// fans around their first corner. Vertices are colored with their normal.
// Texture coordinates, groups and materials are skipped.
func ParseOBJ(r io.Reader) ([]metadata.Vertex, error) {
	var (
		positions []mgl32.Vec3
		normals   []mgl32.Vec3
		vertices  []metadata.Vertex
	)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch fields[0] {
		case "v", "vn":
			vec, err := parseVec3(fields[1:])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			if fields[0] == "v" {
				positions = append(positions, vec)
			} else {
				normals = append(normals, vec)
			}

		case "f":
			if len(fields) < 4 {
				return nil, errors.Wrapf(ErrMalformedModel, "line %d: face with %d corners", line, len(fields)-1)
			}
			corners := make([]metadata.Vertex, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				v, err := resolveCorner(ref, positions, normals)
				if err != nil {
					return nil, errors.Wrapf(err, "line %d", line)
				}
				corners = append(corners, v)
			}
			for i := 1; i+1 < len(corners); i++ {
				vertices = append(vertices, corners[0], corners[i], corners[i+1])
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "could not read model")
	}
	if len(vertices) == 0 {
		return nil, errors.Wrap(ErrMalformedModel, "no faces")
	}
	return vertices, nil
}

func parseVec3(fields []string) (mgl32.Vec3, error) {
	var v mgl32.Vec3
	if len(fields) < 3 {
		return v, errors.Wrapf(ErrMalformedModel, "%d components, want 3", len(fields))
	}
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return v, errors.Wrapf(ErrMalformedModel, "component %q", fields[i])
		}
		v[i] = float32(f)
	}
	return v, nil
}

// resolveCorner decodes one v, v/vt, v//vn or v/vt/vn face reference.
func resolveCorner(ref string, positions, normals []mgl32.Vec3) (metadata.Vertex, error) {
	parts := strings.Split(ref, "/")

	pi, err := objIndex(parts[0], len(positions))
	if err != nil {
		return metadata.Vertex{}, errors.Wrapf(err, "position of %q", ref)
	}
	v := metadata.Vertex{Position: positions[pi]}

	if len(parts) == 3 && parts[2] != "" {
		ni, err := objIndex(parts[2], len(normals))
		if err != nil {
			return metadata.Vertex{}, errors.Wrapf(err, "normal of %q", ref)
		}
		v.Normal = normals[ni]
	}
	v.Color = v.Normal
	return v, nil
}

// objIndex converts a one based, possibly negative, OBJ index.
func objIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedModel, "index %q", s)
	}
	if i < 0 {
		i += n
	} else {
		i--
	}
	if i < 0 || i >= n {
		return 0, errors.Wrapf(ErrMalformedModel, "index %s out of %d", s, n)
	}
	return i, nil
}

// Triangle is the mesh used when nothing better is available.
func Triangle() []metadata.Vertex {
	red := mgl32.Vec3{1, 0, 0}
	return []metadata.Vertex{
		{Position: mgl32.Vec3{1, 1, 0}, Color: red},
		{Position: mgl32.Vec3{-1, 1, 0}, Color: red},
		{Position: mgl32.Vec3{0, -1, 0}, Color: red},
	}
}
